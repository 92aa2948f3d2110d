package runbeam

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeedbackSourceType identifies who produced a piece of feedback.
type FeedbackSourceType string

const (
	// FeedbackSourceAPI marks feedback recorded through the API by
	// application code or a human.
	FeedbackSourceAPI FeedbackSourceType = "api"
	// FeedbackSourceModel marks feedback produced by an automated
	// evaluator model.
	FeedbackSourceModel FeedbackSourceType = "model"
)

// Feedback is a score or annotation attached to a run.
type Feedback struct {
	ID         uuid.UUID          `json:"id"`
	RunID      uuid.UUID          `json:"run_id"`
	Key        string             `json:"key"`
	Score      *float64           `json:"score,omitempty"`
	Value      any                `json:"value,omitempty"`
	Comment    string             `json:"comment,omitempty"`
	SourceType FeedbackSourceType `json:"feedback_source_type,omitempty"`
	CreatedAt  *time.Time         `json:"created_at,omitempty"`
}

// CreateFeedbackRequest is the body of CreateFeedback.
type CreateFeedbackRequest struct {
	RunID      uuid.UUID          `json:"run_id"`
	Key        string             `json:"key"`
	Score      *float64           `json:"score,omitempty"`
	Value      any                `json:"value,omitempty"`
	Comment    string             `json:"comment,omitempty"`
	SourceType FeedbackSourceType `json:"feedback_source_type,omitempty"`
}

// CreateFeedback records feedback against a run. The free-form value
// passes through [Serialize].
func (c *Client) CreateFeedback(ctx context.Context, req *CreateFeedbackRequest) (*Feedback, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	body := *req
	if body.SourceType == "" {
		body.SourceType = FeedbackSourceAPI
	}
	body.Value = Serialize(req.Value)
	var out Feedback
	if err := c.http.post(ctx, endpoints.Feedback, &body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
