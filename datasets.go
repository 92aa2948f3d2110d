package runbeam

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Dataset is a named collection of examples used to drive experiments.
type Dataset struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
}

// Example is one input/output pair inside a dataset. Runs produced when
// replaying an example carry its ID as ReferenceExampleID.
type Example struct {
	ID        uuid.UUID      `json:"id"`
	DatasetID uuid.UUID      `json:"dataset_id"`
	Inputs    map[string]any `json:"inputs"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

// CreateDatasetRequest is the body of CreateDataset.
type CreateDatasetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateExampleRequest is the body of CreateExample.
type CreateExampleRequest struct {
	DatasetID uuid.UUID      `json:"dataset_id"`
	Inputs    map[string]any `json:"inputs"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

// CreateDataset creates a dataset.
func (c *Client) CreateDataset(ctx context.Context, req *CreateDatasetRequest) (*Dataset, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	var out Dataset
	if err := c.http.post(ctx, endpoints.Datasets, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadDataset fetches a dataset by ID.
func (c *Client) ReadDataset(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	var out Dataset
	if err := c.http.get(ctx, endpoints.Datasets+"/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateExample adds an example to a dataset. Inputs and outputs pass
// through [Serialize] so arbitrary application values are accepted.
func (c *Client) CreateExample(ctx context.Context, req *CreateExampleRequest) (*Example, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	body := *req
	body.Inputs = serializeMap(req.Inputs)
	body.Outputs = serializeMap(req.Outputs)
	var out Example
	if err := c.http.post(ctx, endpoints.Examples, &body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadExample fetches an example by ID.
func (c *Client) ReadExample(ctx context.Context, id uuid.UUID) (*Example, error) {
	var out Example
	if err := c.http.get(ctx, endpoints.Examples+"/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListExamples fetches the examples of a dataset.
func (c *Client) ListExamples(ctx context.Context, datasetID uuid.UUID, limit, offset int) ([]Example, error) {
	query := url.Values{"dataset_id": {datasetID.String()}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	var out []Example
	if err := c.http.get(ctx, endpoints.Examples, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}
