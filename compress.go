package runbeam

import (
	"github.com/klauspost/compress/zstd"
)

// compressionThreshold is the smallest body worth compressing. Tiny
// payloads grow under zstd framing and cost CPU for nothing.
const compressionThreshold = 1024

// Shared zstd coders. EncodeAll/DecodeAll on a shared instance are safe
// for concurrent use. Level 3 trades well for JSON run payloads.
var (
	zstdEncoder, _ = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	zstdDecoder, _ = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
)

// compressBody compresses an outgoing request body.
func compressBody(b []byte) []byte {
	return zstdEncoder.EncodeAll(b, make([]byte, 0, len(b)/2))
}

// decompressBody reverses compressBody. Used by tests and by callers
// replaying captured request bodies.
func decompressBody(b []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(b, nil)
}
