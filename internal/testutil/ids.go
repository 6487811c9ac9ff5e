package testutil

import "sync"

// FixedIDGenerator returns the same request id every time so envelopes and
// logs are byte-identical across runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed id generator. An empty id yields
// "test-request".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-request"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequenceReader is a deterministic io.Reader for token generation. Each Read
// fills the buffer with a single byte value that increments per call, so
// consecutive tokens differ but are reproducible.
type SequenceReader struct {
	mu   sync.Mutex
	next byte
}

// Read implements io.Reader.
func (r *SequenceReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	r.next++
	b := r.next
	r.mu.Unlock()

	for i := range p {
		p[i] = b
	}
	return len(p), nil
}
