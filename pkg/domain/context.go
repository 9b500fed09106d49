package domain

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Context carries the ambient data an engine operation needs but that no
// command or event should hard-code: who is acting, what request this is
// part of, what time it is, and a source of fresh identifiers.
//
// Context is immutable; the With* methods return a modified copy, the same
// way context.Context works, so a caller can narrow or extend a Context for
// a sub-operation without affecting the caller's own copy.
type Context struct {
	actor     string
	requestID string
	metadata  map[string]any
	now       func() time.Time
	randSrc   io.Reader
}

// NewContext returns a Context for actor, with a fresh request id, the
// wall-clock time captured at construction, and a cryptographically random
// UUID source.
func NewContext(actor string) Context {
	captured := time.Now()
	return Context{
		actor:     actor,
		requestID: uuid.NewString(),
		now:       func() time.Time { return captured },
		randSrc:   nil,
	}
}

// Actor returns the acting principal, or "anonymous" if none was set.
func (c Context) Actor() string {
	if c.actor == "" {
		return "anonymous"
	}
	return c.actor
}

// RequestID returns the id correlating every operation in this request.
func (c Context) RequestID() string {
	return c.requestID
}

// Now returns the wall-clock time the context captured for this operation.
// Engines stamp every envelope in a single commit with one call to Now, so
// a batch of events always shares one timestamp.
func (c Context) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Metadata returns a single metadata entry and whether it was present.
func (c Context) Metadata(key string) (any, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// AllMetadata returns a copy of the full metadata bag.
func (c Context) AllMetadata() map[string]any {
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// WithRequestID returns a copy of c scoped to a caller-supplied request id.
func (c Context) WithRequestID(id string) Context {
	c.requestID = id
	return c
}

// WithNextRequestID returns a copy of c with a freshly generated request
// id, for background work that doesn't arrive with one of its own.
func (c Context) WithNextRequestID() Context {
	c.requestID = c.NextUUID()
	return c
}

// WithMetadata returns a copy of c with key set to value in its metadata
// bag. Existing keys are overwritten; other keys are preserved.
func (c Context) WithMetadata(key string, value any) Context {
	next := make(map[string]any, len(c.metadata)+1)
	for k, v := range c.metadata {
		next[k] = v
	}
	next[key] = value
	c.metadata = next
	return c
}

// WithNow pins the context's clock, for tests that need a fixed timestamp.
func (c Context) WithNow(t time.Time) Context {
	c.now = func() time.Time { return t }
	return c
}

// WithRandBytes pins the context's UUID source to always read the given 16
// bytes. This exists purely for deterministic tests — production code
// should never call it, since every NextUUID call in a test using this
// context returns the same value.
func (c Context) WithRandBytes(b [16]byte) Context {
	c.randSrc = &fixedReader{b: b}
	return c
}

// NextUUID returns a fresh v4 UUID from the context's random source. Under
// WithRandBytes, sixteen zero bytes deterministically produce
// "00000000-0000-4000-8000-000000000000" — NewRandomFromReader itself sets
// the version and variant nibbles, so the all-zero seed still yields a
// syntactically valid v4 UUID.
func (c Context) NextUUID() string {
	if c.randSrc == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(c.randSrc)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// fixedReader is an io.Reader that always fills the caller's buffer with
// the same 16 bytes, used to make NextUUID deterministic under test.
type fixedReader struct {
	b [16]byte
}

func (r *fixedReader) Read(p []byte) (int, error) {
	n := copy(p, r.b[:])
	return n, nil
}
