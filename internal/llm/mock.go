package llm

import (
	"context"
	"sync"
)

// MockBackend is a test double for Backend.
type MockBackend struct {
	BackendName  string
	CompleteFunc func(ctx context.Context, req Request) (string, error)
}

func (m *MockBackend) Name() string { return m.BackendName }

func (m *MockBackend) Complete(ctx context.Context, req Request) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "mock response", nil
}

// MockResponder is a test double for Responder that records every request.
type MockResponder struct {
	RespondFunc func(ctx context.Context, req Request) Result

	mu       sync.Mutex
	requests []Request
}

func (m *MockResponder) Respond(ctx context.Context, req Request) Result {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, req)
	}
	return Success("mock response")
}

// Requests returns a copy of the requests seen so far.
func (m *MockResponder) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
