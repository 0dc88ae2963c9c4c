// Package mock provides a scripted provider for tests and offline runs.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/GoCodeAlone/pacer/provider"
)

const defaultResponse = `{"estimated_hours": 2, "complexity": "medium", "suggested_tags": ["general"], "breakdown": "scripted estimate"}`

// MockProvider implements provider.Provider for testing.
// It cycles through scripted responses and can simulate failures and latency.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	idx       int
	err       error
	delay     time.Duration
	calls     [][]provider.Message
}

// New creates a MockProvider that cycles through the given responses.
func New(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// WithError makes every Chat call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.err = err
	return m
}

// WithDelay makes Chat wait d before answering, or until ctx is done.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.delay = d
	return m
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Chat returns the next scripted response, cycling through the queue.
func (m *MockProvider) Chat(ctx context.Context, messages []provider.Message) (*provider.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	delay, err := m.delay, m.err
	resp := defaultResponse
	if len(m.responses) > 0 {
		resp = m.responses[m.idx%len(m.responses)]
		m.idx++
	}
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, err
	}
	return &provider.Response{
		Content: resp,
		Usage:   provider.Usage{OutputTokens: len(resp)},
	}, nil
}

// Calls returns the conversations received so far.
func (m *MockProvider) Calls() [][]provider.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]provider.Message(nil), m.calls...)
}
