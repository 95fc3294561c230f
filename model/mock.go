package model

import (
	"context"
	"fmt"
	"sync"
)

// MockStep is one scripted backend turn for tests and examples.
type MockStep struct {
	Content   string
	ToolCalls []ToolCall
	Refusal   string
	Err       error
}

// MockBackend replays a script of responses and records every request it
// receives. When the script runs out it answers with a fixed fallback, so
// loops always terminate in tests.
type MockBackend struct {
	mu       sync.Mutex
	steps    []MockStep
	next     int
	requests []Request
	info     Info
}

// NewMockBackend creates a mock backend with the given script.
func NewMockBackend(steps ...MockStep) *MockBackend {
	return &MockBackend{
		steps: steps,
		info:  Info{Name: "mock-model", Provider: "mock"},
	}
}

// Enqueue appends steps to the script.
func (m *MockBackend) Enqueue(steps ...MockStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Requests returns a copy of every request seen so far.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Complete implements Backend by replaying the next scripted step.
func (m *MockBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var step MockStep
	if m.next < len(m.steps) {
		step = m.steps[m.next]
		m.next++
	} else {
		step = MockStep{Content: fmt.Sprintf("mock response %d", m.next)}
		m.next++
	}
	m.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}

	return &Response{
		Content:      step.Content,
		ToolCalls:    step.ToolCalls,
		Refusal:      step.Refusal,
		FinishReason: finishReason(step),
	}, nil
}

// Info implements Backend.
func (m *MockBackend) Info() Info { return m.info }

func finishReason(step MockStep) string {
	if len(step.ToolCalls) > 0 {
		return "tool_calls"
	}
	return "stop"
}
