package depth

import (
	"context"
	"sync"
)

// MockTracker is a test implementation of the Tracker interface.
type MockTracker struct {
	mu     sync.Mutex
	frame  *Frame
	err    error
	calls  int
	closed bool
}

// NewMockTracker creates a tracker that reports no hands.
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

// SetFrame sets the frame returned by Frame. nil means no hand in view.
func (m *MockTracker) SetFrame(f *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = f
}

// SetError sets the error returned by Frame.
func (m *MockTracker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Frame returns the configured frame or error.
func (m *MockTracker) Frame(ctx context.Context) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.closed {
		return nil, ErrClosed
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.frame, nil
}

// Calls returns the number of Frame calls.
func (m *MockTracker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the tracker closed.
func (m *MockTracker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockTracker) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
