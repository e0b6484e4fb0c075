package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MockPeer implements Peer for testing. It records sent frames, pings and
// close calls, and can be told to fail sends.
type MockPeer struct {
	mu         sync.Mutex
	sent       [][]byte
	pings      int
	closed     bool
	closeCode  int
	closeText  string
	terminated bool
	sendErr    error
	notify     chan struct{}
	addr       string
}

// NewMockPeer creates an open MockPeer.
func NewMockPeer() *MockPeer {
	return &MockPeer{notify: make(chan struct{}, 64), addr: "mock"}
}

// Send records data, or returns the configured error.
func (m *MockPeer) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrPeerClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Ping counts the liveness ping.
func (m *MockPeer) Ping() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrPeerClosed
	}
	m.pings++
	return nil
}

// Close records the close code and reason.
func (m *MockPeer) Close(code int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.closeCode = code
	m.closeText = reason
	return nil
}

// Terminate marks the peer as forcibly closed.
func (m *MockPeer) Terminate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.terminated = true
}

// Closed reports whether Close or Terminate was called.
func (m *MockPeer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// RemoteAddr returns a fixed placeholder address.
func (m *MockPeer) RemoteAddr() string { return m.addr }

// FailSends makes every later Send return err.
func (m *MockPeer) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Sent returns a copy of all recorded frames.
func (m *MockPeer) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Messages decodes every recorded frame as a JSON object.
func (m *MockPeer) Messages() ([]map[string]any, error) {
	var out []map[string]any
	for i, frame := range m.Sent() {
		var msg map[string]any
		if err := json.Unmarshal(frame, &msg); err != nil {
			return nil, fmt.Errorf("mock peer: frame %d: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// Pings returns how many pings were sent.
func (m *MockPeer) Pings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pings
}

// CloseCode returns the code and reason passed to Close.
func (m *MockPeer) CloseCode() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCode, m.closeText
}

// Terminated reports whether Terminate was called.
func (m *MockPeer) Terminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

// Delivered signals once per recorded frame, for tests waiting on a push.
func (m *MockPeer) Delivered() <-chan struct{} {
	return m.notify
}
