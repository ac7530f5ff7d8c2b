package dummy

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/ember-web/ember/transport"
)

var _ transport.Client = new(MockClient)

// MockClient replays the given data slices read by read, then reports io.EOF.
// Everything written into it is collected and can be inspected via Written.
// It is the raw-byte injection point for conformance and fuzz tests.
type MockClient struct {
	mu      sync.Mutex
	data    [][]byte
	tmp     []byte
	pointer int
	written []byte
	closed  bool
	looped  bool
}

func NewMockClient(data ...[]byte) *MockClient {
	return &MockClient{data: data}
}

// LoopReads makes the client replay its slices indefinitely instead of
// reporting io.EOF. Useful for keep-alive and benchmark scenarios.
func (m *MockClient) LoopReads() *MockClient {
	m.looped = true
	return m
}

func (m *MockClient) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.EOF
	}

	if len(m.tmp) > 0 {
		data := m.tmp
		m.tmp = nil

		return data, nil
	}

	if m.pointer >= len(m.data) {
		if !m.looped {
			return nil, io.EOF
		}

		m.pointer = 0
	}

	piece := m.data[m.pointer]
	m.pointer++

	return piece, nil
}

func (m *MockClient) Pushback(takeback []byte) {
	m.mu.Lock()
	m.tmp = takeback
	m.mu.Unlock()
}

func (m *MockClient) Write(p []byte) (int, error) {
	m.mu.Lock()
	m.written = append(m.written, p...)
	m.mu.Unlock()

	return len(p), nil
}

// Written returns everything flushed into the client so far.
func (m *MockClient) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.written
}

func (m *MockClient) SetReadTimeout(time.Duration) {}

func (m *MockClient) Conn() net.Conn {
	return nil
}

func (m *MockClient) Remote() net.Addr {
	return nil
}

func (m *MockClient) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	return nil
}

func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

// NewNopClient returns a client that has nothing to read and swallows writes.
func NewNopClient() transport.Client {
	return NewMockClient()
}
