package transport

import (
	"net"
	"time"
)

// Client is the bidirectional byte channel the engine runs on top of. The engine
// never dials or listens itself; TCP/TLS connections are supplied externally and
// wrapped into this interface.
type Client interface {
	// Read returns a piece of data from the connection. The slice stays valid
	// until the next Read call.
	Read() ([]byte, error)
	// Pushback preserves a chunk of data from the previous read, so the next
	// Read returns it again. Used to hand leftover bytes over to the next
	// exchange.
	Pushback([]byte)
	Write([]byte) (int, error)
	// SetReadTimeout bounds all the subsequent Read calls. Zero disables the
	// deadline.
	SetReadTimeout(timeout time.Duration)
	Conn() net.Conn
	Remote() net.Addr
	Close() error
}

type client struct {
	conn    net.Conn
	buff    []byte
	pending []byte
	timeout time.Duration
}

func NewClient(conn net.Conn, buff []byte) Client {
	return &client{
		buff: buff,
		conn: conn,
	}
}

// Read reads data into the internal buffer and returns a piece of it back.
// Deadlines are handled automatically.
func (c *client) Read() ([]byte, error) {
	if len(c.pending) > 0 {
		pending := c.pending
		c.pending = nil

		return pending, nil
	}

	deadline := time.Time{}
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buff)
	return c.buff[:n], err
}

func (c *client) Pushback(b []byte) {
	c.pending = b
}

func (c *client) SetReadTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *client) Conn() net.Conn {
	return c.conn
}

func (c *client) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *client) Close() error {
	return c.conn.Close()
}
