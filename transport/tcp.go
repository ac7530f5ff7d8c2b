package transport

import (
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// acceptInterruptPeriod is how often the accept loop wakes up to check whether
// it was asked to stop.
const acceptInterruptPeriod = 500 * time.Millisecond

type listener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// TCP accepts raw TCP connections and hands them over to a callback, one
// goroutine per connection. Stopping is graceful: the accept loop quits first,
// then active connections are awaited up to a grace period.
type TCP struct {
	l    listener
	wg   sync.WaitGroup
	stop atomic.Bool
}

func NewTCP() *TCP {
	return new(TCP)
}

func (t *TCP) Bind(addr string) error {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return err
	}

	t.l, err = net.ListenTCP("tcp", tcpaddr)
	return err
}

// Addr returns the bound address.
func (t *TCP) Addr() net.Addr {
	return t.l.Addr()
}

// Listen runs the accept loop until Stop is called or the listener fails.
func (t *TCP) Listen(cb func(conn net.Conn)) error {
	for !t.stop.Load() {
		if err := t.l.SetDeadline(time.Now().Add(acceptInterruptPeriod)); err != nil {
			return err
		}

		conn, err := t.l.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			return err
		}

		t.wg.Add(1)
		go func(conn net.Conn) {
			defer t.wg.Done()
			cb(conn)
		}(conn)
	}

	return nil
}

// Stop makes the accept loop quit on its next wakeup.
func (t *TCP) Stop() {
	t.stop.Store(true)
}

func (t *TCP) Close() {
	_ = t.l.Close()
}

// Wait blocks until all the active connections are served, but no longer than
// the grace period.
func (t *TCP) Wait(grace time.Duration) {
	done := make(chan struct{})

	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
	}
}
