package http

import (
	"io"

	"github.com/flrdv/uf"
)

// Fetcher hands out body pieces as they become available. It is the narrow
// capability interface all body sources implement: fixed-length, chunked,
// until-close and decompressing readers are interchangeable behind it.
//
// The returned slice stays valid until the next Fetch call. io.EOF accompanies
// (possibly along with data) the natural end of the body.
type Fetcher interface {
	Fetch() ([]byte, error)
}

// SizedFetcher optionally reports how many bytes the body is expected to
// produce in total. -1 stands for unknown.
type SizedFetcher interface {
	Fetcher
	SizeHint() int64
}

// BodyCallback is invoked on every body piece. Returning an error interrupts
// the consumption and passes the error back to the caller.
type BodyCallback func([]byte) error

// Body is a lazy, single-consumption view of the message body. Pieces are
// pulled from the wire on demand, so a slow consumer stalls the producer
// instead of buffering unboundedly.
type Body struct {
	fetcher  Fetcher
	prealloc int
	buff     []byte
	pending  []byte
	error    error
}

func NewBody(prealloc int) *Body {
	return &Body{prealloc: prealloc}
}

// Reset arms the body with a new source for the next exchange. Any state left
// over from the previous exchange is dropped.
func (b *Body) Reset(fetcher Fetcher) {
	b.fetcher = fetcher
	b.buff = b.buff[:0]
	b.pending = nil
	b.error = nil
}

// Fetch returns the next piece of the body. io.EOF signals the end.
func (b *Body) Fetch() ([]byte, error) {
	if b.error != nil {
		return nil, b.error
	}

	var data []byte
	data, b.error = b.fetcher.Fetch()

	return data, b.error
}

// Callback invokes cb for every piece of the body, including the piece
// delivered alongside io.EOF.
func (b *Body) Callback(cb BodyCallback) error {
	for {
		data, err := b.Fetch()
		switch err {
		case nil:
		case io.EOF:
			return cb(data)
		default:
			return err
		}

		if err = cb(data); err != nil {
			b.error = err
			return err
		}
	}
}

// Bytes collects the whole body at once.
func (b *Body) Bytes() ([]byte, error) {
	if len(b.buff) != 0 {
		return b.buff, nil
	}

	if b.buff == nil {
		b.buff = make([]byte, 0, b.prealloc)
	}

	for {
		data, err := b.Fetch()
		b.buff = append(b.buff, data...)
		switch err {
		case nil:
		case io.EOF:
			return b.buff, nil
		default:
			return nil, err
		}
	}
}

// String collects the whole body at once in a string representation.
func (b *Body) String() (string, error) {
	bytes, err := b.Bytes()
	return uf.B2S(bytes), err
}

// Read implements the io.Reader interface.
func (b *Body) Read(into []byte) (n int, err error) {
	if len(b.pending) == 0 {
		if b.error != nil {
			return 0, b.error
		}

		b.pending, err = b.fetcher.Fetch()
		b.error = err
	}

	n = copy(into, b.pending)
	b.pending = b.pending[n:]

	if len(b.pending) == 0 && b.error != nil {
		err = b.error
	} else {
		err = nil
	}

	return n, err
}

// Discard consumes the rest of the body (if any). Returns nil unless a
// networking or decode error is encountered.
func (b *Body) Discard() error {
	for b.error == nil {
		_, b.error = b.fetcher.Fetch()
	}

	if b.error == io.EOF {
		return nil
	}

	return b.error
}

// Error returns a previously encountered error, otherwise nil.
func (b *Body) Error() error {
	if b.error == io.EOF {
		return nil
	}

	return b.error
}
