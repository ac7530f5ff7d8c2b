package http1

import (
	"io"

	"github.com/ember-web/ember/config"
	"github.com/ember-web/ember/http"
	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/codecutil"
	"github.com/ember-web/ember/transport"
)

// Body pulls the message body off the wire according to the framing derived
// from the head, transparently undoing content codings listed by the request.
// It is the raw source behind http.Body; pieces are produced on demand, and
// bytes past the body end are pushed back to the client for the next exchange.
type Body struct {
	client       transport.Client
	chunked      chunkedParser
	codecs       codecutil.Cache
	cfg          *config.Config
	kind         http.FramingKind
	bytesLeft    int64
	received     int64
	top          http.Fetcher
	bounded      boundedFetcher
}

func NewBody(cfg *config.Config, client transport.Client, codecs codecutil.Cache) *Body {
	return &Body{
		client:  client,
		chunked: newChunkedParser(cfg.Body.MaxChunkSize),
		codecs:  codecs,
		cfg:     cfg,
	}
}

// Reset arms the body for the next exchange. The framing is derived once here;
// ambiguous or oversized declarations fail before a single body byte is read.
func (b *Body) Reset(request *http.Request) error {
	framing, err := request.Framing()
	if err != nil {
		return err
	}

	if framing.Kind == http.FramingFixed && framing.Size > b.cfg.Body.MaxSize {
		return status.ErrBodyTooLarge
	}

	b.kind = framing.Kind
	b.bytesLeft = framing.Size
	b.received = 0
	b.top = b

	for i := len(request.ContentEncoding) - 1; i >= 0; i-- {
		instance := b.codecs.Get(request.ContentEncoding[i])
		if instance == nil {
			return status.ErrUnsupportedEncoding
		}

		if err = instance.ResetDecompressor(b.top, b.cfg.NET.ReadBufferSize); err != nil {
			return err
		}

		b.top = instance
	}

	if len(request.ContentEncoding) == 0 {
		request.Body.Reset(b)
	} else {
		// a compressed body legally tiny on the wire may expand unboundedly,
		// so the output of the decompression stack is capped as a whole.
		b.bounded = boundedFetcher{src: b.top, left: b.cfg.Body.MaxDecompressedSize}
		request.Body.Reset(&b.bounded)
	}

	return nil
}

// Fetch produces the next piece of the raw, still encoded body.
func (b *Body) Fetch() ([]byte, error) {
	switch b.kind {
	case http.FramingNone:
		return nil, io.EOF
	case http.FramingFixed:
		return b.fixed()
	case http.FramingChunked:
		return b.chunkedFetch()
	case http.FramingUntilClose:
		// passthrough until the peer shuts the transport down
		return b.client.Read()
	default:
		return nil, status.ErrInternalServerError
	}
}

func (b *Body) fixed() (body []byte, err error) {
	if b.bytesLeft == 0 {
		return nil, io.EOF
	}

	data, err := b.client.Read()
	if err != nil {
		return nil, err
	}

	if int64(len(data)) >= b.bytesLeft {
		body, data = data[:b.bytesLeft], data[b.bytesLeft:]
		b.client.Pushback(data)
		b.bytesLeft = 0
		err = io.EOF
	} else {
		b.bytesLeft -= int64(len(data))
		body = data
	}

	return body, err
}

func (b *Body) chunkedFetch() (body []byte, err error) {
	for {
		data, err := b.client.Read()
		if err != nil {
			return nil, err
		}

		chunk, extra, err := b.chunked.Parse(data)
		switch err {
		case nil, io.EOF:
		default:
			return nil, err
		}

		if b.received += int64(len(chunk)); b.received > b.cfg.Body.MaxSize {
			return nil, status.ErrBodyTooLarge
		}

		b.client.Pushback(extra)

		if len(chunk) > 0 || err == io.EOF {
			return chunk, err
		}
	}
}

// boundedFetcher caps the total output of a decompression stack.
type boundedFetcher struct {
	src  http.Fetcher
	left int64
}

func (b *boundedFetcher) Fetch() ([]byte, error) {
	data, err := b.src.Fetch()
	if b.left -= int64(len(data)); b.left < 0 {
		return nil, status.ErrDecompressionBomb
	}

	return data, err
}
