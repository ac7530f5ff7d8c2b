package http

import (
	"context"
	"net"

	"github.com/ember-web/ember/http/method"
	"github.com/ember-web/ember/http/proto"
	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/kv"
	"github.com/ember-web/ember/transport"
)

var zeroContext = context.Background()

type (
	Headers = *kv.Storage
	Header  = kv.Pair
)

// Request is a parsed request head plus the lazy body attached to it. Instances
// live as long as the connection does and are reset between exchanges; handlers
// must not retain them.
type Request struct {
	// Method is an enum representing the request method.
	Method method.Method
	// Target is the raw request target as it appeared on the request line. It is
	// guaranteed to consist of visible ASCII characters, but is otherwise opaque
	// to the engine: routing is somebody else's job.
	Target string
	// Protocol is the request protocol version.
	Protocol proto.Protocol
	// Headers holds header pairs in arrival order, duplicates preserved. Lookup
	// is case-insensitive. Values are raw octets.
	Headers Headers
	// ContentLength is the parsed Content-Length value, or -1 if the header
	// wasn't present.
	ContentLength int64
	// Chunked is set when Transfer-Encoding terminates with the chunked token.
	Chunked bool
	// Connection holds the raw Connection header value.
	Connection string
	// Upgrade holds the raw Upgrade header value, if any.
	Upgrade string
	// ContentEncoding lists the codings of the body in application order,
	// identity excluded.
	ContentEncoding []string
	// AcceptEncoding lists codings the client is willing to accept.
	AcceptEncoding []string
	// Remote holds the remote address. Note that this is generally not a good
	// way to identify a user, as there might be proxies in the middle.
	Remote net.Addr
	// Ctx is an opaque key/value side-channel for collaborators. It lives as
	// long as the connection does and is never cleared automatically.
	Ctx context.Context
	// Env contains a fixed set of contextual values for the exchange.
	Env Environment
	// Body provides access to the message body.
	Body *Body

	client     transport.Client
	response   *Response
	hijacked   bool
	hijackable bool
	onHijack   func() error
}

func NewRequest(client transport.Client, headers *kv.Storage, response *Response) *Request {
	return &Request{
		Method:        method.Unknown,
		Protocol:      proto.HTTP11,
		Headers:       headers,
		ContentLength: -1,
		Remote:        remoteOf(client),
		Ctx:           zeroContext,
		client:        client,
		response:      response,
	}
}

// Respond returns the response builder of this exchange.
//
// WARNING: the builder is cleared under the hood, so it must be filled anew
// each time.
func (r *Request) Respond() *Response {
	return r.response.Clear()
}

// Hijack passes the raw byte channel to the caller. The rest of the body is
// implicitly discarded first, and a 101 Switching Protocols head is written
// out if the request offered an upgrade. After that the engine applies no
// further HTTP framing to the connection.
//
// Hijacking is available only when the exchange owns the socket exclusively:
// requests with a body, upgrade offers and CONNECT requests. A pipelined
// bodyless exchange may be processed concurrently with socket reads, so for
// it Hijack fails.
func (r *Request) Hijack() (transport.Client, error) {
	if !r.hijackable {
		return nil, status.ErrHijackUnavailable
	}

	if err := r.Body.Discard(); err != nil {
		return nil, err
	}

	if r.onHijack != nil {
		if err := r.onHijack(); err != nil {
			return nil, err
		}
	}

	r.hijacked = true

	return r.client, nil
}

// AllowHijacking arms Hijack, optionally with a callback ran right before the
// raw channel is handed over. Called by the engine for exchanges owning the
// socket exclusively.
func (r *Request) AllowHijacking(preHandover func() error) {
	r.hijackable = true
	r.onHijack = preHandover
}

// Hijacked tells whether the connection was hijacked.
func (r *Request) Hijacked() bool {
	return r.hijacked
}

// Reset prepares the request for the next exchange on the same connection.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.Target = ""
	r.Headers.Clear()
	r.ContentLength = -1
	r.Chunked = false
	r.Connection = ""
	r.Upgrade = ""
	r.ContentEncoding = nil
	r.AcceptEncoding = nil
	r.Env = Environment{}
	r.hijacked = false
	r.hijackable = false
	r.onHijack = nil
}

// Environment is a fixed set of per-exchange values populated by the engine.
type Environment struct {
	// Error holds the fatal error of the exchange, if any. Set before the error
	// handler is invoked.
	Error error
	// PolicyViolation records a framing rule the response producer attempted to
	// break, e.g. attaching a body to a 204. The response is fixed up silently
	// and the violation is reported here.
	PolicyViolation error
}

// Handler turns a parsed request into a response. It is the upward-facing
// collaborator interface of the engine: routing, middleware and ergonomics
// all live behind it.
type Handler func(*Request) *Response

// ErrorHandler produces a response for a request that failed before or during
// the handler. The request may be only partially populated. Returning nil
// renders a default response for the error.
type ErrorHandler func(*Request, error) *Response

// Respond is the identity handler, returning an empty 200 response.
func Respond(request *Request) *Response {
	return request.Respond()
}

func remoteOf(client transport.Client) net.Addr {
	if client == nil {
		return nil
	}

	return client.Remote()
}
