package http

import (
	"io"

	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/response"
	"github.com/ember-web/ember/kv"
)

// Response is a builder for a response head plus a lazy body producer. Instances
// are pooled per-connection and must not outlive the exchange they were produced
// in.
type Response struct {
	fields response.Fields
}

func NewResponse() *Response {
	return &Response{
		fields: response.Fields{
			Code: status.OK,
		},
	}
}

// Code sets the response status code.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Status overrides the standard status text. Has no effect on anything else,
// including how the client interprets the response.
func (r *Response) Status(text string) *Response {
	r.fields.Status = text
	return r
}

// Header appends a header field. Repeated keys are serialized as repeated
// fields in insertion order.
func (r *Response) Header(key, value string) *Response {
	r.fields.Headers = append(r.fields.Headers, kv.Pair{Key: key, Value: value})
	return r
}

// String sets a literal string body. The size is known, so Content-Length
// framing is used.
func (r *Response) String(body string) *Response {
	return r.Bytes([]byte(body))
}

// Bytes sets a literal byte body. The slice isn't copied and must stay intact
// until the response is written.
func (r *Response) Bytes(body []byte) *Response {
	r.fields.Buffer = body
	r.fields.Stream = nil
	r.fields.StreamSize = int64(len(body))
	return r
}

// Stream attaches a lazy body producer. Pass a size of -1 if the total size
// isn't known in advance; the body is then framed with chunked transfer
// encoding. If the reader implements io.Closer, it is closed after the body
// is written.
func (r *Response) Stream(reader io.Reader, size int64) *Response {
	r.fields.Buffer = nil
	r.fields.Stream = reader
	r.fields.StreamSize = size
	return r
}

// Compress asks the serializer to compress the body with the codec registered
// under the token. Unknown tokens are ignored and the body is sent as-is.
func (r *Response) Compress(token string) *Response {
	r.fields.ContentEncoding = token
	return r
}

// Error renders an error as a deterministic plain-text response. HTTPError
// values carry their own code; any other error collapses into 500.
func (r *Response) Error(err error) *Response {
	code := status.InternalServerError
	if http, ok := err.(status.HTTPError); ok {
		code = http.Code
	}

	return r.Code(code).String(err.Error())
}

// Expose returns the underlying disassembled head. Used by the serializer and
// the test harness; handlers normally have no reason to touch it.
func (r *Response) Expose() *response.Fields {
	return &r.fields
}

// Clear resets the builder for reuse within the next exchange.
func (r *Response) Clear() *Response {
	r.fields.Clear()
	return r
}
