package response

import (
	"io"

	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/kv"
)

// Fields is the response head in its disassembled form. The http.Response builder
// is a thin fluent wrapper around it; the serializer consumes it directly.
type Fields struct {
	// Code is the response status code.
	Code status.Code
	// Status is a custom status text. If empty, the standard text for the code
	// is used.
	Status string
	// Headers are serialized in insertion order, duplicates preserved.
	Headers []kv.Pair
	// Buffer holds a literal body of a known size. Takes precedence over Stream.
	Buffer []byte
	// Stream produces the body lazily. StreamSize of -1 means the size isn't
	// known in advance and chunked framing is applied.
	Stream     io.Reader
	StreamSize int64
	// ContentEncoding requests the body to be compressed with the codec
	// registered under the token.
	ContentEncoding string
}

func (f *Fields) Clear() {
	f.Code = status.OK
	f.Status = ""
	f.Headers = f.Headers[:0]
	f.Buffer = nil
	f.Stream = nil
	f.StreamSize = 0
	f.ContentEncoding = ""
}
