package http1

import (
	"io"
	"strconv"

	"github.com/ember-web/ember/codec"
	"github.com/ember-web/ember/config"
	"github.com/ember-web/ember/http"
	"github.com/ember-web/ember/http/method"
	"github.com/ember-web/ember/http/proto"
	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/codecutil"
	"github.com/ember-web/ember/internal/response"
	"github.com/ember-web/ember/internal/strutil"
	"github.com/ember-web/ember/kv"
	"github.com/ember-web/ember/transport"
)

// serializer renders response heads and bodies into the wire format. The head
// is accumulated in a write buffer and flushed together with the first piece
// of the body; framing is picked automatically: literal bodies of known size
// travel with Content-Length, streams of unknown size and compressed bodies
// are chunked.
type serializer struct {
	cfg        *config.Config
	request    *http.Request
	client     transport.Client
	codecs     codecutil.Cache
	buff       []byte
	streamBuff []byte

	metConnection     bool
	metAcceptEncoding bool
}

func newSerializer(
	cfg *config.Config,
	client transport.Client,
	codecs codecutil.Cache,
	buff []byte,
) *serializer {
	return &serializer{
		cfg:    cfg,
		client: client,
		codecs: codecs,
		buff:   buff,
	}
}

// Upgrade renders and flushes an informational 101 Switching Protocols head,
// after which the engine applies no further framing to the connection.
func (s *serializer) Upgrade(request *http.Request) error {
	s.appendProtocol(request.Protocol)
	s.buff = append(s.buff, "101 Switching Protocols\r\n"...)

	s.appendKnownHeader("Connection: ", "upgrade")
	s.appendKnownHeader("Upgrade: ", request.Upgrade)

	s.crlf()

	return s.flush()
}

// Write renders the whole response and flushes it. close tells whether the
// connection is going to be torn down afterwards, which is reflected in the
// Connection header unless the handler has set one explicitly.
func (s *serializer) Write(request *http.Request, response *http.Response, close bool) error {
	s.request = request
	resp := response.Expose()

	s.appendProtocol(request.Protocol)
	s.appendStatus(resp)
	s.appendHeaders(resp)
	s.appendAutoHeaders(close)

	err := s.writeBody(resp)
	if err == nil {
		err = s.flush()
	}

	s.cleanup()

	return err
}

func (s *serializer) writeBody(resp *response.Fields) (err error) {
	if isBodylessCode(resp.Code) {
		// such a response must not carry a body no matter what the handler
		// attached to it. The body is dropped and the incident is reported
		// through the environment.
		if len(resp.Buffer) > 0 || resp.Stream != nil {
			s.request.Env.PolicyViolation = status.ErrBodyNotAllowed
		}

		s.crlf()
		return nil
	}

	if resp.Stream != nil {
		return s.writeStream(resp)
	}

	compressor := s.getCompressor(resp.ContentEncoding)
	if compressor == nil {
		s.appendContentLength(int64(len(resp.Buffer)))
		s.crlf()

		if s.request.Method == method.HEAD {
			return nil
		}

		return s.safeAppend(resp.Buffer)
	}

	// the compressed size isn't known until the body is actually compressed,
	// so the literal is sent chunked.
	s.appendKnownHeader("Transfer-Encoding: ", "chunked")
	s.crlf()

	if s.request.Method == method.HEAD {
		return nil
	}

	sink := chunkedWriter{s}
	compressor.ResetCompressor(sink)

	if _, err = compressor.Write(resp.Buffer); err != nil {
		return err
	}

	if err = compressor.Close(); err != nil {
		return err
	}

	return sink.Close()
}

func (s *serializer) writeStream(resp *response.Fields) (err error) {
	defer func() {
		if c, ok := resp.Stream.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()

	compressor := s.getCompressor(resp.ContentEncoding)

	length := resp.StreamSize
	if compressor != nil {
		length = -1
	}

	var encoder io.WriteCloser
	if length == -1 {
		s.appendKnownHeader("Transfer-Encoding: ", "chunked")
		encoder = chunkedWriter{s}
	} else {
		s.appendContentLength(length)
		encoder = identityWriter{s}
	}

	s.crlf()

	if s.request.Method == method.HEAD {
		return nil
	}

	sink := encoder
	if compressor != nil {
		compressor.ResetCompressor(sink)
		encoder = compressor
	}

	if err = s.copyStream(resp.Stream, encoder); err != nil {
		return err
	}

	if err = encoder.Close(); err != nil {
		return err
	}

	if compressor != nil {
		// the compressor flushed its remainder into the sink on Close; the sink
		// still has to terminate the framing itself.
		return sink.Close()
	}

	return nil
}

func (s *serializer) copyStream(stream io.Reader, encoder io.Writer) error {
	if cap(s.streamBuff) == 0 {
		s.streamBuff = make([]byte, s.cfg.NET.ReadBufferSize)
	}

	for {
		n, err := stream.Read(s.streamBuff)
		if n > 0 {
			if _, werr := encoder.Write(s.streamBuff[:n]); werr != nil {
				return werr
			}
		}

		switch err {
		case nil:
		case io.EOF:
			return nil
		default:
			return err
		}
	}
}

func (s *serializer) getCompressor(token string) codec.Compressor {
	if len(token) == 0 {
		return nil
	}

	compressor := s.codecs.Get(token)
	if compressor != nil {
		s.appendKnownHeader("Content-Encoding: ", token)
	}

	return compressor
}

// safeAppend appends data into the limited write buffer, flushing it as many
// times as needed on the way.
func (s *serializer) safeAppend(data []byte) error {
	for len(data) > 0 {
		freeSpace := cap(s.buff) - len(s.buff)

		if len(data) <= freeSpace {
			s.buff = append(s.buff, data...)
			return nil
		}

		s.buff = append(s.buff, data[:freeSpace]...)
		if err := s.flush(); err != nil {
			return err
		}

		data = data[freeSpace:]
	}

	return nil
}

func (s *serializer) flush() (err error) {
	if len(s.buff) > 0 {
		_, err = s.client.Write(s.buff)
		s.buff = s.buff[:0]
	}

	return err
}

func (s *serializer) appendStatus(fields *response.Fields) {
	if len(fields.Status) == 0 {
		if line := status.Line(fields.Code); len(line) > 0 {
			s.buff = append(s.buff, line...)
			s.crlf()
			return
		}
	}

	s.buff = strconv.AppendUint(s.buff, uint64(fields.Code), 10)
	s.sp()

	text := fields.Status
	if len(text) == 0 {
		text = string(status.Text(fields.Code))
	}

	s.buff = append(s.buff, text...)
	s.crlf()
}

func (s *serializer) appendHeaders(fields *response.Fields) {
	for _, header := range fields.Headers {
		s.appendHeader(header)

		switch len(header.Key) {
		case 10:
			s.metConnection = s.metConnection || strutil.CmpFold(header.Key, "Connection")
		case 15:
			s.metAcceptEncoding = s.metAcceptEncoding || strutil.CmpFold(header.Key, "Accept-Encoding")
		}
	}
}

// appendAutoHeaders writes the headers the engine owns, unless the handler
// overrode them explicitly.
func (s *serializer) appendAutoHeaders(close bool) {
	if !s.metConnection {
		if close {
			s.appendKnownHeader("Connection: ", "close")
		} else if s.request.Protocol == proto.HTTP10 {
			s.appendKnownHeader("Connection: ", "keep-alive")
		}
	}

	if !s.metAcceptEncoding {
		s.appendKnownHeader("Accept-Encoding: ", s.codecs.AcceptEncoding())
	}
}

func (s *serializer) appendHeader(header kv.Pair) {
	s.buff = append(s.buff, header.Key...)
	s.colonsp()
	s.buff = append(s.buff, header.Value...)
	s.crlf()
}

// appendKnownHeader differs from appendHeader only by the fact that the key is
// known to already have a colon and a space included.
func (s *serializer) appendKnownHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *serializer) appendContentLength(value int64) {
	s.buff = append(s.buff, "Content-Length: "...)
	s.buff = strconv.AppendUint(s.buff, uint64(value), 10)
	s.crlf()
}

func (s *serializer) appendProtocol(protocol proto.Protocol) {
	if protocol == proto.Unknown {
		// the parser had no chance of reaching the protocol if the request line
		// was malformed early on.
		protocol = proto.HTTP11
	}

	s.buff = append(s.buff, protocol.String()...)
	s.sp()
}

func (s *serializer) sp() {
	s.buff = append(s.buff, ' ')
}

func (s *serializer) colonsp() {
	s.buff = append(s.buff, ':', ' ')
}

const crlf = "\r\n"

func (s *serializer) crlf() {
	s.buff = append(s.buff, crlf...)
}

func (s *serializer) cleanup() {
	s.metConnection = false
	s.metAcceptEncoding = false
}

func isBodylessCode(code status.Code) bool {
	return code < 200 || code == status.NoContent || code == status.NotModified
}

var chunkZeroTrailer = []byte("0\r\n\r\n")

// chunkedWriter frames everything written into it as chunks of the chunked
// transfer coding. Close terminates the body with a zero chunk.
type chunkedWriter struct {
	s *serializer
}

func (c chunkedWriter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		// a zero-length chunk would terminate the body prematurely.
		return 0, nil
	}

	s := c.s
	s.buff = strconv.AppendUint(s.buff, uint64(len(b)), 16)
	s.crlf()

	if err := s.safeAppend(b); err != nil {
		return 0, err
	}

	s.crlf()

	return len(b), nil
}

func (c chunkedWriter) Close() error {
	if err := c.s.safeAppend(chunkZeroTrailer); err != nil {
		return err
	}

	return c.s.flush()
}

type identityWriter struct {
	s *serializer
}

func (i identityWriter) Write(p []byte) (int, error) {
	err := i.s.safeAppend(p)
	return len(p), err
}

func (i identityWriter) Close() error {
	return i.s.flush()
}
