package http1

import (
	"bytes"
	"math"
	"strings"

	"github.com/flrdv/uf"

	"github.com/ember-web/ember/config"
	"github.com/ember-web/ember/http"
	"github.com/ember-web/ember/http/method"
	"github.com/ember-web/ember/http/proto"
	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/buffer"
	"github.com/ember-web/ember/internal/strutil"
)

type parserState uint8

const (
	eMethod parserState = iota + 1
	eTarget
	eProtocol
	eHeaderKey
	eHeaderValue
	eHeaderValueCRLFCR
)

// Parser is an incremental request head parser. Parse may be fed the head in
// arbitrarily small pieces, state is carried over between the calls, and the
// result never depends on where the pieces were split. A head is either
// accepted as a whole or rejected with an error naming the first offending
// construct.
type Parser struct {
	state           parserState
	metTE           bool
	headersNumber   int
	cfg             *config.Config
	request         *http.Request
	requestLine     *buffer.Buffer
	headers         *buffer.Buffer
	key             string
	acceptEncodings []string
	encodings       []string
}

func NewParser(cfg *config.Config, request *http.Request, requestLine, headers *buffer.Buffer) *Parser {
	return &Parser{
		cfg:             cfg,
		state:           eMethod,
		request:         request,
		requestLine:     requestLine,
		headers:         headers,
		acceptEncodings: make([]string, 0, cfg.Headers.MaxAcceptEncodingTokens),
		encodings:       make([]string, 0, cfg.Headers.MaxEncodingTokens),
	}
}

// Parse consumes the next piece of the head. Returns done=false when more data
// is needed; done=true with extra holding the bytes past the head otherwise.
// A returned error is fatal for the whole connection.
func (p *Parser) Parse(data []byte) (done bool, extra []byte, err error) {
	request := p.request
	requestLine := p.requestLine
	headers := p.headers
	headersCfg := p.cfg.Headers

	switch p.state {
	case eMethod:
		goto method
	case eTarget:
		goto target
	case eProtocol:
		goto protocol
	case eHeaderKey:
		goto headerKey
	case eHeaderValue:
		goto headerValue
	case eHeaderValueCRLFCR:
		goto headerValueCRLFCR
	default:
		panic("unreachable code")
	}

method:
	for i := 0; i < len(data); i++ {
		if data[i] == ' ' {
			var methodValue []byte
			if requestLine.SegmentLength() == 0 {
				methodValue = data[:i]
			} else {
				if !requestLine.Append(data[:i]) {
					return true, nil, status.ErrTooLongRequestLine
				}

				methodValue = requestLine.Preview()
				requestLine.Discard()
			}

			if len(methodValue) == 0 {
				return true, nil, status.ErrBadRequest
			}

			request.Method = method.Parse(uf.B2S(methodValue))
			if request.Method == method.Unknown {
				return true, nil, status.ErrMethodNotImplemented
			}

			data = data[i+1:]
			goto target
		}
	}

	if !requestLine.Append(data) {
		return true, nil, status.ErrTooLongRequestLine
	}

	p.state = eMethod
	return false, nil, nil

target:
	{
		// the target stays raw: no %-decoding, no splitting into path and query.
		// The only promise made downstream is that it consists of visible ASCII.
		checkpoint := 0

		for i := 0; i < len(data); i++ {
			char := data[i]
			if char == ' ' {
				if !requestLine.Append(data[checkpoint:i]) {
					return true, nil, status.ErrURITooLong
				}

				request.Target = uf.B2S(requestLine.Finish())
				if len(request.Target) == 0 {
					return true, nil, status.ErrBadRequest
				}

				data = data[i+1:]
				goto protocol
			}

			if isProhibitedChar(char) {
				return true, nil, status.ErrBadRequest
			}
		}

		if !requestLine.Append(data[checkpoint:]) {
			return true, nil, status.ErrURITooLong
		}

		p.state = eTarget
		return false, nil, nil
	}

protocol:
	{
		boundary := bytes.IndexByte(data, '\n')
		if boundary == -1 {
			if !requestLine.Append(data) {
				return true, nil, status.ErrTooLongRequestLine
			}

			p.state = eProtocol
			return false, nil, nil
		}

		var protocol proto.Protocol
		if requestLine.SegmentLength() == 0 {
			protocol = proto.FromBytes(stripCR(data[:boundary]))
		} else {
			if !requestLine.Append(data[:boundary]) {
				return true, nil, status.ErrTooLongRequestLine
			}

			protocol = proto.FromBytes(stripCR(requestLine.Preview()))
		}

		if protocol == proto.Unknown {
			return true, nil, status.ErrHTTPVersionNotSupported
		}

		request.Protocol = protocol
		data = data[boundary+1:]
		// fallthrough to headerKey
	}

headerKey:
	{
		if len(data) == 0 {
			p.state = eHeaderKey
			return false, nil, nil
		}

		switch data[0] {
		case '\n':
			if headers.SegmentLength() > 0 {
				// a partially buffered key ran into a line terminator
				// without ever seeing a colon.
				return true, nil, status.ErrBadHeaderName
			}

			p.cleanup()

			return true, data[1:], nil
		case '\r':
			if headers.SegmentLength() > 0 {
				return true, nil, status.ErrBadHeaderName
			}

			data = data[1:]
			goto headerValueCRLFCR
		case ' ', '\t':
			// a continuation line. Obsolete and a known smuggling vector, so
			// rejected instead of unfolded.
			return true, nil, status.ErrObsoleteLineFolding
		}

		colon := bytes.IndexByte(data, ':')
		if colon == -1 {
			if !headers.Append(data) {
				return true, nil, status.ErrHeaderFieldsTooLarge
			}

			p.state = eHeaderKey
			return false, nil, nil
		}

		if !headers.Append(data[:colon]) {
			return true, nil, status.ErrHeaderFieldsTooLarge
		}

		key := uf.B2S(headers.Finish())
		if !strutil.IsToken(key) {
			return true, nil, status.ErrBadHeaderName
		}

		p.key = key
		data = data[colon+1:]

		if p.headersNumber++; p.headersNumber > headersCfg.Number.Maximal {
			return true, nil, status.ErrTooManyHeaders
		}

		// fallthrough to headerValue
	}

headerValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !headers.Append(data) {
				return true, nil, status.ErrHeaderFieldsTooLarge
			}

			p.state = eHeaderValue
			return false, nil, nil
		}

		if !headers.Append(data[:lf]) {
			return true, nil, status.ErrHeaderFieldsTooLarge
		}

		if headers.SegmentLength() > 0 && headers.Preview()[headers.SegmentLength()-1] == '\r' {
			headers.Trunc(1)
		}

		raw := headers.Preview()
		for _, char := range raw {
			if !strutil.IsFieldValueChar(char) {
				return true, nil, status.ErrBadHeaderValue
			}
		}

		headers.Trunc(len(raw) - len(trimSuffixSpaces(raw)))
		data = data[lf+1:]
		value := uf.B2S(trimPrefixSpaces(headers.Finish()))

		key := p.key
		request.Headers.Add(key, value)

		switch len(key) {
		case 7:
			if strutil.CmpFold(key, "Upgrade") {
				request.Upgrade = value
			}
		case 10:
			if strutil.CmpFold(key, "Connection") {
				request.Connection = value
			}
		case 14:
			if strutil.CmpFold(key, "Content-Length") {
				if err = p.contentLength(value); err != nil {
					return true, nil, err
				}
			}
		case 15:
			if strutil.CmpFold(key, "Accept-Encoding") {
				p.acceptEncodings, request.AcceptEncoding, _ = splitTokens(p.acceptEncodings, value)
			}
		case 16:
			if strutil.CmpFold(key, "Content-Encoding") {
				p.encodings, request.ContentEncoding, err = splitTokens(p.encodings, value)
				if err != nil {
					return true, nil, err
				}
			}
		case 17:
			if strutil.CmpFold(key, "Transfer-Encoding") {
				if err = p.transferEncoding(value); err != nil {
					return true, nil, err
				}
			}
		}

		goto headerKey
	}

headerValueCRLFCR:
	if len(data) == 0 {
		p.state = eHeaderValueCRLFCR
		return false, nil, nil
	}

	if data[0] == '\n' {
		p.cleanup()

		return true, data[1:], nil
	}

	return true, nil, status.ErrBadRequest
}

// contentLength parses and validates a complete Content-Length value. A repeated
// header is tolerated only when it repeats the exact same number.
func (p *Parser) contentLength(value string) error {
	if len(value) == 0 {
		return status.ErrBadContentLength
	}

	var n int64
	for i := 0; i < len(value); i++ {
		char := value[i]
		if char < '0' || char > '9' {
			return status.ErrBadContentLength
		}

		if n > (math.MaxInt64-int64(char-'0'))/10 {
			return status.ErrBadContentLength
		}

		n = n*10 + int64(char-'0')
	}

	if prev := p.request.ContentLength; prev >= 0 && prev != n {
		return status.ErrBadContentLength
	}

	p.request.ContentLength = n
	return nil
}

// transferEncoding validates a Transfer-Encoding value. The only coding the
// engine applies itself is chunked, and it must terminate the list; anything
// before it would require transparent transfer decoding, which isn't provided.
func (p *Parser) transferEncoding(value string) error {
	if p.metTE {
		return status.ErrBadEncoding
	}

	p.metTE = true

	var (
		toks []string
		err  error
	)

	p.encodings, toks, err = splitTokens(p.encodings, value)
	if err != nil {
		return err
	}

	if len(toks) == 0 {
		return status.ErrBadEncoding
	}

	if !strutil.CmpFold(toks[len(toks)-1], "chunked") {
		return status.ErrBadEncoding
	}

	if len(toks) > 1 {
		return status.ErrUnsupportedEncoding
	}

	p.request.Chunked = true
	return nil
}

func (p *Parser) cleanup() {
	p.metTE = false
	p.headersNumber = 0
	p.requestLine.Clear()
	p.headers.Clear()
	p.acceptEncodings = p.acceptEncodings[:0]
	p.encodings = p.encodings[:0]
	p.state = eMethod
}

func splitTokens(buff []string, value string) (alteredBuff, toks []string, err error) {
	var token string
	offset := len(buff)

	for len(value) > 0 {
		comma := strings.IndexByte(value, ',')
		if comma == -1 {
			token, value = value, ""
		} else {
			token, value = value[:comma], value[comma+1:]
		}

		token = strutil.StripWS(strutil.CutQualifier(token))
		if len(token) == 0 {
			return buff, nil, status.ErrBadEncoding
		}

		if len(buff) >= cap(buff) {
			return buff, nil, status.ErrTooManyEncodingTokens
		}

		if strutil.CmpFold(token, "identity") {
			continue
		}

		buff = append(buff, token)
	}

	return buff, buff[offset:], nil
}

func trimPrefixSpaces(b []byte) []byte {
	for i, char := range b {
		if char != ' ' && char != '\t' {
			return b[i:]
		}
	}

	return b[:0]
}

func trimSuffixSpaces(b []byte) []byte {
	for i := len(b); i > 0; i-- {
		if b[i-1] != ' ' && b[i-1] != '\t' {
			return b[:i]
		}
	}

	return b[:0]
}

func stripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}

	return b
}

func isProhibitedChar(c byte) bool {
	return c < 0x21 || c > 0x7e
}
