// Package httptest contains helpers for conformance tests: rendering raw
// requests out of structured fields and disassembling raw responses back into
// them. Implemented independently from the engine's own parser and serializer,
// so the two sides can check each other.
package httptest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ember-web/ember/kv"
)

// Request is a request head in structured form, rendered into raw bytes via
// Serialize.
type Request struct {
	Method  string
	Target  string
	Proto   string
	Headers []kv.Pair
	Body    string
}

// Serialize renders the request into its wire form. Framing headers are taken
// as given: the caller is responsible for attaching Content-Length or
// Transfer-Encoding matching the body.
func (r Request) Serialize() []byte {
	var buff []byte

	buff = append(buff, r.Method...)
	buff = append(buff, ' ')
	buff = append(buff, r.Target...)
	buff = append(buff, ' ')

	protocol := r.Proto
	if len(protocol) == 0 {
		protocol = "HTTP/1.1"
	}

	buff = append(buff, protocol...)
	buff = crlf(buff)

	for _, h := range r.Headers {
		buff = append(buff, h.Key...)
		buff = append(buff, ':', ' ')
		buff = append(buff, h.Value...)
		buff = crlf(buff)
	}

	buff = crlf(buff)
	buff = append(buff, r.Body...)

	return buff
}

// Chunk renders the body as a single chunk followed by the zero terminator,
// for building chunked requests by hand.
func Chunk(body string) string {
	if len(body) == 0 {
		return "0\r\n\r\n"
	}

	return fmt.Sprintf("%x\r\n%s\r\n0\r\n\r\n", len(body), body)
}

func crlf(b []byte) []byte {
	return append(b, '\r', '\n')
}

// Response is a parsed raw response.
type Response struct {
	Proto   string
	Code    int
	Status  string
	Headers *kv.Storage
	Body    string
}

// ParseResponse disassembles a single raw response, decoding the body framing
// on the way, and returns whatever bytes follow it.
func ParseResponse(raw string) (response Response, rest string, err error) {
	response.Headers = kv.New()

	response.Proto, raw, _ = strings.Cut(raw, " ")
	if len(raw) == 0 {
		return response, "", fmt.Errorf("bad status line: lacking code and status")
	}

	var code string
	code, raw, _ = strings.Cut(raw, " ")
	response.Code, err = strconv.Atoi(code)
	if err != nil {
		return response, "", err
	}

	var found bool
	response.Status, raw, found = strings.Cut(raw, "\r\n")
	if !found {
		return response, "", fmt.Errorf("bad response: no CRLF after the status line")
	}

	for {
		var headerLine string
		headerLine, raw, found = strings.Cut(raw, "\r\n")
		if !found {
			return response, "", fmt.Errorf("bad header line %q: no breaking CRLF", headerLine)
		}

		if len(headerLine) == 0 {
			break
		}

		key, value, ok := strings.Cut(headerLine, ": ")
		if !ok {
			return response, "", fmt.Errorf("bad header line %q: no value", headerLine)
		}

		response.Headers.Add(key, value)
	}

	response.Body, rest, err = parseBody(response, raw)

	return response, rest, err
}

func parseBody(response Response, data string) (body, rest string, err error) {
	if hasChunked(response.Headers.Values("Transfer-Encoding")) {
		return parseChunkedBody(data)
	}

	length := response.Headers.Value("Content-Length")
	if len(length) == 0 {
		// no framing headers at all: everything up to the connection close
		// belongs to the body
		return data, "", nil
	}

	n, err := strconv.Atoi(length)
	if err != nil {
		return "", "", err
	}

	if len(data) < n {
		return "", "", fmt.Errorf("bad body: %d bytes declared, %d received", n, len(data))
	}

	return data[:n], data[n:], nil
}

func parseChunkedBody(data string) (body, rest string, err error) {
	var buff []byte

	for {
		line, tail, found := strings.Cut(data, "\r\n")
		if !found {
			return "", "", fmt.Errorf("bad chunked body: no CRLF after a chunk size")
		}

		if ext := strings.IndexByte(line, ';'); ext != -1 {
			line = line[:ext]
		}

		size, err := strconv.ParseUint(line, 16, 64)
		if err != nil {
			return "", "", fmt.Errorf("bad chunk size %q: %s", line, err)
		}

		if size == 0 {
			// the terminator is followed by optional trailers and a blank line
			for {
				var trailer string
				trailer, tail, found = strings.Cut(tail, "\r\n")
				if !found {
					return "", "", fmt.Errorf("bad chunked body: unterminated trailer section")
				}

				if len(trailer) == 0 {
					return string(buff), tail, nil
				}
			}
		}

		if uint64(len(tail)) < size+2 {
			return "", "", fmt.Errorf("bad chunked body: truncated chunk")
		}

		buff = append(buff, tail[:size]...)
		if tail[size:size+2] != "\r\n" {
			return "", "", fmt.Errorf("bad chunked body: no CRLF after chunk data")
		}

		data = tail[size+2:]
	}
}

func hasChunked(tokens []string) bool {
	for _, token := range tokens {
		if strings.EqualFold(token, "chunked") {
			return true
		}
	}

	return false
}
