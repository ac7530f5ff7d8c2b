package http1

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ember-web/ember/config"
	"github.com/ember-web/ember/http"
	"github.com/ember-web/ember/http/method"
	"github.com/ember-web/ember/http/proto"
	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/buffer"
	"github.com/ember-web/ember/kv"
	"github.com/ember-web/ember/transport/dummy"
)

func getParser(cfg *config.Config) (*Parser, *http.Request) {
	request := http.NewRequest(dummy.NewNopClient(), kv.New(), http.NewResponse())
	request.Body = http.NewBody(cfg.Body.BufferPrealloc)
	requestLine := buffer.New(cfg.URI.RequestLineSize.Default, cfg.URI.RequestLineSize.Maximal)
	headers := buffer.New(cfg.Headers.Space.Default, cfg.Headers.Space.Maximal)

	return NewParser(cfg, request, requestLine, headers), request
}

func splitIntoParts(req []byte, n int) (parts [][]byte) {
	for i := 0; i < len(req); i += n {
		end := min(i+n, len(req))
		parts = append(parts, req[i:end])
	}

	return parts
}

func feedPartially(p *Parser, raw []byte, n int) (done bool, extra []byte, err error) {
	parts := splitIntoParts(raw, n)

	for i, piece := range parts {
		done, extra, err = p.Parse(piece)
		if err != nil {
			return done, extra, err
		}
		if done {
			if i+1 < len(parts) {
				return true, extra, errors.New("not all pieces were fed")
			}

			break
		}
	}

	return done, extra, err
}

type wantedRequest struct {
	Headers  map[string][]string
	Target   string
	Method   method.Method
	Protocol proto.Protocol
}

func compareRequests(t *testing.T, wanted wantedRequest, actual *http.Request) {
	require.Equal(t, wanted.Method, actual.Method)
	require.Equal(t, wanted.Target, actual.Target)
	require.Equal(t, wanted.Protocol, actual.Protocol)

	for key, values := range wanted.Headers {
		got := actual.Headers.Values(key)
		require.Equal(t, values, append([]string(nil), got...), key)
	}
}

func TestParser(t *testing.T) {
	cfg := config.Default()
	cfg.Headers.MaxEncodingTokens = 3

	t.Run("simple GET", func(t *testing.T) {
		parser, request := getParser(cfg)
		done, extra, err := parser.Parse([]byte("GET / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, extra)

		compareRequests(t, wantedRequest{
			Method:   method.GET,
			Target:   "/",
			Protocol: proto.HTTP11,
		}, request)
	})

	t.Run("GET with headers", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET /kittens?color=black HTTP/1.1\r\nHello: World!\r\nEaster: Egg\r\n\r\n"
		done, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, extra)

		compareRequests(t, wantedRequest{
			Method:   method.GET,
			Target:   "/kittens?color=black",
			Protocol: proto.HTTP11,
			Headers: map[string][]string{
				"hello":  {"World!"},
				"easter": {"Egg"},
			},
		}, request)
	})

	t.Run("target stays raw", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET /a%20b/..//c?q=%2F#no HTTP/1.1\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, "/a%20b/..//c?q=%2F#no", request.Target)
	})

	t.Run("multiple header values", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nAccept: one,two\r\nAccept: three\r\n\r\n"
		done, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)

		compareRequests(t, wantedRequest{
			Method:   method.GET,
			Target:   "/",
			Protocol: proto.HTTP11,
			Headers: map[string][]string{
				"accept": {"one,two", "three"},
			},
		}, request)
	})

	t.Run("only lf", func(t *testing.T) {
		parser, request := getParser(cfg)
		done, _, err := parser.Parse([]byte("GET / HTTP/1.1\nHello: World!\n\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "World!", request.Headers.Value("hello"))
	})

	t.Run("split at every boundary", func(t *testing.T) {
		raw := "POST /split HTTP/1.1\r\nHello: World!\r\nContent-Length: 13\r\n\r\n"
		parser, request := getParser(cfg)

		for i := 1; i < len(raw); i++ {
			done, extra, err := feedPartially(parser, []byte(raw), i)
			require.NoError(t, err, i)
			require.True(t, done, i)
			require.Empty(t, extra)

			compareRequests(t, wantedRequest{
				Method:   method.POST,
				Target:   "/split",
				Protocol: proto.HTTP11,
				Headers: map[string][]string{
					"hello":          {"World!"},
					"content-length": {"13"},
				},
			}, request)
			require.Equal(t, int64(13), request.ContentLength)
			request.Reset()
		}
	})

	t.Run("content length", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nContent-Length: 13\r\n\r\nHello, world!"
		done, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "Hello, world!", string(extra))
		require.Equal(t, int64(13), request.ContentLength)
		require.Equal(t, "13", request.Headers.Value("content-length"))
	})

	t.Run("repeated equal content lengths", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nContent-Length: 13\r\nContent-Length: 13\r\n\r\n"
		done, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, int64(13), request.ContentLength)
	})

	t.Run("conflicting content lengths", func(t *testing.T) {
		parser, _ := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nContent-Length: 13\r\nContent-Length: 14\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrBadContentLength)
	})

	t.Run("malformed content length", func(t *testing.T) {
		for _, value := range []string{"13a", "-1", "", "9223372036854775808"} {
			parser, _ := getParser(cfg)
			raw := "GET / HTTP/1.1\r\nContent-Length: " + value + "\r\n\r\n"
			_, _, err := parser.Parse([]byte(raw))
			require.ErrorIs(t, err, status.ErrBadContentLength, value)
		}
	})

	t.Run("connection and upgrade", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, "Upgrade", request.Connection)
		require.Equal(t, "websocket", request.Upgrade)
	})

	t.Run("transfer and content encodings", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nContent-Encoding: gzip, deflate\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.True(t, request.Chunked)
		require.Equal(t, []string{"gzip", "deflate"}, request.ContentEncoding)
	})

	t.Run("chunked must terminate the TE list", func(t *testing.T) {
		parser, _ := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nTransfer-Encoding: chunked, gzip\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrBadEncoding)
	})

	t.Run("repeated transfer encoding", func(t *testing.T) {
		parser, _ := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nTransfer-Encoding: chunked\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrBadEncoding)
	})

	t.Run("accept encoding with qualifiers", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nAccept-Encoding: gzip;q=1.0, identity; q=0.5, br\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, []string{"gzip", "br"}, request.AcceptEncoding)
	})

	t.Run("too many encoding tokens", func(t *testing.T) {
		parser, _ := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nContent-Encoding: gzip, deflate, br, zstd\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrTooManyEncodingTokens)
	})

	t.Run("obsolete line folding", func(t *testing.T) {
		parser, _ := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nHello: World!\r\n  and you too\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrObsoleteLineFolding)
	})

	t.Run("malformed header name", func(t *testing.T) {
		for _, raw := range []string{
			"GET / HTTP/1.1\r\nHe llo: World!\r\n\r\n",
			"GET / HTTP/1.1\r\n: World!\r\n\r\n",
			"GET / HTTP/1.1\r\nHe\x00llo: World!\r\n\r\n",
		} {
			parser, _ := getParser(cfg)
			_, _, err := parser.Parse([]byte(raw))
			require.ErrorIs(t, err, status.ErrBadHeaderName, raw)
		}
	})

	t.Run("malformed header value", func(t *testing.T) {
		parser, _ := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nHello: Wor\x01ld\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrBadHeaderValue)
	})

	t.Run("value whitespace is trimmed", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET / HTTP/1.1\r\nHello:   World!  \r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, "World!", request.Headers.Value("hello"))
	})

	t.Run("unsupported protocol", func(t *testing.T) {
		for _, raw := range []string{
			"GET / HTTP/1.2\r\n\r\n",
			"GET / HTTP/2\r\n\r\n",
			"GET / TCP/1.1\r\n\r\n",
		} {
			parser, _ := getParser(cfg)
			_, _, err := parser.Parse([]byte(raw))
			require.ErrorIs(t, err, status.ErrHTTPVersionNotSupported, raw)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("BREW /coffee HTTP/1.1\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrMethodNotImplemented)
	})

	t.Run("empty target", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET  HTTP/1.1\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadRequest)
	})

	t.Run("control byte in target", func(t *testing.T) {
		parser, _ := getParser(cfg)
		_, _, err := parser.Parse([]byte("GET /\x7f HTTP/1.1\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadRequest)
	})

	t.Run("too many headers", func(t *testing.T) {
		tight := config.Default()
		tight.Headers.Number.Maximal = 2
		parser, _ := getParser(tight)
		raw := "GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrTooManyHeaders)
	})

	t.Run("headers section too large", func(t *testing.T) {
		tight := config.Default()
		tight.Headers.Space.Maximal = 32
		parser, _ := getParser(tight)
		raw := "GET / HTTP/1.1\r\nHello: " + strings.Repeat("a", 64) + "\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrHeaderFieldsTooLarge)
	})

	t.Run("request line too long", func(t *testing.T) {
		tight := config.Default()
		tight.URI.RequestLineSize.Maximal = 16
		parser, _ := getParser(tight)
		raw := "GET /" + strings.Repeat("a", 64) + " HTTP/1.1\r\n\r\n"
		_, _, err := parser.Parse([]byte(raw))
		require.ErrorIs(t, err, status.ErrURITooLong)
	})

	t.Run("method overflows the request line", func(t *testing.T) {
		tight := config.Default()
		tight.URI.RequestLineSize.Maximal = 16
		parser, _ := getParser(tight)
		_, _, err := parser.Parse([]byte(strings.Repeat("A", 64)))
		require.ErrorIs(t, err, status.ErrTooLongRequestLine)
	})

	t.Run("header key runs into line terminator", func(t *testing.T) {
		// a key buffered without a colon must be rejected no matter where the
		// head was split.
		for _, tail := range []string{"\r\n\r\n", "\n\n"} {
			parser, _ := getParser(cfg)
			done, _, err := parser.Parse([]byte("GET / HTTP/1.1\r\nX"))
			require.NoError(t, err)
			require.False(t, done)

			_, _, err = parser.Parse([]byte(tail))
			require.ErrorIs(t, err, status.ErrBadHeaderName)
		}
	})

	t.Run("pipelined heads leave extra", func(t *testing.T) {
		parser, request := getParser(cfg)
		raw := "GET /first HTTP/1.1\r\n\r\nGET /second HTTP/1.1\r\n\r\n"
		done, extra, err := parser.Parse([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "/first", request.Target)
		require.Equal(t, "GET /second HTTP/1.1\r\n\r\n", string(extra))

		request.Reset()
		done, extra, err = parser.Parse(extra)
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, extra)
		require.Equal(t, "/second", request.Target)
	})
}
