package http1

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/ember-web/ember/codec"
	"github.com/ember-web/ember/config"
	"github.com/ember-web/ember/http"
	"github.com/ember-web/ember/http/status"
	"github.com/ember-web/ember/internal/codecutil"
	"github.com/ember-web/ember/kv"
	"github.com/ember-web/ember/transport"
	"github.com/ember-web/ember/transport/dummy"
)

func getBody(cfg *config.Config, client transport.Client, codecs ...codec.Codec) (*Body, *http.Request) {
	request := http.NewRequest(client, kv.New(), http.NewResponse())
	request.Body = http.NewBody(cfg.Body.BufferPrealloc)

	return NewBody(cfg, client, codecutil.NewCache(codecs)), request
}

func gzipped(t *testing.T, payload string) []byte {
	var buff bytes.Buffer
	w := gzip.NewWriter(&buff)
	_, err := w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buff.Bytes()
}

func TestBody(t *testing.T) {
	t.Run("fixed length", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("Hello, world!"))
		body, request := getBody(config.Default(), client)
		request.ContentLength = 13

		require.NoError(t, body.Reset(request))
		value, err := request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", value)
	})

	t.Run("fixed length split across reads", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("Hel"), []byte("lo, wo"), []byte("rld!"))
		body, request := getBody(config.Default(), client)
		request.ContentLength = 13

		require.NoError(t, body.Reset(request))
		value, err := request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", value)
	})

	t.Run("bytes past the boundary belong to the next exchange", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("HelloGET /next HTTP/1.1\r\n"))
		body, request := getBody(config.Default(), client)
		request.ContentLength = 5

		require.NoError(t, body.Reset(request))
		value, err := request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "Hello", value)

		next, err := client.Read()
		require.NoError(t, err)
		require.Equal(t, "GET /next HTTP/1.1\r\n", string(next))
	})

	t.Run("chunked", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("7\r\nMozilla\r\n11\r\nDeveloper Network\r\n0\r\n\r\nextra"))
		body, request := getBody(config.Default(), client)
		request.Chunked = true

		require.NoError(t, body.Reset(request))
		value, err := request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "MozillaDeveloper Network", value)

		next, err := client.Read()
		require.NoError(t, err)
		require.Equal(t, "extra", string(next))
	})

	t.Run("no framing headers means no body", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("GET /next HTTP/1.1\r\n"))
		body, request := getBody(config.Default(), client)

		require.NoError(t, body.Reset(request))
		value, err := request.Body.String()
		require.NoError(t, err)
		require.Empty(t, value)
	})

	t.Run("declared length above the limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.Body.MaxSize = 10
		body, request := getBody(cfg, dummy.NewNopClient())
		request.ContentLength = 11

		require.ErrorIs(t, body.Reset(request), status.ErrBodyTooLarge)
	})

	t.Run("chunked body above the limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.Body.MaxSize = 4
		client := dummy.NewMockClient([]byte("5\r\nhello\r\n0\r\n\r\n"))
		body, request := getBody(cfg, client)
		request.Chunked = true

		require.NoError(t, body.Reset(request))
		_, err := request.Body.String()
		require.ErrorIs(t, err, status.ErrBodyTooLarge)
	})

	t.Run("conflicting framing", func(t *testing.T) {
		body, request := getBody(config.Default(), dummy.NewNopClient())
		request.Chunked = true
		request.ContentLength = 13

		require.ErrorIs(t, body.Reset(request), status.ErrConflictingFraming)
	})

	t.Run("gzip", func(t *testing.T) {
		raw := gzipped(t, "Hello, world!")
		client := dummy.NewMockClient(raw)
		body, request := getBody(config.Default(), client, codec.NewGZIP())
		request.ContentLength = int64(len(raw))
		request.ContentEncoding = []string{"gzip"}

		require.NoError(t, body.Reset(request))
		value, err := request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", value)
	})

	t.Run("gzip over chunked", func(t *testing.T) {
		raw := gzipped(t, "Hello, world!")
		var wire bytes.Buffer
		fmt.Fprintf(&wire, "%x\r\n", len(raw))
		wire.Write(raw)
		wire.WriteString("\r\n0\r\n\r\n")

		client := dummy.NewMockClient(wire.Bytes())
		body, request := getBody(config.Default(), client, codec.NewGZIP())
		request.Chunked = true
		request.ContentEncoding = []string{"gzip"}

		require.NoError(t, body.Reset(request))
		value, err := request.Body.String()
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", value)
	})

	t.Run("unknown coding", func(t *testing.T) {
		body, request := getBody(config.Default(), dummy.NewNopClient(), codec.NewGZIP())
		request.ContentLength = 13
		request.ContentEncoding = []string{"br"}

		require.ErrorIs(t, body.Reset(request), status.ErrUnsupportedEncoding)
	})

	t.Run("decompression bomb", func(t *testing.T) {
		cfg := config.Default()
		cfg.Body.MaxDecompressedSize = 16
		raw := gzipped(t, strings.Repeat("a", 64*1024))
		client := dummy.NewMockClient(raw)
		body, request := getBody(cfg, client, codec.NewGZIP())
		request.ContentLength = int64(len(raw))
		request.ContentEncoding = []string{"gzip"}

		require.NoError(t, body.Reset(request))
		_, err := request.Body.String()
		require.ErrorIs(t, err, status.ErrDecompressionBomb)
	})
}
