package config

import (
	"math"
	"time"
)

type (
	HeadersNumber struct {
		Default, Maximal int
	}

	HeadersSpace struct {
		Default, Maximal int
	}

	RequestLineSize struct {
		Default, Maximal int
	}

	WriteBufferSize struct {
		Default, Maximal int
	}
)

type (
	Headers struct {
		// Number is responsible for the headers storage size.
		// Default value is the initial number of preallocated seats.
		// Maximal value is the maximum number of header fields allowed in a single head.
		Number HeadersNumber
		// Space limits the amount of memory occupied by the header section of a single
		// request, names and values combined.
		Space HeadersSpace
		// MaxEncodingTokens limits how many codings can be applied to a body in a
		// single request.
		MaxEncodingTokens int
		// MaxAcceptEncodingTokens limits the buffer storing codings accepted by
		// a client.
		MaxAcceptEncodingTokens int
	}

	URI struct {
		// RequestLineSize is a shared buffer storing the request target. Setting the
		// maximal boundary too low may result in ambiguous errors.
		RequestLineSize RequestLineSize
	}

	Body struct {
		// MaxSize bounds the size of a decoded body. Exceeding it aborts the exchange
		// with 413. Use config.Unlimited to disable the limit.
		MaxSize int64
		// MaxChunkSize bounds the size a single chunk may declare. A chunk-size line
		// above it is a fatal decode error, no allocation is attempted.
		MaxChunkSize int64
		// MaxDecompressedSize bounds how much a compressed body may expand to. Guards
		// against decompression bombs.
		MaxDecompressedSize int64
		// BufferPrealloc is the initial capacity of the buffer collecting a body whose
		// length isn't known in advance.
		BufferPrealloc int
	}

	NET struct {
		// ReadBufferSize is the size of the buffer used to read from the socket.
		ReadBufferSize int
		// WriteBufferSize stores the serialized response before it's flushed.
		WriteBufferSize WriteBufferSize
		// HeaderReadTimeout bounds how long reading a single head may take.
		HeaderReadTimeout time.Duration
		// BodyReadTimeout bounds each read of the message body.
		BodyReadTimeout time.Duration
		// KeepAliveTimeout is the maximal lifetime of an idle connection between
		// exchanges. On expiry the connection is closed.
		KeepAliveTimeout time.Duration
		// ShutdownGrace is how long a graceful stop waits for active connections
		// before tearing them down.
		ShutdownGrace time.Duration
		// PipelineDepth bounds how many requests may be accepted ahead of response
		// completion. The reader stalls once the window is full.
		PipelineDepth int
	}
)

// Config holds limits and pre-allocation knobs used across the engine. Always modify
// the defaults returned by Default() instead of constructing the struct manually,
// otherwise zero-valued limits will reject everything.
type Config struct {
	Headers Headers
	URI     URI
	Body    Body
	NET     NET
}

func Default() *Config {
	return &Config{
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 50,
			},
			Space: HeadersSpace{
				Default: 1 * 1024,
				Maximal: 16 * 1024, // there might be extremely long cookies
			},
			MaxEncodingTokens:       4,  // 1 for chunked, leaving at most 3 compressors to be composed
			MaxAcceptEncodingTokens: 20, // that must be a way too advanced client
		},
		URI: URI{
			RequestLineSize: RequestLineSize{
				Default: 2 * 1024,
				Maximal: 16 * 1024,
			},
		},
		Body: Body{
			MaxSize:             512 * 1024 * 1024,
			MaxChunkSize:        16 * 1024 * 1024,
			MaxDecompressedSize: 512 * 1024 * 1024,
			BufferPrealloc:      1024,
		},
		NET: NET{
			ReadBufferSize: 4 * 1024,
			WriteBufferSize: WriteBufferSize{
				Default: 4 * 1024,
				Maximal: 64 * 1024,
			},
			HeaderReadTimeout: 90 * time.Second,
			BodyReadTimeout:   90 * time.Second,
			KeepAliveTimeout:  90 * time.Second,
			ShutdownGrace:     5 * time.Second,
			PipelineDepth:     16,
		},
	}
}

// Fill replaces zero values of the config with defaults.
func Fill(src *Config) *Config {
	defaults := Default()

	src.Headers.Number.Default = override(src.Headers.Number.Default, defaults.Headers.Number.Default)
	src.Headers.Number.Maximal = override(src.Headers.Number.Maximal, defaults.Headers.Number.Maximal)
	src.Headers.Space.Default = override(src.Headers.Space.Default, defaults.Headers.Space.Default)
	src.Headers.Space.Maximal = override(src.Headers.Space.Maximal, defaults.Headers.Space.Maximal)
	src.Headers.MaxEncodingTokens = override(src.Headers.MaxEncodingTokens, defaults.Headers.MaxEncodingTokens)
	src.Headers.MaxAcceptEncodingTokens = override(src.Headers.MaxAcceptEncodingTokens, defaults.Headers.MaxAcceptEncodingTokens)
	src.URI.RequestLineSize.Default = override(src.URI.RequestLineSize.Default, defaults.URI.RequestLineSize.Default)
	src.URI.RequestLineSize.Maximal = override(src.URI.RequestLineSize.Maximal, defaults.URI.RequestLineSize.Maximal)
	src.Body.MaxSize = override(src.Body.MaxSize, defaults.Body.MaxSize)
	src.Body.MaxChunkSize = override(src.Body.MaxChunkSize, defaults.Body.MaxChunkSize)
	src.Body.MaxDecompressedSize = override(src.Body.MaxDecompressedSize, defaults.Body.MaxDecompressedSize)
	src.Body.BufferPrealloc = override(src.Body.BufferPrealloc, defaults.Body.BufferPrealloc)
	src.NET.ReadBufferSize = override(src.NET.ReadBufferSize, defaults.NET.ReadBufferSize)
	src.NET.WriteBufferSize.Default = override(src.NET.WriteBufferSize.Default, defaults.NET.WriteBufferSize.Default)
	src.NET.WriteBufferSize.Maximal = override(src.NET.WriteBufferSize.Maximal, defaults.NET.WriteBufferSize.Maximal)
	src.NET.HeaderReadTimeout = override(src.NET.HeaderReadTimeout, defaults.NET.HeaderReadTimeout)
	src.NET.BodyReadTimeout = override(src.NET.BodyReadTimeout, defaults.NET.BodyReadTimeout)
	src.NET.KeepAliveTimeout = override(src.NET.KeepAliveTimeout, defaults.NET.KeepAliveTimeout)
	src.NET.ShutdownGrace = override(src.NET.ShutdownGrace, defaults.NET.ShutdownGrace)
	src.NET.PipelineDepth = override(src.NET.PipelineDepth, defaults.NET.PipelineDepth)

	return src
}

// Unlimited disables a size limit.
const Unlimited = math.MaxInt64

func override[T comparable](custom, defaultVal T) T {
	var zero T
	if custom == zero {
		return defaultVal
	}

	return custom
}
