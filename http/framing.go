package http

import "github.com/ember-web/ember/http/status"

// FramingKind tags how the message body is delimited on the wire.
type FramingKind uint8

const (
	// FramingNone means the message carries no body at all.
	FramingNone FramingKind = iota
	// FramingFixed means exactly Size bytes follow the head.
	FramingFixed
	// FramingChunked means the body consists of size-prefixed chunks terminated
	// by a zero-size chunk.
	FramingChunked
	// FramingUntilClose means the body spans until the peer closes the
	// connection. Never applies to requests.
	FramingUntilClose
)

func (k FramingKind) String() string {
	lut := [...]string{
		FramingNone:       "none",
		FramingFixed:      "fixed",
		FramingChunked:    "chunked",
		FramingUntilClose: "until-close",
	}
	if int(k) >= len(lut) {
		return ""
	}

	return lut[k]
}

// BodyLength is the body framing descriptor: a tagged variant derived
// unambiguously from the head's framing headers.
type BodyLength struct {
	Kind FramingKind
	// Size is meaningful for FramingFixed only.
	Size int64
}

// Framing derives the body-length descriptor of the request. Transfer-Encoding:
// chunked takes precedence when it is the only framing header; Content-Length
// governs otherwise; the absence of both means no body. Both present at once is
// ambiguous (a smuggling vector) and is rejected outright, never silently
// resolved.
func (r *Request) Framing() (BodyLength, error) {
	switch {
	case r.Chunked:
		if r.ContentLength >= 0 {
			return BodyLength{}, status.ErrConflictingFraming
		}

		return BodyLength{Kind: FramingChunked}, nil
	case r.ContentLength > 0:
		return BodyLength{Kind: FramingFixed, Size: r.ContentLength}, nil
	default:
		return BodyLength{Kind: FramingNone}, nil
	}
}
