package status

// HTTPError carries a status code along with a human-readable message. The engine
// maps fatal parse and decode failures onto these values; everything except
// ErrCloseConnection results in a deterministic response before the connection
// is torn down.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrCloseConnection = NewError(CloseConnection, "actively closing the connection")

	ErrBadRequest              = NewError(BadRequest, "bad request")
	ErrTooLongRequestLine      = NewError(BadRequest, "request line is too long")
	ErrBadHeaderName           = NewError(BadRequest, "malformed header name")
	ErrBadHeaderValue          = NewError(BadRequest, "malformed header value")
	ErrObsoleteLineFolding     = NewError(BadRequest, "obsolete line folding")
	ErrBadEncoding             = NewError(BadRequest, "bad message encoding")
	ErrConflictingFraming      = NewError(BadRequest, "conflicting body framing headers")
	ErrBadChunk                = NewError(BadRequest, "malformed chunk-encoded data")
	ErrChunkTooLarge           = NewError(BadRequest, "declared chunk size is too large")
	ErrBadContentLength        = NewError(BadRequest, "malformed Content-Length")
	ErrNonTextualValue         = NewError(BadRequest, "header value isn't representable as text")
	ErrMethodNotImplemented    = NewError(NotImplemented, "request method is not supported")
	ErrBodyTooLarge            = NewError(RequestEntityTooLarge, "request body is too large")
	ErrDecompressionBomb       = NewError(RequestEntityTooLarge, "decompressed body exceeds the limit")
	ErrHeaderFieldsTooLarge    = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders          = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrTooManyEncodingTokens   = NewError(RequestHeaderFieldsTooLarge, "too many encoding tokens specified")
	ErrURITooLong              = NewError(RequestURITooLong, "request URI too long")
	ErrHTTPVersionNotSupported = NewError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrUnsupportedEncoding     = NewError(UnsupportedMediaType, "encoding is not supported")
	ErrBodyNotAllowed          = NewError(InternalServerError, "response body is not allowed for this status code")
	ErrHijackUnavailable       = NewError(InternalServerError, "the connection cannot be hijacked at this point")
	ErrInternalServerError     = NewError(InternalServerError, "internal server error")
	ErrNotImplemented          = NewError(NotImplemented, "not implemented")
	ErrRequestTimeout          = NewError(RequestTimeout, "request timeout")
)

// Kind reports the status code an error maps to, defaulting to 400 for
// non-HTTP errors.
func Kind(err error) Code {
	if http, ok := err.(HTTPError); ok {
		return http.Code
	}

	return BadRequest
}
