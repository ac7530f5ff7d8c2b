package status

type (
	Code   uint16
	Status string
)

// HTTP status codes as registered with IANA.
// See: https://www.iana.org/assignments/http-status-codes/http-status-codes.xhtml
const (
	Continue           Code = 100
	SwitchingProtocols Code = 101
	Processing         Code = 102
	EarlyHints         Code = 103

	OK                   Code = 200
	Created              Code = 201
	Accepted             Code = 202
	NonAuthoritativeInfo Code = 203
	NoContent            Code = 204
	ResetContent         Code = 205
	PartialContent       Code = 206

	MultipleChoices   Code = 300
	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	TemporaryRedirect Code = 307
	PermanentRedirect Code = 308

	BadRequest                   Code = 400
	Unauthorized                 Code = 401
	PaymentRequired              Code = 402
	Forbidden                    Code = 403
	NotFound                     Code = 404
	MethodNotAllowed             Code = 405
	NotAcceptable                Code = 406
	ProxyAuthRequired            Code = 407
	RequestTimeout               Code = 408
	Conflict                     Code = 409
	Gone                         Code = 410
	LengthRequired               Code = 411
	PreconditionFailed           Code = 412
	RequestEntityTooLarge        Code = 413
	RequestURITooLong            Code = 414
	UnsupportedMediaType         Code = 415
	RequestedRangeNotSatisfiable Code = 416
	ExpectationFailed            Code = 417
	Teapot                       Code = 418
	MisdirectedRequest           Code = 421
	UnprocessableEntity          Code = 422
	TooEarly                     Code = 425
	UpgradeRequired              Code = 426
	PreconditionRequired         Code = 428
	TooManyRequests              Code = 429
	RequestHeaderFieldsTooLarge  Code = 431
	UnavailableForLegalReasons   Code = 451

	InternalServerError           Code = 500
	NotImplemented                Code = 501
	BadGateway                    Code = 502
	ServiceUnavailable            Code = 503
	GatewayTimeout                Code = 504
	HTTPVersionNotSupported       Code = 505
	NetworkAuthenticationRequired Code = 511

	// CloseConnection is a special internal code signalling that the connection
	// must be closed without producing a response.
	CloseConnection Code = 0xffff
)

// Text returns a text for the HTTP status code. It returns the empty
// string if the code is unknown.
func Text(code Code) Status {
	switch code {
	case Continue:
		return "Continue"
	case SwitchingProtocols:
		return "Switching Protocols"
	case Processing:
		return "Processing"
	case EarlyHints:
		return "Early Hints"
	case OK:
		return "OK"
	case Created:
		return "Created"
	case Accepted:
		return "Accepted"
	case NonAuthoritativeInfo:
		return "Non-Authoritative Information"
	case NoContent:
		return "No Content"
	case ResetContent:
		return "Reset Content"
	case PartialContent:
		return "Partial Content"
	case MultipleChoices:
		return "Multiple Choices"
	case MovedPermanently:
		return "Moved Permanently"
	case Found:
		return "Found"
	case SeeOther:
		return "See Other"
	case NotModified:
		return "Not Modified"
	case TemporaryRedirect:
		return "Temporary Redirect"
	case PermanentRedirect:
		return "Permanent Redirect"
	case BadRequest:
		return "Bad Request"
	case Unauthorized:
		return "Unauthorized"
	case PaymentRequired:
		return "Payment Required"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "Not Found"
	case MethodNotAllowed:
		return "Method Not Allowed"
	case NotAcceptable:
		return "Not Acceptable"
	case ProxyAuthRequired:
		return "Proxy Authentication Required"
	case RequestTimeout:
		return "Request Timeout"
	case Conflict:
		return "Conflict"
	case Gone:
		return "Gone"
	case LengthRequired:
		return "Length Required"
	case PreconditionFailed:
		return "Precondition Failed"
	case RequestEntityTooLarge:
		return "Request Entity Too Large"
	case RequestURITooLong:
		return "Request URI Too Long"
	case UnsupportedMediaType:
		return "Unsupported Media Type"
	case RequestedRangeNotSatisfiable:
		return "Requested Range Not Satisfiable"
	case ExpectationFailed:
		return "Expectation Failed"
	case Teapot:
		return "I'm a teapot"
	case MisdirectedRequest:
		return "Misdirected Request"
	case UnprocessableEntity:
		return "Unprocessable Entity"
	case TooEarly:
		return "Too Early"
	case UpgradeRequired:
		return "Upgrade Required"
	case PreconditionRequired:
		return "Precondition Required"
	case TooManyRequests:
		return "Too Many Requests"
	case RequestHeaderFieldsTooLarge:
		return "Request Header Fields Too Large"
	case UnavailableForLegalReasons:
		return "Unavailable For Legal Reasons"
	case InternalServerError:
		return "Internal Server Error"
	case NotImplemented:
		return "Not Implemented"
	case BadGateway:
		return "Bad Gateway"
	case ServiceUnavailable:
		return "Service Unavailable"
	case GatewayTimeout:
		return "Gateway Timeout"
	case HTTPVersionNotSupported:
		return "HTTP Version Not Supported"
	case NetworkAuthenticationRequired:
		return "Network Authentication Required"
	default:
		return ""
	}
}

// Line returns a pre-rendered "<code> <text>" string for well-known codes,
// empty string otherwise.
func Line(code Code) string {
	switch code {
	case Continue:
		return "100 Continue"
	case SwitchingProtocols:
		return "101 Switching Protocols"
	case OK:
		return "200 OK"
	case Created:
		return "201 Created"
	case Accepted:
		return "202 Accepted"
	case NoContent:
		return "204 No Content"
	case MovedPermanently:
		return "301 Moved Permanently"
	case Found:
		return "302 Found"
	case NotModified:
		return "304 Not Modified"
	case BadRequest:
		return "400 Bad Request"
	case Unauthorized:
		return "401 Unauthorized"
	case Forbidden:
		return "403 Forbidden"
	case NotFound:
		return "404 Not Found"
	case MethodNotAllowed:
		return "405 Method Not Allowed"
	case RequestTimeout:
		return "408 Request Timeout"
	case RequestEntityTooLarge:
		return "413 Request Entity Too Large"
	case RequestURITooLong:
		return "414 Request URI Too Long"
	case RequestHeaderFieldsTooLarge:
		return "431 Request Header Fields Too Large"
	case InternalServerError:
		return "500 Internal Server Error"
	case NotImplemented:
		return "501 Not Implemented"
	case ServiceUnavailable:
		return "503 Service Unavailable"
	case HTTPVersionNotSupported:
		return "505 HTTP Version Not Supported"
	default:
		return ""
	}
}
