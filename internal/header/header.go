package header

const (
	DefaultUserAgent = "urllib/1.0.0 (github.com/SoraYama/urllib)"
	UserAgent        = "User-Agent"
	Location         = "Location"
	ContentType      = "Content-Type"
	ContentLength    = "Content-Length"
	ContentEncoding  = "Content-Encoding"
	AcceptEncoding   = "Accept-Encoding"
	Accept           = "Accept"
	Host             = "Host"
	JsonContentType  = "application/json"
	FormContentType  = "application/x-www-form-urlencoded"
	WwwAuthenticate  = "WWW-Authenticate"
	Authorization    = "Authorization"
)
