package http

const (
	StatusOK = 200 // RFC 7231, 6.3.1

	StatusNotFound = 404 // RFC 7231, 6.5.4

	StatusInternalServerError = 500 // RFC 7231, 6.6.1
	StatusBadGateway          = 502 // RFC 7231, 6.6.3
	StatusServiceUnavailable  = 503 // RFC 7231, 6.6.4
)
