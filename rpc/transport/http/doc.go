// Package http implements the HTTP transport of the storage service.
//
// Requests are sent as
//
//	POST /{domain-uuid}/{command-id}
//	X-Secstore-Euid: <caller euid, decimal or 0x hex>
//
// with the serialized request as body. The body of a 200 response is the
// serialized response. Malformed paths and headers are answered with 400,
// bodies larger than transport.MaxFrameSize with 413.
//
// The server also serves the prometheus metrics of the process at
// GET /metrics (github.com/VictoriaMetrics/metrics).
//
// The client balances requests round-robin over the configured endpoints,
// retries network errors and 5xx responses, and reads the response body into
// the caller's buffer without growing it.
package http
