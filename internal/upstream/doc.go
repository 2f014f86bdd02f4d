// Package upstream wraps the shared http.Client used for HEAD/GET requests
// against remote servers. It layers rate limiting, request ids and tracing
// spans over one tuned transport and turns non-2xx responses into
// *StatusError values that carry the status code, reason phrase and body.
package upstream
