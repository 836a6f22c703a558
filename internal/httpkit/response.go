package httpkit

import (
	"net/http"

	"github.com/nhalm/canonlog"
)

// SetError sets an error response in the request context.
// If Handler middleware is not present (state is nil), this is a no-op.
func SetError(r *http.Request, err *APIError) {
	state := getState(r.Context())
	if state == nil {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.err = err
}

// SetResponse sets a success response in the request context.
// A nil body writes the status code with an empty body.
func SetResponse(r *http.Request, status int, body any) {
	state := getState(r.Context())
	if state == nil {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.status = status
	state.body = body
}

// SetHeader sets a response header in the request context.
func SetHeader(r *http.Request, key, value string) {
	state := getState(r.Context())
	if state == nil {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.headers == nil {
		state.headers = make(http.Header)
	}
	state.headers.Set(key, value)
}

// Headers returns a copy of the headers staged so far.
func Headers(r *http.Request) http.Header {
	state := getState(r.Context())
	if state == nil {
		return nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.headers.Clone()
}

// Written tells the Handler middleware that the handler streamed its own
// response with the given status. Staged headers must already have been
// copied by the caller; the middleware will not write anything further.
func Written(r *http.Request, status int) {
	state := getState(r.Context())
	if state == nil {
		return
	}
	state.markWritten(status)
}

// LogField adds a field to the request's canonical log line.
// No-op unless the Handler was created with WithCanonlog.
func LogField(r *http.Request, key string, value any) {
	state := getState(r.Context())
	if state == nil || !state.canonlog {
		return
	}
	canonlog.InfoAdd(r.Context(), key, value)
}

// LogError records an operator-visible error on the canonical log line
// without changing the response.
func LogError(r *http.Request, err error) {
	state := getState(r.Context())
	if state == nil || !state.canonlog || err == nil {
		return
	}
	canonlog.ErrorAdd(r.Context(), err)
}
