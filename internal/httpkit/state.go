package httpkit

import (
	"context"
	"net/http"
	"sync"
)

type stateContextKey string

const stateKey stateContextKey = "httpkit_state"

// State holds the response state for a request.
type State struct {
	mu       sync.Mutex
	err      *APIError
	status   int
	body     any
	headers  http.Header
	written  bool
	canonlog bool
}

// markWritten records that the handler wrote the response itself.
// Returns true if this call successfully marked it (first caller wins).
func (s *State) markWritten(status int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		return false
	}
	s.written = true
	s.status = status
	return true
}

// HasState returns true if Handler state exists in the context.
func HasState(ctx context.Context) bool {
	return getState(ctx) != nil
}

func getState(ctx context.Context) *State {
	state, _ := ctx.Value(stateKey).(*State)
	return state
}
