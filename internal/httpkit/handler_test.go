package httpkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nhalm/canonlog"
)

func TestHandler_SuccessResponse(t *testing.T) {
	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		SetResponse(r, http.StatusCreated, map[string]string{"id": "123"})
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["id"] != "123" {
		t.Errorf("expected id=123, got %s", body["id"])
	}
}

func TestHandler_ErrorResponse(t *testing.T) {
	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		SetError(r, ErrServiceUnavailable.With("Email service is currently unavailable. Please try again later."))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/send-resume", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["error"] != "Service unavailable" {
		t.Errorf("expected error 'Service unavailable', got %v", body["error"])
	}
	if body["message"] != "Email service is currently unavailable. Please try again later." {
		t.Errorf("unexpected message %v", body["message"])
	}
	if _, ok := body["code"]; ok {
		t.Error("expected code to be omitted")
	}
}

func TestHandler_ErrorTakesPrecedence(t *testing.T) {
	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		SetResponse(r, http.StatusOK, map[string]string{"status": "ok"})
		SetError(r, ErrForbidden)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestHandler_PanicRecovery(t *testing.T) {
	handler := Handler(WithCanonlog())(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}

	var body APIError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Title != "Internal server error" {
		t.Errorf("expected error 'Internal server error', got %s", body.Title)
	}
}

func TestHandler_StagedHeaders(t *testing.T) {
	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		SetHeader(r, "RateLimit-Remaining", "4")
		SetResponse(r, http.StatusOK, map[string]string{"status": "ok"})
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Header().Get("RateLimit-Remaining") != "4" {
		t.Errorf("expected RateLimit-Remaining=4, got %s", rec.Header().Get("RateLimit-Remaining"))
	}
}

func TestHandler_EmptyAndStatusOnly(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{"nothing set", func(http.ResponseWriter, *http.Request) {}, http.StatusOK},
		{"status only", func(_ http.ResponseWriter, r *http.Request) {
			SetResponse(r, http.StatusNoContent, nil)
		}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Handler()(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", http.NoBody))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("expected empty body, got %q", rec.Body.String())
			}
		})
	}
}

func TestHandler_Written(t *testing.T) {
	handler := Handler(WithRequestID())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range Headers(r) {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("%PDF"))
		Written(r, http.StatusOK)
		SetError(r, ErrInternal)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Body.String() != "%PDF" {
		t.Errorf("expected streamed body only, got %q", rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected staged request id to be copied")
	}
}

func TestHandler_RequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generated", "", false},
		{"propagated", "req-42", true},
		{"too long replaced", strings.Repeat("x", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Handler(WithRequestID())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				SetResponse(r, http.StatusOK, nil)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("expected request id header")
			}
			if (got == tt.incoming) != tt.wantSame {
				t.Errorf("request id = %q, incoming %q", got, tt.incoming)
			}
		})
	}
}

func TestHandler_RequestIDOverrideReplaces(t *testing.T) {
	handler := Handler(WithRequestID())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		SetHeader(r, RequestIDHeader, "override")
		if got := Headers(r).Values(RequestIDHeader); len(got) != 1 || got[0] != "override" {
			t.Errorf("staged request id = %v, want [override]", got)
		}
		SetResponse(r, http.StatusOK, nil)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Values(RequestIDHeader); len(got) != 1 || got[0] != "override" {
		t.Errorf("response request id = %v, want [override]", got)
	}
}

func TestHasState(t *testing.T) {
	var inside bool
	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		inside = HasState(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if !inside {
		t.Error("expected HasState to be true inside Handler")
	}

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if HasState(req.Context()) {
		t.Error("expected HasState to be false without Handler")
	}

	// Setters are no-ops without state.
	SetError(req, ErrInternal)
	SetResponse(req, http.StatusOK, nil)
	SetHeader(req, "X-Test", "1")
	if Headers(req) != nil {
		t.Error("expected nil headers without state")
	}
}

func TestAPIError_Is(t *testing.T) {
	custom := ErrRateLimited.With("Rate limit exceeded. Maximum 5 requests per hour per IP.")
	if !errors.Is(custom, ErrRateLimited) {
		t.Error("expected custom message error to match sentinel")
	}
	if errors.Is(custom, ErrBadRequest) {
		t.Error("expected different sentinels not to match")
	}

	wrapped := fmt.Errorf("wrapped: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("expected wrapped error to match")
	}

	var nilErr *APIError
	if !nilErr.Is(nil) {
		t.Error("expected nil receiver to match nil target")
	}
	if nilErr.With("x") != nil || nilErr.WithCode("a", "b", "c") != nil {
		t.Error("expected nil receiver copies to stay nil")
	}
}

func TestAPIError_WithCodeDoesNotMutateSentinel(t *testing.T) {
	e := ErrBadRequest.WithCode("Invalid email format", "Email contains invalid characters", "invalid_characters")

	if e.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", e.Status)
	}
	if ErrBadRequest.Code != "" || ErrBadRequest.Title != "Bad request" {
		t.Errorf("sentinel was mutated: %+v", ErrBadRequest)
	}

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"error":"Invalid email format","message":"Email contains invalid characters","code":"invalid_characters"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

func TestAllSentinelErrors(t *testing.T) {
	tests := []struct {
		err    *APIError
		status int
		title  string
	}{
		{ErrBadRequest, http.StatusBadRequest, "Bad request"},
		{ErrForbidden, http.StatusForbidden, "Forbidden"},
		{ErrNotFound, http.StatusNotFound, "Not found"},
		{ErrMethodNotAllowed, http.StatusMethodNotAllowed, "Method not allowed"},
		{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "Payload too large"},
		{ErrRateLimited, http.StatusTooManyRequests, "Too many requests"},
		{ErrInternal, http.StatusInternalServerError, "Internal server error"},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, "Service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if tt.err.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.Status)
			}
			if tt.err.Title != tt.title {
				t.Errorf("expected title %q, got %q", tt.title, tt.err.Title)
			}
		})
	}
}

func TestHandler_JSONEncodingFailureBody(t *testing.T) {
	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		SetResponse(r, http.StatusOK, map[string]any{"bad": make(chan int)})
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	if rec.Body.String() != "Internal server error" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestHandler_ConcurrentMixedOperations(t *testing.T) {
	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(3)
			go func(n int) {
				defer wg.Done()
				SetHeader(r, fmt.Sprintf("X-Header-%d", n), "v")
			}(i)
			go func() {
				defer wg.Done()
				SetResponse(r, http.StatusOK, map[string]string{"status": "ok"})
			}()
			go func() {
				defer wg.Done()
				_ = Headers(r)
			}()
		}
		wg.Wait()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestWithCanonlog_CreatesLogger(t *testing.T) {
	var loggerFound bool

	handler := Handler(WithCanonlog())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, loggerFound = canonlog.TryGetLogger(r.Context())
		LogField(r, "strategy", "smtp")
		LogError(r, errors.New("transport warning"))
		SetResponse(r, http.StatusOK, nil)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody))

	if !loggerFound {
		t.Error("expected canonlog logger to be in context")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestWithCanonlog_Disabled(t *testing.T) {
	var loggerFound bool

	handler := Handler()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, loggerFound = canonlog.TryGetLogger(r.Context())
		LogField(r, "ignored", true)
		SetResponse(r, http.StatusOK, nil)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if loggerFound {
		t.Error("expected canonlog logger to not be in context when disabled")
	}
}

func TestWithCanonlogFields_AddsCustomFields(t *testing.T) {
	var called bool

	handler := Handler(
		WithCanonlog(),
		WithCanonlogFields(func(r *http.Request) map[string]any {
			called = true
			return map[string]any{"user_agent": r.UserAgent()}
		}),
	)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		SetResponse(r, http.StatusOK, nil)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if !called {
		t.Error("expected custom fields function to run")
	}
}

func TestWithSLOs_OnChiRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Handler(WithCanonlog(), WithSLOs()))
	r.With(SLO(SLOMailDelivery)).Post("/api/send-resume", func(_ http.ResponseWriter, r *http.Request) {
		tier, target, ok := GetSLO(r.Context())
		if !ok || tier != SLOMailDelivery || target != sloTargets[SLOMailDelivery] {
			t.Errorf("GetSLO() = %s, %v, %v", tier, target, ok)
		}
		SetResponse(r, http.StatusOK, nil)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/send-resume", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}
