package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestSLO_SetsTierInContext(t *testing.T) {
	tests := []struct {
		name           string
		tier           SLOTier
		expectedTarget time.Duration
	}{
		{"HighFast", SLOHighFast, 100 * time.Millisecond},
		{"HighSlow", SLOHighSlow, 1000 * time.Millisecond},
		{"MailDelivery", SLOMailDelivery, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedTier SLOTier
			var capturedTarget time.Duration
			var found bool

			handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				capturedTier, capturedTarget, found = GetSLO(r.Context())
			})

			SLO(tt.tier)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

			if !found {
				t.Fatal("expected SLO tier to be set in context")
			}
			if capturedTier != tt.tier {
				t.Errorf("expected tier %s, got %s", tt.tier, capturedTier)
			}
			if capturedTarget != tt.expectedTarget {
				t.Errorf("expected target %v, got %v", tt.expectedTarget, capturedTarget)
			}
		})
	}
}

func TestGetSLO_NoContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	tier, target, found := GetSLO(req.Context())
	if found || tier != "" || target != 0 {
		t.Errorf("expected no SLO, got %s %v %v", tier, target, found)
	}
}

func TestSLO_DifferentRoutesHaveDifferentSLOs(t *testing.T) {
	captured := make(map[string]SLOTier)

	r := chi.NewRouter()
	r.With(SLO(SLOHighFast)).Get("/api/health", func(_ http.ResponseWriter, r *http.Request) {
		captured["health"], _, _ = GetSLO(r.Context())
	})
	r.With(SLO(SLOMailDelivery)).Post("/api/send-resume", func(_ http.ResponseWriter, r *http.Request) {
		captured["send"], _, _ = GetSLO(r.Context())
	})
	r.Get("/api/unclassified", func(_ http.ResponseWriter, r *http.Request) {
		captured["unclassified"], _, _ = GetSLO(r.Context())
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/send-resume", http.NoBody))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/unclassified", http.NoBody))

	if captured["health"] != SLOHighFast {
		t.Errorf("health tier = %s", captured["health"])
	}
	if captured["send"] != SLOMailDelivery {
		t.Errorf("send tier = %s", captured["send"])
	}
	if captured["unclassified"] != "" {
		t.Errorf("unclassified tier = %s", captured["unclassified"])
	}
}
