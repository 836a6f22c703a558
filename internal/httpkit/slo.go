package httpkit

// SLO tracking middleware.
// Sets SLO tier and target in request context for the Handler middleware
// to log PASS/FAIL status based on request duration.

import (
	"context"
	"net/http"
	"time"
)

// SLOTier represents an SLO classification level.
type SLOTier string

const (
	// SLOHighFast is for cheap user-facing requests (health, API root).
	SLOHighFast SLOTier = "high_fast"

	// SLOHighSlow is for user-facing requests that wait on a remote service.
	SLOHighSlow SLOTier = "high_slow"

	// SLOMailDelivery covers requests that open an SMTP session and send mail.
	SLOMailDelivery SLOTier = "mail_delivery"
)

var sloTargets = map[SLOTier]time.Duration{
	SLOHighFast:     100 * time.Millisecond,
	SLOHighSlow:     1000 * time.Millisecond,
	SLOMailDelivery: 10 * time.Second,
}

type sloContextKey string

const sloConfigKey sloContextKey = "slo_config"

type sloConfig struct {
	tier   SLOTier
	target time.Duration
}

// SLO sets a predefined SLO tier in context.
func SLO(tier SLOTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := &sloConfig{
				tier:   tier,
				target: sloTargets[tier],
			}
			ctx := context.WithValue(r.Context(), sloConfigKey, cfg)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSLO retrieves the SLO tier and target from context.
func GetSLO(ctx context.Context) (SLOTier, time.Duration, bool) {
	cfg, ok := ctx.Value(sloConfigKey).(*sloConfig)
	if !ok {
		return "", 0, false
	}
	return cfg.tier, cfg.target, true
}
