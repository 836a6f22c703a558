// Package ratelimit provides fixed-window, per-client rate limiting for the
// portfolio API.
//
// A Limiter owns a store.Store and admits or rejects requests by key. It is
// built explicitly at process start and closed at shutdown:
//
//	st := store.NewMemory(store.WithSweepInterval(time.Hour))
//	defer st.Close()
//
//	limiter := ratelimit.New(st, 5, time.Hour,
//		ratelimit.WithName("resume"),
//		ratelimit.WithClientIP(),
//	)
//	r.With(limiter.Handler).Post("/api/send-resume", sendResume)
//
// Rejected requests get 429 with RateLimit-Limit, RateLimit-Remaining,
// RateLimit-Reset and Retry-After headers. A failing store yields 500.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/portpushpesh/portfolio-api/internal/httpkit"
	"github.com/portpushpesh/portfolio-api/internal/ratelimit/store"
)

// KeyFunc extracts a rate limiting key component from an HTTP request.
// Returning an empty string indicates the value is missing.
type KeyFunc func(*http.Request) string

// Limiter implements fixed-window rate limiting.
type Limiter struct {
	store   store.Store
	limit   int64
	window  time.Duration
	name    string
	keyFns  []KeyFunc
	message string
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithName sets a prefix for rate limit keys.
// Use to prevent key collisions when several limiters share one store.
func WithName(name string) Option {
	return func(l *Limiter) {
		l.name = name
	}
}

// WithClientIP adds the resolved client address to the key. The address
// comes from X-Forwarded-For, X-Real-IP, RemoteAddr, or "unknown", so this
// dimension is never missing.
func WithClientIP() Option {
	return func(l *Limiter) {
		l.keyFns = append(l.keyFns, httpkit.ClientIPFromContext)
	}
}

// WithKey adds a custom key component. Requests where fn returns "" skip
// rate limiting.
func WithKey(fn KeyFunc) Option {
	return func(l *Limiter) {
		l.keyFns = append(l.keyFns, fn)
	}
}

// WithMessage overrides the message of the 429 response body.
func WithMessage(msg string) Option {
	return func(l *Limiter) {
		l.message = msg
	}
}

// New creates a limiter admitting at most limit requests per key in each
// window. Panics if limit or window is not positive.
func New(st store.Store, limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 || window <= 0 {
		panic("ratelimit: limit and window must be positive")
	}
	l := &Limiter{
		store:  st,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.message == "" {
		l.message = fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s per IP.", limit, describeWindow(window))
	}
	return l
}

// Limit returns the maximum number of requests per window.
func (l *Limiter) Limit() int { return int(l.limit) }

// Window returns the window duration.
func (l *Limiter) Window() time.Duration { return l.window }

// Admit reports whether a request from clientID may proceed. An empty
// clientID is treated as httpkit.UnknownClient. A failing store rejects.
func (l *Limiter) Admit(ctx context.Context, clientID string) bool {
	if clientID == "" {
		clientID = httpkit.UnknownClient
	}
	d, err := l.store.Admit(ctx, l.prefixed(clientID), l.limit, l.window)
	if err != nil {
		return false
	}
	return d.Allowed
}

// Handler returns the rate limiting middleware.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		useState := httpkit.HasState(ctx)

		key := l.buildKey(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		d, err := l.store.Admit(ctx, key, l.limit, l.window)
		if err != nil {
			if useState {
				httpkit.LogError(r, fmt.Errorf("rate limit store: %w", err))
				httpkit.SetError(r, httpkit.ErrInternal.With("Rate limit check failed"))
			} else {
				http.Error(w, "Rate limit check failed", http.StatusInternalServerError)
			}
			return
		}

		remaining := max(0, l.limit-d.Count)
		setHeader(w, r, useState, "RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		setHeader(w, r, useState, "RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		setHeader(w, r, useState, "RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retry := int(d.ResetAt.Sub(l.now()).Round(time.Second).Seconds())
			setHeader(w, r, useState, "Retry-After", strconv.Itoa(max(1, retry)))
			httpkit.LogField(r, "rate_limited", l.name)
			if useState {
				httpkit.SetError(r, httpkit.ErrRateLimited.With(l.message))
			} else {
				http.Error(w, l.message, http.StatusTooManyRequests)
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setHeader(w http.ResponseWriter, r *http.Request, useState bool, key, value string) {
	if useState {
		httpkit.SetHeader(r, key, value)
		return
	}
	w.Header().Set(key, value)
}

// buildKey joins the name and all non-empty key components with ':'.
// Returns "" if every component is missing.
func (l *Limiter) buildKey(r *http.Request) string {
	var sb strings.Builder
	sb.Grow(20 + len(l.keyFns)*30)
	hasPart := false

	for _, fn := range l.keyFns {
		part := fn(r)
		if part == "" {
			continue
		}
		if hasPart {
			sb.WriteByte(':')
		}
		sb.WriteString(part)
		hasPart = true
	}

	if !hasPart {
		return ""
	}
	return l.prefixed(sb.String())
}

func (l *Limiter) prefixed(key string) string {
	if l.name == "" {
		return key
	}
	return l.name + ":" + key
}

func describeWindow(d time.Duration) string {
	switch d {
	case time.Hour:
		return "hour"
	case time.Minute:
		return "minute"
	case 24 * time.Hour:
		return "day"
	}
	if d%time.Hour == 0 {
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	}
	if d%time.Minute == 0 {
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	}
	return d.String()
}
