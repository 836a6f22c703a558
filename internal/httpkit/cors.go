package httpkit

// CORS middleware for browser calls from the portfolio frontend.
//
//	r.Use(httpkit.CORS(httpkit.CORSAllowOrigins("https://example.netlify.app"),
//		httpkit.CORSMethods("POST", "OPTIONS")))

import (
	"net/http"
	"net/url"
	"strings"
)

type corsConfig struct {
	origins     []string
	allowAll    bool
	methods     string
	headers     string
	credentials bool
}

// CORSOption configures CORS middleware.
type CORSOption func(*corsConfig)

// CORSAllowOrigins adds origins to the allow-list. Empty entries are ignored
// and a "*" entry allows every origin.
func CORSAllowOrigins(origins ...string) CORSOption {
	return func(c *corsConfig) {
		for _, o := range origins {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			switch o {
			case "":
			case "*":
				c.allowAll = true
			default:
				c.origins = append(c.origins, strings.ToLower(o))
			}
		}
	}
}

// CORSMethods sets Access-Control-Allow-Methods.
func CORSMethods(methods ...string) CORSOption {
	return func(c *corsConfig) {
		c.methods = strings.Join(methods, ", ")
	}
}

// CORSHeaders sets Access-Control-Allow-Headers.
func CORSHeaders(headers ...string) CORSOption {
	return func(c *corsConfig) {
		c.headers = strings.Join(headers, ", ")
	}
}

// CORSWithoutCredentials stops sending Access-Control-Allow-Credentials.
func CORSWithoutCredentials() CORSOption {
	return func(c *corsConfig) {
		c.credentials = false
	}
}

// CORS returns middleware that sets CORS headers on every response of the
// wrapped routes, including method and rate limit errors.
//
// Access-Control-Allow-Origin echoes the request origin only when it is on
// the allow-list (or the list contains "*"). Requests without an Origin
// header fall back to the origin of the Referer. Disallowed origins get no
// Allow-Origin header, which makes the browser block the response.
func CORS(opts ...CORSOption) func(http.Handler) http.Handler {
	cfg := &corsConfig{
		methods:     "POST, OPTIONS",
		headers:     "Content-Type",
		credentials: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := requestOrigin(r); origin != "" && cfg.allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", cfg.methods)
			w.Header().Set("Access-Control-Allow-Headers", cfg.headers)
			if cfg.credentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *corsConfig) allowed(origin string) bool {
	if c.allowAll {
		return true
	}
	check := strings.ToLower(origin)
	for _, o := range c.origins {
		if o == check {
			return true
		}
	}
	return false
}

func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
