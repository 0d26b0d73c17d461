package middleware

import (
	"fmt"
	"net/http"

	"github.com/straye-as/pipeline-api/internal/config"
)

type header struct {
	name  string
	value string
}

// securityHeaders renders the configured headers once; empty values are skipped
func securityHeaders(cfg *config.SecurityConfig) []header {
	candidates := []header{
		{"X-Frame-Options", cfg.FrameOptions},
		{"X-XSS-Protection", cfg.XSSProtection},
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Permissions-Policy", cfg.PermissionsPolicy},
	}
	if cfg.ContentTypeNosniff {
		candidates = append(candidates, header{"X-Content-Type-Options", "nosniff"})
	}
	if cfg.EnableHSTS {
		hsts := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		if cfg.HSTSPreload {
			hsts += "; preload"
		}
		candidates = append(candidates, header{"Strict-Transport-Security", hsts})
	}

	headers := candidates[:0]
	for _, h := range candidates {
		if h.value != "" {
			headers = append(headers, h)
		}
	}
	return headers
}

// SecurityHeaders returns a middleware that adds security headers to responses
func SecurityHeaders(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	headers := securityHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range headers {
				w.Header().Set(h.name, h.value)
			}
			w.Header().Del("X-Powered-By")
			w.Header().Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}
