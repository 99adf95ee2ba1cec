package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

type SecurityHeaders struct {
	CSPDirectives  []string
	TrustedProxies []string
	HSTS           bool
}

func Security(opts SecurityHeaders) func(http.Handler) http.Handler {
	csp := strings.Join(opts.CSPDirectives, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if csp != "" {
				h.Set("Content-Security-Policy", csp)
			}
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			if opts.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			// X-Real-IP is honoured only from a trusted proxy.
			if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
				remoteIP := clientIP(r)
				for _, trusted := range opts.TrustedProxies {
					if subtle.ConstantTimeCompare([]byte(remoteIP), []byte(trusted)) == 1 {
						r.RemoteAddr = realIP
						break
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
