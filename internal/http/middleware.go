package http

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

func (s *Server) withCORS(policy corsPolicy, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		originRaw := r.Header.Get("Origin")
		if originRaw != "" {
			origin := normalizeOrigin(originRaw)
			if origin == "" {
				http.Error(w, HTTPErrorForbiddenOriginText, http.StatusForbidden)
				return
			}

			if policy.allowedOrigins != nil {
				if _, ok := policy.allowedOrigins[origin]; !ok {
					http.Error(w, HTTPErrorForbiddenOriginText, http.StatusForbidden)
					return
				}
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			if policy.allowMethods != "" {
				w.Header().Set("Access-Control-Allow-Methods", policy.allowMethods)
			}

			if policy.allowHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", policy.allowHeaders)
			} else if reqHdrs := r.Header.Get("Access-Control-Request-Headers"); reqHdrs != "" {
				w.Header().Set("Access-Control-Allow-Headers", reqHdrs)
			}

			if policy.maxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", policy.maxAge))
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func (s *Server) withLoopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRequest(r) {
			http.Error(w, HTTPErrorForbiddenText, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// withUIGuards admits only the approval UI: a configured origin, over
// loopback, on a local Host, presenting the session token.
func (s *Server) withUIGuards(next http.HandlerFunc) http.HandlerFunc {
	cors := corsPolicy{
		allowedOrigins: s.uiAllowedOrigins,
		allowMethods:   "GET,POST,OPTIONS",
		allowHeaders:   "Content-Type," + UISessionHeader,
		maxAge:         corsMaxAgeSeconds,
	}

	return s.withCORS(cors, func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRequest(r) {
			http.Error(w, HTTPErrorForbiddenText, http.StatusForbidden)
			return
		}
		if !isSafeLocalHost(r.Host) {
			http.Error(w, HTTPErrorForbiddenHostText, http.StatusForbidden)
			return
		}

		got := r.Header.Get(UISessionHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.sessionToken)) != 1 {
			log.Warn("approval ui request rejected", "path", r.URL.Path, "reason", "session token")
			http.Error(w, HTTPErrorUnauthorizedText, http.StatusUnauthorized)
			return
		}

		next(w, r)
	})
}
