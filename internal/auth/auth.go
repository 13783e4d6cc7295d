// Package auth guards the API with a single static bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

const realm = "umbra"

// public reports whether path is served without a token: liveness,
// readiness, metrics scraping and the zone catalogue.
func public(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/v1/zones":
		return true
	}
	return false
}

// credential is the outcome of reading the Authorization header.
type credential int

const (
	credMissing credential = iota
	credMalformed
	credWrong
	credValid
)

// check reads a bearer token from the Authorization header. The scheme is
// matched case-insensitively.
func (c Config) check(header string) credential {
	if header == "" {
		return credMissing
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return credMalformed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return credMalformed
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.Token)) != 1 {
		return credWrong
	}
	return credValid
}

// challenge builds the WWW-Authenticate value for a rejected credential.
func challenge(cred credential) string {
	switch cred {
	case credMalformed:
		return `Bearer realm="` + realm + `", error="invalid_request"`
	case credWrong:
		return `Bearer realm="` + realm + `", error="invalid_token"`
	}
	return `Bearer realm="` + realm + `"`
}

// Middleware rejects requests to non-public paths that lack the configured
// bearer token. It is a pass-through when auth is disabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if cred := cfg.check(r.Header.Get("Authorization")); cred != credValid {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", challenge(cred))
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
