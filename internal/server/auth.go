package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/priorart-go/internal/logging"
)

// apiKeyHeader is accepted as an alternative to a Bearer token for clients
// that cannot set Authorization.
const apiKeyHeader = "X-API-Key"

// apiKeyAuth guards the /api/* routes that run or expose analyses.
type apiKeyAuth struct {
	key []byte
	// failures counts rejected requests by reason ("missing" or "invalid").
	failures *prometheus.CounterVec
}

// newAPIKeyAuth returns nil when key is empty, which disables the check.
func newAPIKeyAuth(key string, failures *prometheus.CounterVec) *apiKeyAuth {
	if key == "" {
		return nil
	}
	return &apiKeyAuth{key: []byte(key), failures: failures}
}

// wrap requires a matching key on every request to next. The presented
// credential is never logged.
func (a *apiKeyAuth) wrap(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := presentedKey(r)
		switch {
		case got == "":
			a.reject(w, r, "missing", `Bearer realm="priorart"`, "authorization required")
		case subtle.ConstantTimeCompare([]byte(got), a.key) != 1:
			a.reject(w, r, "invalid", `Bearer realm="priorart", error="invalid_token"`, "invalid api key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (a *apiKeyAuth) reject(w http.ResponseWriter, r *http.Request, reason, challenge, msg string) {
	if a.failures != nil {
		a.failures.WithLabelValues(reason).Inc()
	}
	logging.FromContext(r.Context()).Warn("auth: request rejected", slog.String("reason", reason))
	w.Header().Set("WWW-Authenticate", challenge)
	writeError(w, http.StatusUnauthorized, msg)
}

// presentedKey returns the Bearer token, falling back to X-API-Key.
func presentedKey(r *http.Request) string {
	if tok := bearerToken(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// bearerToken parses "Bearer <token>" with a case-insensitive scheme.
func bearerToken(header string) string {
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
