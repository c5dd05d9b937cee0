package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// IngestSecretHeader carries the shared ingestion secret.
const IngestSecretHeader = "X-Ingest-Secret"

// IngestSecret guards the ingestion trigger with a shared secret, accepted in
// X-Ingest-Secret or as a bearer token. An empty secret leaves the route open.
func IngestSecret(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	secret = strings.TrimSpace(secret)
	if logger == nil {
		logger = slog.Default()
	}
	if secret == "" {
		logger.Warn("INGEST_CRON_SECRET is not set; the ingestion trigger is unauthenticated")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || secretMatches(r, secret) {
				next.ServeHTTP(w, r)
				return
			}
			writeUnauthorized(w, "unauthorized")
		})
	}
}

func secretMatches(r *http.Request, secret string) bool {
	candidates := []string{strings.TrimSpace(r.Header.Get(IngestSecretHeader))}
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		candidates = append(candidates, token)
	}
	for _, c := range candidates {
		if c != "" && subtle.ConstantTimeCompare([]byte(c), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}
