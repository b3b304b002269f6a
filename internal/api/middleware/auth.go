package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/docextract/internal/api"
)

// StaticKeys holds the accepted bearer tokens as digests so comparison
// time does not depend on which key matched.
type StaticKeys struct {
	digests [][32]byte
}

func NewStaticKeys(keys []string) *StaticKeys {
	s := &StaticKeys{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		s.digests = append(s.digests, sha256.Sum256([]byte(k)))
	}
	return s
}

// Enabled reports whether any key is configured
func (s *StaticKeys) Enabled() bool {
	return len(s.digests) > 0
}

// Valid reports whether token matches a configured key
func (s *StaticKeys) Valid(token string) bool {
	d := sha256.Sum256([]byte(token))
	ok := 0
	for _, k := range s.digests {
		ok |= subtle.ConstantTimeCompare(d[:], k[:])
	}
	return ok == 1
}

// APIKeyAuth requires a configured bearer token. With no keys configured
// every request passes.
func APIKeyAuth(keys *StaticKeys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil || !keys.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			if !keys.Valid(strings.TrimPrefix(authHeader, "Bearer ")) {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
