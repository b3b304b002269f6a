package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/docextract/internal/api"
)

// MaxBodyBytes caps the size of submitted documents. Requests that declare a
// larger Content-Length are rejected up front; others are cut off by
// http.MaxBytesReader and reported by api.DecodeJSON. GET and HEAD pass through.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
