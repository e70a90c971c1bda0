// Package middleware holds the HTTP middleware applied around API
// handlers.
package middleware

import (
	"net/http"

	"github.com/lcollado/adforge/internal/api/shared"
)

// Trace attaches a trace ID to every request context so handlers and
// error responses can be correlated in logs.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
