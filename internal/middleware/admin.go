package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminTokenHeader carries the operator credential for admin endpoints.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdmin returns middleware that gates operator endpoints on a shared
// admin token, checked in constant time. An empty configured token disables
// the endpoints entirely rather than leaving them open.
func RequireAdmin(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(AdminTokenHeader)
			if adminToken == "" || presented == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
