package admin

import (
	"log/slog"
	"net/http"

	"kycgate/pkg/requestcontext"
)

// RequireAdmin rejects callers without the administrative role. It must run
// after the auth middleware has populated the caller's role.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !requestcontext.IsAdmin(ctx) {
				logger.WarnContext(ctx, "admin role required",
					"request_id", requestcontext.RequestID(ctx),
					"user_id", requestcontext.UserID(ctx).String(),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin role required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
