package testutil

import (
	"net/http"

	id "kycgate/pkg/domain"
	"kycgate/pkg/requestcontext"
)

// AsUser places the caller on the request context the way RequireAuth does.
func AsUser(req *http.Request, userID id.UserID) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, requestcontext.RoleUser)
	return req.WithContext(ctx)
}

// AsAdmin is AsUser with the administrative role.
func AsAdmin(req *http.Request, userID id.UserID) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, requestcontext.RoleAdmin)
	return req.WithContext(ctx)
}

// WithDevice sets the User-Agent header so ClientMetadata can label the device.
func WithDevice(req *http.Request, userAgent string) *http.Request {
	req.Header.Set("User-Agent", userAgent)
	return req
}
