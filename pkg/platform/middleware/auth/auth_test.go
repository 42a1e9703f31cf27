package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"kycgate/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) { return s.claims, s.err }

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userID := uuid.New()

	var gotAdmin bool
	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAdmin = requestcontext.IsAdmin(r.Context())
		gotUser = requestcontext.UserID(r.Context()).String()
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		h := RequireAuth(stubValidator{}, logger)(next)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		h := RequireAuth(stubValidator{err: errors.New("bad")}, logger)(next)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non uuid subject is unauthorized", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: &JWTClaims{UserID: "nope"}}, logger)(next)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid admin token populates context", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: &JWTClaims{UserID: userID.String(), Role: "admin"}}, logger)(next)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.True(t, gotAdmin)
		assert.Equal(t, userID.String(), gotUser)
	})
}
