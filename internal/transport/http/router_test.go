package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	jwttoken "kycgate/internal/jwt_token"
	"kycgate/internal/kyc/handler"
	"kycgate/internal/kyc/handler/mocks"
	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/service"
	"kycgate/internal/platform/metrics"
	id "kycgate/pkg/domain"
	"kycgate/pkg/requestcontext"
)

type fixture struct {
	router  http.Handler
	service *mocks.MockService
	jwt     *jwttoken.JWTService
}

func newFixture(t *testing.T, checks map[string]HealthCheck) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := jwttoken.NewJWTService("test-secret", "kycgate", "kycgate-api")
	reg := prometheus.NewRegistry()

	router := NewRouter(Deps{
		Logger:       logger,
		JWTValidator: jwttoken.NewJWTServiceAdapter(jwt),
		KYC:          handler.New(svc, logger, 0),
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		Health:       checks,
	})
	return &fixture{router: router, service: svc, jwt: jwt}
}

func (f *fixture) token(t *testing.T, role requestcontext.Role) string {
	t.Helper()
	tok, err := f.jwt.GenerateAccessToken(id.UserID(uuid.New()), role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestKYCRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get("/kyc/status", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.get("/kyc/status", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKYCRoutesWithToken(t *testing.T) {
	f := newFixture(t, nil)
	f.service.EXPECT().GetLatest(gomock.Any(), gomock.Any()).
		Return(&service.UserStatus{KYCStatus: models.UserKYCInProgress}, nil)

	rec := f.get("/kyc/status", f.token(t, requestcontext.RoleUser))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get("/admin/kyc/stats", f.token(t, requestcontext.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.service.EXPECT().Stats(gomock.Any()).Return(&service.Stats{ByStatus: map[models.Status]int{}}, nil)
	rec = f.get("/admin/kyc/stats", f.token(t, requestcontext.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all healthy", func(t *testing.T) {
		f := newFixture(t, map[string]HealthCheck{"database": ok, "ledger": ok})
		rec := f.get("/health", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, map[string]string{"database": "ok", "ledger": "ok"}, body.Checks)
	})

	t.Run("one failing dependency", func(t *testing.T) {
		f := newFixture(t, map[string]HealthCheck{
			"database": ok,
			"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
		})
		rec := f.get("/health", "")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Contains(t, body.Checks["redis"], "connection refused")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.get("/kyc/status", "")

	rec := f.get("/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "kycgate_http_requests_total"))
}
