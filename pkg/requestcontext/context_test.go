package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "kycgate/pkg/domain"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()

	assert.True(t, UserID(ctx).IsNil())
	assert.Equal(t, RoleUser, CallerRole(ctx))
	assert.False(t, IsAdmin(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestInjectedValues(t *testing.T) {
	userID := id.UserID(uuid.New())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ctx := WithUserID(context.Background(), userID)
	ctx = WithRole(ctx, RoleAdmin)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTime(ctx, fixed)
	ctx = WithClientMetadata(ctx, "10.0.0.1", "curl/8.0")

	assert.Equal(t, userID, UserID(ctx))
	assert.True(t, IsAdmin(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
}
