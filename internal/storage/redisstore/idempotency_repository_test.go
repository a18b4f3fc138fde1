package redisstore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func openRedisForIntegrationTest(t *testing.T) *redis.Client {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("STOREFRONT_REDIS_TEST_ADDR"))
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rdb, err := Open(ctx, addr)
	if err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestIdempotencyRepository_RedisFlow(t *testing.T) {
	repo := NewIdempotencyRepository(openRedisForIntegrationTest(t))
	ctx := context.Background()
	scope := domain.IdempotencyScope{Operation: domain.IdempotentPlaceOrder, Key: "test-" + uuid.NewString()}
	ttl := time.Now().UTC().Add(time.Minute).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, scope, "hash-a", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	_, err = repo.CreateProcessing(ctx, scope, "hash-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	_, err = repo.CreateProcessing(ctx, scope, "hash-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	otherOp := domain.IdempotencyScope{Operation: domain.IdempotentCreateProduct, Key: scope.Key}
	_, err = repo.CreateProcessing(ctx, otherOp, "hash-b", ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Delete(context.Background(), otherOp) })

	require.NoError(t, repo.MarkDone(ctx, scope, []byte(`{"ok":true}`), 0))

	got, err := repo.Get(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, scope, got.Scope)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.JSONEq(t, `{"ok":true}`, string(got.ResponseBody))
	require.True(t, got.TTLAt.Equal(ttl))

	require.NoError(t, repo.Delete(ctx, scope))
	_, err = repo.Get(ctx, scope)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	require.ErrorIs(t, repo.MarkFailed(ctx, scope, nil, 13), domain.ErrIdempotencyKeyNotFound)

	removed, err := repo.DeleteExpired(ctx, domain.IdempotentPlaceOrder, time.Now(), 10)
	require.NoError(t, err)
	require.Zero(t, removed)
	require.NoError(t, repo.Ping(ctx))
}

func TestIdempotencyRepository_Validation(t *testing.T) {
	repo := NewIdempotencyRepository(nil)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, domain.IdempotencyScope{Operation: domain.IdempotentPlaceOrder, Key: " "}, "hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(ctx, domain.IdempotencyScope{Operation: domain.IdempotentPlaceOrder, Key: "key"}, "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	_, err = repo.Get(ctx, domain.IdempotencyScope{Operation: "ListOrders", Key: "key"})
	require.ErrorIs(t, err, domain.ErrIdempotencyOperationUnknown)
	_, err = repo.DeleteExpired(ctx, "ListOrders", time.Now(), 0)
	require.ErrorIs(t, err, domain.ErrIdempotencyOperationUnknown)
}

func TestRecordCodec(t *testing.T) {
	_, err := decodeRecord([]byte(`{"key":"k","status":"broken"}`))
	require.Error(t, err)

	scope := domain.IdempotencyScope{Operation: domain.IdempotentRegisterCustomer, Key: "k"}
	data, err := encodeRecord(domain.IdempotencyRecord{Scope: scope, RequestHash: "h", Status: domain.IdempotencyStatusFailed, StatusCode: 6})
	require.NoError(t, err)
	rec, err := decodeRecord(data)
	require.NoError(t, err)
	require.Equal(t, scope, rec.Scope)
	require.Equal(t, 6, rec.StatusCode)
	require.Equal(t, domain.IdempotencyStatusFailed, rec.Status)
	require.Equal(t, "storefront:idem:RegisterCustomer:k", redisKey(scope))
}
