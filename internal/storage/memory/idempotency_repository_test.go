package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func placeOrderKey(key string) domain.IdempotencyScope {
	return domain.IdempotencyScope{Operation: domain.IdempotentPlaceOrder, Key: key}
}

func TestIdempotencyRepository_CreateAndGet(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, placeOrderKey(" order-1 "), "hash-1", ttl)
	if err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if created.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("expected status %s, got %s", domain.IdempotencyStatusProcessing, created.Status)
	}
	if created.Scope.Key != "order-1" {
		t.Fatalf("expected trimmed key, got %q", created.Scope.Key)
	}

	got, err := repo.Get(ctx, placeOrderKey("order-1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RequestHash != "hash-1" || !got.TTLAt.Equal(ttl) {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestIdempotencyRepository_ConflictAndHashMismatch(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing(ctx, placeOrderKey("k"), "hash-a", ttl); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}

	existing, err := repo.CreateProcessing(ctx, placeOrderKey("k"), "hash-a", ttl)
	if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	if existing.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("conflict must return the stored record, got %+v", existing)
	}

	if _, err := repo.CreateProcessing(ctx, placeOrderKey("k"), "hash-b", ttl); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}
}

func TestIdempotencyRepository_KeysAreScopedByOperation(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, placeOrderKey("shared"), "order-hash", time.Time{}); err != nil {
		t.Fatalf("CreateProcessing order failed: %v", err)
	}
	register := domain.IdempotencyScope{Operation: domain.IdempotentRegisterCustomer, Key: "shared"}
	if _, err := repo.CreateProcessing(ctx, register, "customer-hash", time.Time{}); err != nil {
		t.Fatalf("same key for another operation must be independent: %v", err)
	}

	unknown := domain.IdempotencyScope{Operation: "GetOrder", Key: "shared"}
	if _, err := repo.CreateProcessing(ctx, unknown, "hash", time.Time{}); !errors.Is(err, domain.ErrIdempotencyOperationUnknown) {
		t.Fatalf("expected ErrIdempotencyOperationUnknown, got %v", err)
	}
}

func TestIdempotencyRepository_DeleteReleasesKey(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, placeOrderKey("retry"), "hash", time.Time{}); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if err := repo.Delete(ctx, placeOrderKey("retry")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, placeOrderKey("retry"), "hash", time.Time{}); err != nil {
		t.Fatalf("released key must be reusable: %v", err)
	}
	if err := repo.Delete(ctx, placeOrderKey("never-created")); err != nil {
		t.Fatalf("deleting a missing key must succeed: %v", err)
	}
}

func TestIdempotencyRepository_MarkDoneAndDeleteExpiredPerOperation(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	expiredProduct := domain.IdempotencyScope{Operation: domain.IdempotentCreateProduct, Key: "expired"}
	for scope, ttl := range map[domain.IdempotencyScope]time.Time{
		placeOrderKey("expired"): now.Add(-time.Minute),
		placeOrderKey("active"):  now.Add(time.Hour),
		expiredProduct:           now.Add(-time.Minute),
	} {
		if _, err := repo.CreateProcessing(ctx, scope, "hash", ttl); err != nil {
			t.Fatalf("CreateProcessing %s failed: %v", scope, err)
		}
	}

	if err := repo.MarkDone(ctx, placeOrderKey("active"), []byte(`{"ok":true}`), 0); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	active, err := repo.Get(ctx, placeOrderKey("active"))
	if err != nil {
		t.Fatalf("Get active failed: %v", err)
	}
	if active.Status != domain.IdempotencyStatusDone || string(active.ResponseBody) != `{"ok":true}` {
		t.Fatalf("unexpected active record: %+v", active)
	}

	removed, err := repo.DeleteExpired(ctx, domain.IdempotentPlaceOrder, now, 10)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected removed=1, got %d", removed)
	}
	if _, err := repo.Get(ctx, placeOrderKey("expired")); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected expired key to be deleted, got %v", err)
	}
	if _, err := repo.Get(ctx, expiredProduct); err != nil {
		t.Fatalf("other operations must not be swept: %v", err)
	}

	if err := repo.MarkFailed(ctx, placeOrderKey("expired"), nil, 9); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected ErrIdempotencyKeyNotFound, got %v", err)
	}
}

func TestIdempotencyRepository_CanceledContext(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.CreateProcessing(ctx, placeOrderKey("canceled"), "hash", time.Time{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
