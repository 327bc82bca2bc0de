package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestKVRegistry(t *testing.T) *KVRegistry {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewKVRegistry(client, "test_task:")
}

func TestKVRegistryCreateThenGet(t *testing.T) {
	ctx := context.Background()
	r := newTestKVRegistry(t)

	rec, err := r.Create(ctx, "k1", map[string]any{"topic": "widgets"}, "widgets", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", rec.Status)
	}

	got, err := r.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Topic != "widgets" {
		t.Fatalf("got %+v", got)
	}
}

// TestQ5SingleFlightCreateKV mirrors the SQLRegistry property against
// HSETNX's atomicity guarantee.
func TestQ5SingleFlightCreateKV(t *testing.T) {
	ctx := context.Background()
	r := newTestKVRegistry(t)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Create(ctx, "dup", map[string]any{}, "topic", 0)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, exists int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrTaskExists):
			exists++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly 1 successful create, got %d", ok)
	}
	if exists != attempts-1 {
		t.Fatalf("expected %d ErrTaskExists, got %d", attempts-1, exists)
	}
}

func TestKVRegistryCreateWithTTLExpiresHash(t *testing.T) {
	ctx := context.Background()
	r := newTestKVRegistry(t)

	if _, err := r.Create(ctx, "k2", map[string]any{}, "topic", time.Minute); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Get(ctx, "k2"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}
	ttl, err := r.client.TTL(ctx, r.key("k2")).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected the task hash to carry a TTL of at most 1m, got %v", ttl)
	}
}

func TestKVRegistryUpdateStatusRejectsInvalidTransition(t *testing.T) {
	ctx := context.Background()
	r := newTestKVRegistry(t)

	if _, err := r.Create(ctx, "k3", map[string]any{}, "topic", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.UpdateStatus(ctx, "k3", StatusCompleted, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestKVRegistryListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	r := newTestKVRegistry(t)

	if _, err := r.Create(ctx, "k4", map[string]any{}, "topic", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create(ctx, "k5", map[string]any{}, "topic", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.UpdateStatus(ctx, "k5", StatusPreparing, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	pending, err := r.List(ctx, StatusPending, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "k4" {
		t.Fatalf("expected exactly k4 pending, got %+v", pending)
	}
}

func TestKVRegistryDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestKVRegistry(t)

	if _, err := r.Create(ctx, "k6", map[string]any{}, "topic", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Delete(ctx, "k6"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Get(ctx, "k6"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound after delete, got %v", err)
	}
}

func TestKVRegistryHealthCheck(t *testing.T) {
	r := newTestKVRegistry(t)
	if err := r.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
