package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halcyon-data/docdex/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn    func(ctx context.Context, key string) ([]byte, error)
	incrFn   func(ctx context.Context, key string, val int64) error
	expireFn func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) IncrBy(ctx context.Context, key string, val int64) error {
	if m.incrFn != nil {
		return m.incrFn(ctx, key, val)
	}
	return nil
}

func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func TestIncrBy_SetsDailyTTL(t *testing.T) {
	var gotTTL time.Duration
	var gotNX bool
	m := &mockStore{
		expireFn: func(_ context.Context, _ string, ttl time.Duration, nx bool) error {
			gotTTL, gotNX = ttl, nx
			return nil
		},
	}

	s := New(m, 48*time.Hour, 62*24*time.Hour)
	if err := s.IncrBy(context.Background(), "docdex:budget:openai:daily:2026-08-26", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != 48*time.Hour {
		t.Errorf("expected daily TTL 48h, got %v", gotTTL)
	}
	if !gotNX {
		t.Error("expected NX expire so repeat increments keep the original TTL")
	}
}

func TestIncrBy_SetsMonthlyTTL(t *testing.T) {
	var gotTTL time.Duration
	m := &mockStore{
		expireFn: func(_ context.Context, _ string, ttl time.Duration, _ bool) error {
			gotTTL = ttl
			return nil
		},
	}

	s := New(m, 48*time.Hour, 62*24*time.Hour)
	if err := s.IncrBy(context.Background(), "docdex:budget:openai:monthly:2026-08", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != 62*24*time.Hour {
		t.Errorf("expected monthly TTL 62d, got %v", gotTTL)
	}
}

func TestIncrBy_IncrError(t *testing.T) {
	m := &mockStore{
		incrFn: func(_ context.Context, _ string, _ int64) error {
			return errors.New("connection reset")
		},
	}

	s := New(m, time.Hour, time.Hour)
	if err := s.IncrBy(context.Background(), "docdex:budget:openai:daily:2026-08-26", 1); err == nil {
		t.Error("expected error")
	}
}

func TestGet_ReturnsValue(t *testing.T) {
	m := &mockStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("38420"), nil
		},
	}

	s := New(m, time.Hour, time.Hour)
	val, err := s.Get(context.Background(), "docdex:budget:openai:daily:2026-08-26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 38420 {
		t.Errorf("expected 38420, got %d", val)
	}
}

func TestGet_MissingKeyIsZero(t *testing.T) {
	s := New(&mockStore{}, time.Hour, time.Hour)

	val, err := s.Get(context.Background(), "docdex:budget:openai:daily:2026-08-26")
	if err != nil {
		t.Fatalf("missing key must not be an error, got %v", err)
	}
	if val != 0 {
		t.Errorf("expected 0 for missing key, got %d", val)
	}
}

func TestGet_MalformedValue(t *testing.T) {
	m := &mockStore{
		getFn: func(_ context.Context, _ string) ([]byte, error) {
			return []byte("not-a-number"), nil
		},
	}

	s := New(m, time.Hour, time.Hour)
	if _, err := s.Get(context.Background(), "docdex:budget:openai:daily:2026-08-26"); err == nil {
		t.Error("expected parse error")
	}
}
