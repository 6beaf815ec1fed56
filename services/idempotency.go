package services

import (
	"context"
	"errors"
	"safegate/repositories"
	"time"
)

const (
	DefaultIdempotencyTTL = 10 * time.Minute
	pendingReservation    = "pending"
)

// IdempotencyGuard maps a client supplied Idempotency-Key to the report it
// produced so retried submits do not create a second emergency.
type IdempotencyGuard struct {
	kv  repositories.KVStore
	ttl time.Duration
}

func NewIdempotencyGuard(kv repositories.KVStore, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyGuard{kv: kv, ttl: ttl}
}

func idempotencyKey(userID, key string) string {
	return "idem:" + userID + ":" + key
}

// Reserve claims key for userID. When the key was already used it returns
// false and the report id recorded for it ("" while still in flight).
func (g *IdempotencyGuard) Reserve(ctx context.Context, userID, key string) (string, bool, error) {
	ok, err := g.kv.SetNX(ctx, idempotencyKey(userID, key), []byte(pendingReservation), g.ttl)
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}

	value, err := g.kv.Get(ctx, idempotencyKey(userID, key))
	if errors.Is(err, repositories.ErrNotFound) {
		// Expired between the two calls.
		return g.Reserve(ctx, userID, key)
	}
	if err != nil {
		return "", false, err
	}
	if string(value) == pendingReservation {
		return "", false, nil
	}
	return string(value), false, nil
}

// Complete records the report id for a reserved key. The pending marker is
// overwritten in place so the key is never free in between.
func (g *IdempotencyGuard) Complete(ctx context.Context, userID, key, reportID string) error {
	return g.kv.Set(ctx, idempotencyKey(userID, key), []byte(reportID), g.ttl)
}

// Release frees a key whose request failed before a report existed.
func (g *IdempotencyGuard) Release(ctx context.Context, userID, key string) error {
	return g.kv.Delete(ctx, idempotencyKey(userID, key))
}
