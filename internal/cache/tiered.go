package cache

import (
	"context"
	"errors"
	"time"

	"focus-backend/internal/logging"
	"focus-backend/internal/models"
)

// Tiered puts a fast store (L1) in front of a persistent one (L2).
// Writes go to both; L2 hits are copied into L1 without outliving the L2 entry.
type Tiered struct {
	l1 Store
	l2 Store
}

// NewTiered creates a two-level store
func NewTiered(l1, l2 Store) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Name implements Store.
func (t *Tiered) Name() string { return t.l1.Name() + "+" + t.l2.Name() }

// Get implements Store.
func (t *Tiered) Get(ctx context.Context, key Key) (models.Prediction, bool, error) {
	p, ok, err := t.l1.Get(ctx, key)
	if err == nil && ok {
		return p, true, nil
	}

	var expiresAt time.Time
	if r, canReport := t.l2.(expiryReader); canReport {
		p, expiresAt, ok, err = r.GetWithExpiry(ctx, key)
	} else {
		p, ok, err = t.l2.Get(ctx, key)
	}
	if err != nil || !ok {
		return models.Prediction{}, false, err
	}

	if err := t.promote(ctx, key, p, expiresAt); err != nil {
		logging.Warn().Err(err).Str("key", key.String()).Msg("failed to promote cache entry")
	}
	return p, true, nil
}

// promote copies an L2 hit into L1, keeping the L2 expiry when both sides support it
func (t *Tiered) promote(ctx context.Context, key Key, p models.Prediction, expiresAt time.Time) error {
	if w, ok := t.l1.(expiryWriter); ok && !expiresAt.IsZero() {
		return w.PutUntil(ctx, key, p, expiresAt)
	}
	return t.l1.Put(ctx, key, p)
}

// Put implements Store. The L1 write always happens; an L2 failure is returned.
func (t *Tiered) Put(ctx context.Context, key Key, p models.Prediction) error {
	return errors.Join(t.l1.Put(ctx, key, p), t.l2.Put(ctx, key, p))
}

// Delete implements Store.
func (t *Tiered) Delete(ctx context.Context, key Key) error {
	return errors.Join(t.l1.Delete(ctx, key), t.l2.Delete(ctx, key))
}

// Close implements Store.
func (t *Tiered) Close() error {
	return errors.Join(t.l1.Close(), t.l2.Close())
}
