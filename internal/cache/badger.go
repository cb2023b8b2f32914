package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"focus-backend/internal/logging"
	"focus-backend/internal/models"
)

// BadgerConfig holds configuration for the persistent store
type BadgerConfig struct {
	Dir        string
	TTL        time.Duration
	GCInterval time.Duration
	InMemory   bool
}

// DefaultBadgerConfig returns default configuration
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		Dir:        "./data/prediction-cache",
		TTL:        24 * time.Hour,
		GCInterval: 10 * time.Minute,
	}
}

// Badger stores predictions in BadgerDB with a per-entry TTL, so entries survive restarts.
type Badger struct {
	db         *badger.DB
	ttl        time.Duration
	gcInterval time.Duration
	owned      bool
}

// OpenBadger opens (or creates) a BadgerDB at config.Dir
func OpenBadger(config BadgerConfig) (*Badger, error) {
	opts := badger.DefaultOptions(config.Dir)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", config.Dir, err)
	}

	b := NewBadger(db, config.TTL)
	b.gcInterval = config.GCInterval
	b.owned = true
	return b, nil
}

// NewBadger wraps an already opened DB. The caller keeps ownership of db.
func NewBadger(db *badger.DB, ttl time.Duration) *Badger {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Badger{db: db, ttl: ttl, gcInterval: 10 * time.Minute}
}

// Name implements Store.
func (b *Badger) Name() string { return "badger" }

// Get implements Store. Expired entries are invisible to badger reads.
func (b *Badger) Get(ctx context.Context, key Key) (models.Prediction, bool, error) {
	p, _, found, err := b.GetWithExpiry(ctx, key)
	return p, found, err
}

// GetWithExpiry is Get plus the entry's expiry, at badger's one-second resolution.
func (b *Badger) GetWithExpiry(_ context.Context, key Key) (models.Prediction, time.Time, bool, error) {
	var (
		p         models.Prediction
		expiresAt time.Time
		found     bool
	)

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		if ts := item.ExpiresAt(); ts > 0 {
			expiresAt = time.Unix(int64(ts), 0)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return models.Prediction{}, time.Time{}, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return p, expiresAt, found, nil
}

// Put implements Store.
func (b *Badger) Put(_ context.Context, key Key, p models.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key.String()), data).WithTTL(b.ttl))
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (b *Badger) Delete(_ context.Context, key Key) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key.String()))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the DB if this store opened it.
func (b *Badger) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

// Serve runs value log garbage collection until ctx is done.
func (b *Badger) Serve(ctx context.Context) error {
	log := logging.Component("badger-gc")
	ticker := time.NewTicker(b.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Keep collecting while badger reports it rewrote a file
			for {
				err := b.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
					log.Warn().Err(err).Msg("value log GC failed")
				}
				break
			}
		}
	}
}

func (b *Badger) String() string { return "badger-gc" }
