package supervisor

import (
	"context"
	"time"

	"focus-backend/internal/logging"
)

// ExpiringCache drops expired entries on request
type ExpiringCache interface {
	CleanupExpired() int
}

// CacheJanitorService periodically removes expired cache entries so memory is
// released even for keys that are never read again.
type CacheJanitorService struct {
	cache    ExpiringCache
	interval time.Duration
}

func NewCacheJanitorService(cache ExpiringCache, interval time.Duration) *CacheJanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheJanitorService{cache: cache, interval: interval}
}

// Serve implements suture.Service.
func (j *CacheJanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := j.cache.CleanupExpired(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Expired cache entries removed")
			}
		}
	}
}

func (j *CacheJanitorService) String() string { return "cache-janitor" }
