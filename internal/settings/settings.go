package settings

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	KeyDedupWindow     = "dedup_window"
	KeyScoreStaleAfter = "score_stale_after"
	KeyTierFreshness   = "tier_freshness"
	KeyVouchRequestTTL = "vouch_request_ttl"
)

// Settings are the runtime-tunable trust knobs. Config supplies the defaults;
// rows in trust_settings override them.
type Settings struct {
	DedupWindow     time.Duration `json:"dedup_window"`
	ScoreStaleAfter time.Duration `json:"score_stale_after"`
	TierFreshness   time.Duration `json:"tier_freshness"`
	VouchRequestTTL time.Duration `json:"vouch_request_ttl"`
}

type Store interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
}

// Cache serves Settings from memory for ttl. The clock is injected so tests
// can expire it deterministically.
type Cache struct {
	store    Store
	defaults Settings
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	current  Settings
	loadedAt time.Time
	loaded   bool
}

func NewCache(store Store, defaults Settings, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Cache {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{
		store:    store,
		defaults: defaults,
		ttl:      ttl,
		now:      now,
		logger:   logger,
		current:  defaults,
	}
}

// Get returns the cached settings, reloading once the ttl has passed. When a
// reload fails the previous value keeps being served and the error is returned
// only if nothing was ever loaded.
func (c *Cache) Get(ctx context.Context) (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.loaded && now.Sub(c.loadedAt) < c.ttl {
		return c.current, nil
	}
	if c.store == nil {
		c.current, c.loadedAt, c.loaded = c.defaults, now, true
		return c.current, nil
	}

	rows, err := c.store.LoadSettings(ctx)
	if err != nil {
		if c.loaded {
			c.logger.Warn("trust settings reload failed, serving previous", "err", err)
			return c.current, nil
		}
		return c.defaults, err
	}
	c.current = apply(c.defaults, rows, c.logger)
	c.loadedAt, c.loaded = now, true
	return c.current, nil
}

// Invalidate forces the next Get to reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// DedupWindow matches the window func the ledger takes.
func (c *Cache) DedupWindow(ctx context.Context) time.Duration {
	s, _ := c.Get(ctx)
	return s.DedupWindow
}

func apply(base Settings, rows map[string]string, logger *slog.Logger) Settings {
	out := base
	for key, raw := range rows {
		var target *time.Duration
		switch key {
		case KeyDedupWindow:
			target = &out.DedupWindow
		case KeyScoreStaleAfter:
			target = &out.ScoreStaleAfter
		case KeyTierFreshness:
			target = &out.TierFreshness
		case KeyVouchRequestTTL:
			target = &out.VouchRequestTTL
		default:
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil || d < 0 {
			logger.Warn("ignoring invalid trust setting", "key", key, "value", raw)
			continue
		}
		*target = d
	}
	return out
}
