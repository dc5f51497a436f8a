// Package showtime resolves showtime descriptions (movie, theater, screen,
// start time) from the showtime service.  Lookups only decorate bookings,
// so every implementation is allowed to fail and callers fall back to
// placeholders.
package showtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking-saga/internal/config"
	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

// ErrNotFound is returned when the showtime service does not know the id.
var ErrNotFound = errors.New("showtime not found")

// Catalog looks up a showtime by id.
type Catalog interface {
	Lookup(ctx context.Context, showtimeID string) (model.ShowtimeInfo, error)
}

// HTTPCatalog reads GET {base}/api/showtimes/{id}.
type HTTPCatalog struct {
	baseURL string
	http    *http.Client
}

func NewHTTPCatalog(cfg config.ShowtimeConfig) *HTTPCatalog {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPCatalog{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *HTTPCatalog) Lookup(ctx context.Context, showtimeID string) (model.ShowtimeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/showtimes/"+url.PathEscape(showtimeID), nil)
	if err != nil {
		return model.ShowtimeInfo{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return model.ShowtimeInfo{}, fmt.Errorf("showtime lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return model.ShowtimeInfo{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return model.ShowtimeInfo{}, fmt.Errorf("showtime lookup: status %d", resp.StatusCode)
	}
	var info model.ShowtimeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return model.ShowtimeInfo{}, fmt.Errorf("decode showtime: %w", err)
	}
	if info.ShowtimeID == "" {
		info.ShowtimeID = showtimeID
	}
	return info, nil
}

// CachedCatalog keeps successful lookups in Redis for ttl.  Cache errors are
// ignored and the lookup goes to next.
type CachedCatalog struct {
	next   Catalog
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedCatalog wraps next with a Redis cache.  With a nil client next is
// returned unchanged.
func NewCachedCatalog(next Catalog, rdb *redis.Client, ttl time.Duration, prefix string) Catalog {
	if rdb == nil {
		return next
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCatalog{next: next, rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *CachedCatalog) Lookup(ctx context.Context, showtimeID string) (model.ShowtimeInfo, error) {
	key := c.prefix + ":showtime:" + showtimeID
	if bs, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var info model.ShowtimeInfo
		if json.Unmarshal(bs, &info) == nil {
			return info, nil
		}
	}
	info, err := c.next.Lookup(ctx, showtimeID)
	if err != nil {
		return info, err
	}
	if bs, err := json.Marshal(info); err == nil {
		_ = c.rdb.Set(ctx, key, bs, c.ttl).Err()
	}
	return info, nil
}

// StaticCatalog answers every lookup with placeholders.  It is used when no
// showtime service is configured.
type StaticCatalog struct{}

func (StaticCatalog) Lookup(_ context.Context, showtimeID string) (model.ShowtimeInfo, error) {
	return model.UnknownShowtime(showtimeID), nil
}

// New picks the catalog for cfg: HTTP (optionally Redis cached) when a base
// URL is set, otherwise StaticCatalog.
func New(cfg config.ShowtimeConfig, rdb *redis.Client, cacheCfg config.CacheConfig) Catalog {
	if cfg.BaseURL == "" {
		return StaticCatalog{}
	}
	var cat Catalog = NewHTTPCatalog(cfg)
	if cacheCfg.Enabled {
		cat = NewCachedCatalog(cat, rdb, cacheCfg.ShowtimeTTL, cacheCfg.Prefix)
	}
	return cat
}
