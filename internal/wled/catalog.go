package wled

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrCatalogStatus is returned when the device answers a catalog request with
// a non-200 status.
var ErrCatalogStatus = errors.New("unexpected catalog status")

// Preset is a device-stored scene.
type Preset struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	QuickLabel string `json:"quick_label,omitempty"`
}

// Label is the display name: the quick label (usually an emoji) followed by
// the preset name.
func (p Preset) Label() string {
	if p.QuickLabel != "" {
		return p.QuickLabel + " " + p.Name
	}
	return p.Name
}

type rawPreset struct {
	N  string `json:"n"`
	QL string `json:"ql"`
}

// CatalogConfig contains catalog request settings.
type CatalogConfig struct {
	Timeout   time.Duration // HTTP timeout per request
	CacheTTL  time.Duration // How long a host's catalog is reused
	CacheSize int           // Max hosts cached
}

// Catalog fetches preset and effect lists from devices over HTTP. Responses
// are cached per host and concurrent lookups for one host share a request.
type Catalog struct {
	httpClient *http.Client
	cache      gcache.Cache
	group      singleflight.Group
}

// NewCatalog creates a catalog client.
func NewCatalog(config CatalogConfig) *Catalog {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 10 * time.Minute
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 32
	}

	return &Catalog{
		httpClient: &http.Client{Timeout: config.Timeout},
		cache:      gcache.New(config.CacheSize).LRU().Expiration(config.CacheTTL).Build(),
	}
}

// Presets returns the named presets stored on host, ordered by id. WLED's
// placeholder preset 0 and unnamed slots are skipped.
func (c *Catalog) Presets(ctx context.Context, host string) ([]Preset, error) {
	v, err := c.cached(ctx, "presets:"+host, func(ctx context.Context) (any, error) {
		var raw map[string]rawPreset
		if err := c.getJSON(ctx, fmt.Sprintf("http://%s/presets.json", host), &raw); err != nil {
			return nil, err
		}
		return parsePresets(raw), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Preset), nil
}

// Effects returns the effect names of host, indexed by effect id.
func (c *Catalog) Effects(ctx context.Context, host string) ([]string, error) {
	v, err := c.cached(ctx, "effects:"+host, func(ctx context.Context) (any, error) {
		var effects []string
		if err := c.getJSON(ctx, fmt.Sprintf("http://%s/json/effects", host), &effects); err != nil {
			return nil, err
		}
		return effects, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Catalog) cached(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	if v, err := c.cache.Get(key); err == nil {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(key, v); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to cache catalog")
		}
		return v, nil
	})
	if shared {
		log.Debug().Str("key", key).Msg("Catalog request shared")
	}
	return v, err
}

func (c *Catalog) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d from %s", ErrCatalogStatus, resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

func parsePresets(raw map[string]rawPreset) []Preset {
	presets := make([]Preset, 0, len(raw))
	for key, p := range raw {
		id, err := strconv.Atoi(key)
		if err != nil || id <= 0 || p.N == "" {
			continue
		}
		presets = append(presets, Preset{ID: id, Name: p.N, QuickLabel: p.QL})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].ID < presets[j].ID })
	return presets
}

// FilterEnabled returns the presets whose ids are enabled, in enabled order,
// and the enabled ids the catalog does not know.
func FilterEnabled(presets []Preset, enabled []int) (selected []Preset, missing []int) {
	byID := make(map[int]Preset, len(presets))
	for _, p := range presets {
		byID[p.ID] = p
	}

	for _, id := range enabled {
		p, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected = append(selected, p)
	}
	return selected, missing
}
