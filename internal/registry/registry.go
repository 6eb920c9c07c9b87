// Package registry remembers the accessories published in previous runs so
// they keep their identity across restarts.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/storage"
)

const kind = "accessory"

// FirstAccessoryID is the lowest id handed to an accessory; 1 is the bridge.
const FirstAccessoryID uint64 = 2

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("wledkit"))

// StableID derives the accessory identifier from its configured name.
func StableID(name string) string {
	return uuid.NewSHA1(namespace, []byte("wled:"+name)).String()
}

// Record is a cached accessory.
type Record struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Hosts     []string  `json:"hosts"`
	AID       uint64    `json:"aid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is the restart-time accessory cache.
type Registry struct {
	mu      sync.Mutex
	store   *storage.TypedStore[Record]
	records map[string]Record
	now     func() time.Time
}

// New loads the cached accessories from store.
func New(store *storage.Store) (*Registry, error) {
	typed := storage.NewTypedStore[Record](store, kind)

	records, err := typed.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load accessory cache: %w", err)
	}

	log.Debug().Int("count", len(records)).Msg("Loaded accessory cache")
	return &Registry{
		store:   typed,
		records: records,
		now:     time.Now,
	}, nil
}

// Restore returns the cached record for name, or registers a new one with a
// fresh accessory id. restored reports whether the accessory was cached.
func (r *Registry) Restore(name string, hosts []string) (rec Record, restored bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := StableID(name)
	now := r.now().UTC()

	rec, restored = r.records[id]
	if !restored {
		rec = Record{
			UUID:      id,
			Name:      name,
			AID:       r.nextAIDLocked(),
			CreatedAt: now,
		}
	}
	rec.Hosts = append([]string(nil), hosts...)
	rec.UpdatedAt = now

	if err := r.store.Set(id, rec); err != nil {
		return Record{}, false, fmt.Errorf("failed to save accessory %s: %w", name, err)
	}
	r.records[id] = rec

	return rec, restored, nil
}

// Prune removes cached accessories whose ids are not in keep and returns them.
func (r *Registry) Prune(keep []string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}

	var (
		removed []Record
		ids     []string
	)
	for id, rec := range r.records {
		if _, ok := wanted[id]; !ok {
			removed = append(removed, rec)
			ids = append(ids, id)
		}
	}

	if err := r.store.Delete(ids...); err != nil {
		return nil, fmt.Errorf("failed to prune accessory cache: %w", err)
	}
	for _, id := range ids {
		delete(r.records, id)
	}

	sortByAID(removed)
	return removed, nil
}

// Clear forgets every cached accessory. Accessories are re-registered with
// fresh ids on the next launch.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear accessory cache: %w", err)
	}
	r.records = make(map[string]Record)
	return nil
}

// All returns every cached accessory ordered by accessory id.
func (r *Registry) All() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	sortByAID(all)
	return all
}

func (r *Registry) nextAIDLocked() uint64 {
	next := FirstAccessoryID
	for _, rec := range r.records {
		if rec.AID >= next {
			next = rec.AID + 1
		}
	}
	return next
}

func sortByAID(records []Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].AID < records[j].AID })
}
