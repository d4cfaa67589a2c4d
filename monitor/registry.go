package monitor

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RegistrySnapshot represents a serializable snapshot of the registry.
// Snapshots are only valid within the trading day they were saved on.
type RegistrySnapshot struct {
	SavedAt time.Time `json:"savedAt"`
	Entries []*Entry  `json:"entries"`
}

// RegistryConfig represents the registry configuration.
type RegistryConfig struct {
	// Persist relays the provided snapshot to the state store. Persistence
	// failures are recovered by the callee; in-memory state is authoritative.
	Persist func(snapshot *RegistrySnapshot)
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Registry is the ordered collection of monitored instruments. It is
// snapshotted after every mutating operation.
type Registry struct {
	cfg        *RegistryConfig
	entries    []*Entry
	entriesMtx sync.RWMutex
}

// NewRegistry initializes a new instrument registry.
func NewRegistry(cfg *RegistryConfig) *Registry {
	return &Registry{
		cfg:     cfg,
		entries: []*Entry{},
	}
}

// Add adds the provided entry to the registry, rejecting duplicate symbols.
func (r *Registry) Add(entry *Entry) error {
	r.entriesMtx.Lock()
	for idx := range r.entries {
		if r.entries[idx].Symbol == entry.Symbol {
			r.entriesMtx.Unlock()
			return fmt.Errorf("%s is already being monitored", entry.Symbol)
		}
	}

	r.entries = append(r.entries, entry)
	r.entriesMtx.Unlock()

	r.Persist()
	return nil
}

// Remove removes the entry with the provided id from the registry.
func (r *Registry) Remove(id string) bool {
	r.entriesMtx.Lock()
	var removed bool
	for idx := range r.entries {
		if r.entries[idx].ID == id {
			r.entries = slices.Delete(r.entries, idx, idx+1)
			removed = true
			break
		}
	}
	r.entriesMtx.Unlock()

	if removed {
		r.Persist()
	}

	return removed
}

// Find returns the entry with the provided symbol.
func (r *Registry) Find(symbol string) *Entry {
	r.entriesMtx.RLock()
	defer r.entriesMtx.RUnlock()

	for idx := range r.entries {
		if r.entries[idx].Symbol == symbol {
			return r.entries[idx]
		}
	}

	return nil
}

// Entries returns the monitored entries in order.
func (r *Registry) Entries() []*Entry {
	r.entriesMtx.RLock()
	defer r.entriesMtx.RUnlock()

	return slices.Clone(r.entries)
}

// Symbols returns the symbols of all monitored entries in order.
func (r *Registry) Symbols() []string {
	r.entriesMtx.RLock()
	defer r.entriesMtx.RUnlock()

	symbols := make([]string, len(r.entries))
	for idx := range r.entries {
		symbols[idx] = r.entries[idx].Symbol
	}

	return symbols
}

// Len returns the number of monitored entries.
func (r *Registry) Len() int {
	r.entriesMtx.RLock()
	defer r.entriesMtx.RUnlock()

	return len(r.entries)
}

// Clear removes all entries from the registry without persisting, used when
// monitoring stops and persisted state is removed in the same step.
func (r *Registry) Clear() {
	r.entriesMtx.Lock()
	r.entries = []*Entry{}
	r.entriesMtx.Unlock()
}

// Persist snapshots the registry to the state store.
func (r *Registry) Persist() {
	if r.cfg.Persist == nil {
		return
	}

	r.entriesMtx.RLock()
	snapshot := &RegistrySnapshot{
		SavedAt: time.Now(),
		Entries: slices.Clone(r.entries),
	}
	r.entriesMtx.RUnlock()

	r.cfg.Persist(snapshot)
}

// Restore repopulates the registry from the provided snapshot. Snapshots from
// a prior trading day are discarded outright; stale crossover signals and
// entry prices from a previous session must never be replayed. Volatile
// observation fields are reset, configuration fields preserved.
func (r *Registry) Restore(snapshot *RegistrySnapshot, now time.Time) int {
	if snapshot == nil {
		return 0
	}

	saved := snapshot.SavedAt.In(now.Location())
	sameDay := saved.Year() == now.Year() && saved.YearDay() == now.YearDay()
	if !sameDay {
		r.cfg.Logger.Info().Msgf("discarding registry snapshot from %s", saved.Format("2006-01-02"))
		return 0
	}

	restored := 0
	r.entriesMtx.Lock()
	for _, entry := range snapshot.Entries {
		if entry == nil || entry.Status == Exited {
			continue
		}

		entry.resetVolatile()
		r.entries = append(r.entries, entry)
		restored++
	}
	r.entriesMtx.Unlock()

	return restored
}
