package monitor

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"

	"optionwatch/shared"
)

// setupRegistry creates a registry whose persist hook captures snapshots.
func setupRegistry(t *testing.T) (*Registry, *[]*RegistrySnapshot) {
	snapshots := []*RegistrySnapshot{}

	cfg := &RegistryConfig{
		Persist: func(snapshot *RegistrySnapshot) {
			snapshots = append(snapshots, snapshot)
		},
		Logger: &log.Logger,
	}

	return NewRegistry(cfg), &snapshots
}

func newTestEntry(t *testing.T, symbol string) *Entry {
	cfg := &EntryConfig{
		Symbol:      symbol,
		OptionType:  Call,
		Lots:        2,
		EntryMethod: shared.Market,
	}

	entry, err := NewEntry(cfg, time.Date(2024, time.July, 10, 10, 0, 0, 0, time.UTC))
	assert.NoError(t, err)

	return entry
}

func TestRegistryAdd(t *testing.T) {
	registry, snapshots := setupRegistry(t)

	entry := newTestEntry(t, "NIFTY25JAN24000CE")
	err := registry.Add(entry)
	assert.NoError(t, err)
	assert.Equal(t, registry.Len(), 1)
	assert.Equal(t, len(*snapshots), 1)

	// Ensure a second entry for the same symbol is rejected and the registry
	// is left unchanged.
	duplicate := newTestEntry(t, "NIFTY25JAN24000CE")
	err = registry.Add(duplicate)
	assert.Error(t, err)
	assert.Equal(t, registry.Len(), 1)
	assert.Equal(t, len(*snapshots), 1)
	assert.Equal(t, registry.Find("NIFTY25JAN24000CE").ID, entry.ID)

	// A different symbol is accepted.
	err = registry.Add(newTestEntry(t, "BANKNIFTY25JAN51000PE"))
	assert.NoError(t, err)
	assert.Equal(t, registry.Len(), 2)
}

func TestRegistryRemove(t *testing.T) {
	registry, snapshots := setupRegistry(t)

	entry := newTestEntry(t, "NIFTY25JAN24000CE")
	assert.NoError(t, registry.Add(entry))

	// Ensure removing an unknown id leaves the registry untouched and does
	// not persist.
	assert.False(t, registry.Remove("unknown"))
	assert.Equal(t, registry.Len(), 1)
	assert.Equal(t, len(*snapshots), 1)

	assert.True(t, registry.Remove(entry.ID))
	assert.Equal(t, registry.Len(), 0)
	assert.Equal(t, len(*snapshots), 2)
	assert.Nil(t, registry.Find("NIFTY25JAN24000CE"))
}

func TestRegistrySymbols(t *testing.T) {
	registry, _ := setupRegistry(t)

	assert.NoError(t, registry.Add(newTestEntry(t, "NIFTY25JAN24000CE")))
	assert.NoError(t, registry.Add(newTestEntry(t, "BANKNIFTY25JAN51000PE")))

	symbols := registry.Symbols()
	assert.Equal(t, len(symbols), 2)
	assert.In(t, "NIFTY25JAN24000CE", symbols)
	assert.In(t, "BANKNIFTY25JAN51000PE", symbols)
}

func TestRegistryRestore(t *testing.T) {
	registry, _ := setupRegistry(t)

	now := time.Date(2024, time.July, 10, 9, 20, 0, 0, time.UTC)

	waiting := newTestEntry(t, "NIFTY25JAN24000CE")
	waiting.CurrentLTP = 104
	waiting.HMAValue = 101
	waiting.LastUpdate = now.Add(-time.Hour)
	waiting.LastHMAUpdate = now.Add(-time.Hour)
	waiting.PreviousPriceAboveHMA = true
	waiting.Observed = true
	waiting.CrossoverSignalAt = now.Add(-time.Hour)

	entered := newTestEntry(t, "BANKNIFTY25JAN51000PE")
	entered.Status = Entered
	entered.EntryPrice = 320
	entered.EnteredAt = now.Add(-time.Hour)
	entered.TrailingLevel = 350

	exited := newTestEntry(t, "FINNIFTY25JAN23000CE")
	exited.Status = Exited

	wantCfg := waiting.EntryConfig

	snapshot := &RegistrySnapshot{
		SavedAt: now.Add(-time.Minute * 30),
		Entries: []*Entry{waiting, entered, exited},
	}

	// Ensure a same day snapshot restores waiting and entered positions and
	// skips exited ones.
	restored := registry.Restore(snapshot, now)
	assert.Equal(t, restored, 2)
	assert.Equal(t, registry.Len(), 2)
	assert.Nil(t, registry.Find("FINNIFTY25JAN23000CE"))

	// Ensure volatile observation state is reset while configuration and
	// position state survive.
	got := registry.Find("NIFTY25JAN24000CE")
	assert.Equal(t, got.CurrentLTP, 0)
	assert.Equal(t, got.HMAValue, 0)
	assert.True(t, got.LastUpdate.IsZero())
	assert.True(t, got.LastHMAUpdate.IsZero())
	assert.False(t, got.PreviousPriceAboveHMA)
	assert.False(t, got.Observed)
	assert.True(t, got.CrossoverSignalAt.IsZero())
	if diff := cmp.Diff(wantCfg, got.EntryConfig); diff != "" {
		t.Fatalf("restored config mismatch (-want +got): %s", diff)
	}

	position := registry.Find("BANKNIFTY25JAN51000PE")
	assert.Equal(t, position.Status, Entered)
	assert.Equal(t, position.EntryPrice, 320)
	assert.Equal(t, position.TrailingLevel, 350)
}

func TestRegistryRestoreStaleSession(t *testing.T) {
	registry, _ := setupRegistry(t)

	now := time.Date(2024, time.July, 10, 9, 20, 0, 0, time.UTC)
	snapshot := &RegistrySnapshot{
		SavedAt: now.Add(-time.Hour * 24),
		Entries: []*Entry{newTestEntry(t, "NIFTY25JAN24000CE")},
	}

	// Ensure a snapshot from a prior trading day is discarded outright.
	restored := registry.Restore(snapshot, now)
	assert.Equal(t, restored, 0)
	assert.Equal(t, registry.Len(), 0)

	// A nil snapshot restores nothing.
	assert.Equal(t, registry.Restore(nil, now), 0)
}

func TestRegistryPersistSnapshot(t *testing.T) {
	registry, snapshots := setupRegistry(t)

	assert.NoError(t, registry.Add(newTestEntry(t, "NIFTY25JAN24000CE")))
	assert.NoError(t, registry.Add(newTestEntry(t, "BANKNIFTY25JAN51000PE")))

	// Ensure the latest snapshot carries every entry and a save timestamp.
	latest := (*snapshots)[len(*snapshots)-1]
	assert.Equal(t, len(latest.Entries), 2)
	assert.False(t, latest.SavedAt.IsZero())

	// Ensure clearing the registry does not persist an empty snapshot.
	registry.Clear()
	assert.Equal(t, registry.Len(), 0)
	assert.Equal(t, len(*snapshots), 2)
}
