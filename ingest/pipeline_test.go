package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/unifyhq/finale-ftp/log/zaplog"
	"github.com/unifyhq/finale-ftp/store"
)

var fixedTime = time.Date(2026, 8, 28, 10, 30, 0, 123_000_000, time.UTC)

func newTestPipeline(t *testing.T) (*Pipeline, afero.Fs, *store.Memory) {
	t.Helper()
	fs := afero.NewMemMapFs()
	mem := store.NewMemory()
	p := New(fs, mem, zaplog.NewNop(), WithClock(func() time.Time { return fixedTime }))
	return p, fs, mem
}

func TestProcessJSONFileUpsertsAndRelocates(t *testing.T) {
	p, fs, mem := newTestPipeline(t)
	body := `[
		{"id": "A-1", "sku": "SKU-1", "name": "Widget", "quantity": 4, "location": "BIN-7"},
		{"itemId": "B-2", "quantity": 2},
		{"item_id": "C-3"}
	]`
	require.NoError(t, afero.WriteFile(fs, "/in/items.json", []byte(body), 0o644))

	require.NoError(t, p.ProcessJSONFile(context.Background(), "/in/items.json"))

	assert.Equal(t, 3, mem.Len())

	item, ok := mem.Get("A-1")
	require.True(t, ok)
	require.NotNil(t, item.SKU)
	assert.Equal(t, "SKU-1", *item.SKU)
	assert.Equal(t, 4, item.Quantity)

	_, ok = mem.Get("B-2")
	assert.True(t, ok)
	_, ok = mem.Get("C-3")
	assert.True(t, ok)

	// Original file is gone, relocated copy carries the timestamp prefix.
	_, err := fs.Stat("/in/items.json")
	assert.Error(t, err)
	moved, err := afero.ReadFile(fs, "/in/processed/2026-08-28T10-30-00-123Z_items.json")
	require.NoError(t, err)
	assert.Equal(t, body, string(moved))
}

func TestProcessJSONFileNonArrayLeftInPlace(t *testing.T) {
	p, fs, mem := newTestPipeline(t)
	require.NoError(t, afero.WriteFile(fs, "/in/items.json", []byte(`{"id":"A"}`), 0o644))

	err := p.ProcessJSONFile(context.Background(), "/in/items.json")
	assert.ErrorIs(t, err, ErrNotArray)
	assert.Equal(t, 0, mem.Len())

	_, statErr := fs.Stat("/in/items.json")
	assert.NoError(t, statErr, "non-array uploads stay where they are")
}

func TestProcessJSONFileInvalidJSONLeftInPlace(t *testing.T) {
	p, fs, _ := newTestPipeline(t)
	require.NoError(t, afero.WriteFile(fs, "/in/broken.json", []byte(`[{"id":`), 0o644))

	err := p.ProcessJSONFile(context.Background(), "/in/broken.json")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, statErr := fs.Stat("/in/broken.json")
	assert.NoError(t, statErr)
}

func TestProcessJSONFileBadItemsDoNotAbortBatch(t *testing.T) {
	p, fs, mem := newTestPipeline(t)
	body := `[
		{"name": "no identifier at all"},
		{"id": "GOOD-1", "quantity": 1}
	]`
	require.NoError(t, afero.WriteFile(fs, "/in/items.json", []byte(body), 0o644))

	require.NoError(t, p.ProcessJSONFile(context.Background(), "/in/items.json"))

	assert.Equal(t, 1, mem.Len())
	_, ok := mem.Get("GOOD-1")
	assert.True(t, ok)

	// File was still relocated even though one item failed.
	_, err := fs.Stat("/in/items.json")
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, store.Item) error { return errors.New("db down") }
func (failingStore) Close()                                   {}

func TestProcessJSONFileStoreFailuresStillRelocate(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := New(fs, failingStore{}, zaplog.NewNop(),
		WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, afero.WriteFile(fs, "/in/items.json", []byte(`[{"id":"A-1"}]`), 0o644))

	require.NoError(t, p.ProcessJSONFile(context.Background(), "/in/items.json"))

	_, err := fs.Stat("/in/items.json")
	assert.Error(t, err, "relocation is unconditional once the array shape was valid")
}

func TestMapItemAliasesAndMetadata(t *testing.T) {
	element := gjson.Parse(`{
		"item_id": "X-9",
		"sku": "SKU-9",
		"quantity": 7,
		"cost": 1.25,
		"warehouse_zone": "Z4",
		"vendor_notes": {"priority": true}
	}`)

	item := mapItem(element)

	assert.Equal(t, "X-9", item.ItemID)
	require.NotNil(t, item.SKU)
	assert.Equal(t, "SKU-9", *item.SKU)
	assert.Equal(t, 7, item.Quantity)
	require.NotNil(t, item.Cost)
	assert.InDelta(t, 1.25, *item.Cost, 1e-9)
	assert.Nil(t, item.Price)

	require.NotNil(t, item.Metadata)
	meta := gjson.Parse(*item.Metadata)
	assert.Equal(t, "Z4", meta.Get("warehouse_zone").String())
	assert.True(t, meta.Get("vendor_notes.priority").Bool())
	assert.False(t, meta.Get("sku").Exists(), "mapped keys are consumed")
}

func TestMapItemIDPrecedence(t *testing.T) {
	item := mapItem(gjson.Parse(`{"id": "first", "itemId": "second", "item_id": "third"}`))
	assert.Equal(t, "first", item.ItemID)

	item = mapItem(gjson.Parse(`{"itemId": "second", "item_id": "third"}`))
	assert.Equal(t, "second", item.ItemID)
}

func TestMapItemNoMetadataWhenFullyMapped(t *testing.T) {
	item := mapItem(gjson.Parse(`{"id": "A-1", "name": "Widget"}`))
	assert.Nil(t, item.Metadata)
}

func TestTimestampPrefix(t *testing.T) {
	assert.Equal(t, "2026-08-28T10-30-00-123Z", timestampPrefix(fixedTime))
}
