// Package ingest turns uploaded JSON documents into inventory item upserts
// and relocates the processed artifacts so they are not picked up twice.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	log "github.com/fclairamb/go-log"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/unifyhq/finale-ftp/store"
)

// ErrInvalidJSON is returned when an uploaded document does not parse.
var ErrInvalidJSON = errors.New("invalid JSON document")

// ErrNotArray is returned when the document parses but is not the expected
// array of inventory items.
var ErrNotArray = errors.New("expected JSON array of inventory items")

// mappedKeys are the element fields that land in dedicated columns. Anything
// else is kept in the metadata remainder.
var mappedKeys = []string{
	"id", "itemId", "item_id",
	"sku", "name", "quantity", "location",
	"description", "category", "supplier", "cost", "price",
}

// Pipeline processes uploaded inventory documents against a Store.
type Pipeline struct {
	fs           afero.Fs
	store        store.Store
	logger       log.Logger
	processedDir string
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProcessedDir overrides the name of the relocation directory that is
// created next to each processed file. Defaults to "processed".
func WithProcessedDir(name string) Option {
	return func(p *Pipeline) {
		if name != "" {
			p.processedDir = name
		}
	}
}

// WithClock overrides the timestamp source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New builds a Pipeline operating on fs and persisting through st.
func New(fs afero.Fs, st store.Store, logger log.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fs:           fs,
		store:        st,
		logger:       logger,
		processedDir: "processed",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessJSONFile ingests one uploaded document.
//
// A document that does not parse, or parses to something other than an
// array, is logged and left in place for inspection. Once the array shape is
// established, individual item failures are logged and skipped, never
// aborting the batch, and the file is relocated unconditionally so a partly
// bad batch is not replayed.
func (p *Pipeline) ProcessJSONFile(ctx context.Context, filePath string) error {
	p.logger.Info("processing JSON file", "path", filePath)

	data, err := afero.ReadFile(p.fs, filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	if !gjson.ValidBytes(data) {
		p.logger.Error("uploaded document is not valid JSON", "path", filePath)
		return ErrInvalidJSON
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		p.logger.Error("expected JSON array for inventory data",
			"path", filePath, "got", parsed.Type.String())
		return ErrNotArray
	}

	elements := parsed.Array()
	p.logger.Info("found inventory items to process", "count", len(elements))

	processed := 0
	for _, element := range elements {
		item := mapItem(element)
		if err := p.store.Upsert(ctx, item); err != nil {
			p.logger.Error("error inserting item into database",
				"err", err, "item", element.Raw)
			continue
		}
		processed++
	}

	p.logger.Info("processed items", "path", filePath,
		"processed", processed, "total", len(elements))

	if err := p.relocate(filePath); err != nil {
		return fmt.Errorf("failed to move processed file: %w", err)
	}
	return nil
}

// relocate moves the file into a processed directory next to it, prefixed
// with a timestamp so repeated uploads of the same name never collide.
func (p *Pipeline) relocate(filePath string) error {
	dir := path.Join(path.Dir(filePath), p.processedDir)
	if err := p.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	newPath := path.Join(dir, timestampPrefix(p.now())+"_"+path.Base(filePath))
	if err := p.fs.Rename(filePath, newPath); err != nil {
		return err
	}

	p.logger.Info("moved processed file", "from", filePath, "to", newPath)
	return nil
}

// timestampPrefix renders t as an ISO-8601 instant with the characters that
// are unsafe in file names replaced.
func timestampPrefix(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// mapItem converts one JSON element into an Item. The identifier is taken
// from the first of id, itemId, item_id. Unmapped fields are collected into
// the metadata remainder.
func mapItem(element gjson.Result) store.Item {
	item := store.Item{
		ItemID:      firstString(element, "id", "itemId", "item_id"),
		SKU:         optString(element, "sku"),
		Name:        optString(element, "name"),
		Quantity:    int(element.Get("quantity").Int()),
		Location:    optString(element, "location"),
		Description: optString(element, "description"),
		Category:    optString(element, "category"),
		Supplier:    optString(element, "supplier"),
		Cost:        optFloat(element, "cost"),
		Price:       optFloat(element, "price"),
	}
	item.Metadata = metadataRemainder(element)
	return item
}

func firstString(element gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := element.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func optString(element gjson.Result, key string) *string {
	v := element.Get(key)
	if !v.Exists() || v.String() == "" {
		return nil
	}
	s := v.String()
	return &s
}

func optFloat(element gjson.Result, key string) *float64 {
	v := element.Get(key)
	if !v.Exists() {
		return nil
	}
	f := v.Float()
	return &f
}

// metadataRemainder strips the mapped keys from the raw element and returns
// what is left, or nil when nothing else was present.
func metadataRemainder(element gjson.Result) *string {
	if !element.IsObject() {
		return nil
	}

	remainder := element.Raw
	for _, key := range mappedKeys {
		out, err := sjson.Delete(remainder, key)
		if err != nil {
			continue
		}
		remainder = out
	}

	if len(gjson.Parse(remainder).Map()) == 0 {
		return nil
	}
	return &remainder
}
