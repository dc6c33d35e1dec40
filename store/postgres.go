package store

import (
	"context"
	"fmt"

	log "github.com/fclairamb/go-log"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertItemSQL = `
INSERT INTO inventory_items
  (item_id, sku, name, quantity, location, description, category, supplier, cost, price, metadata, last_updated)
VALUES
  ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, NOW())
ON CONFLICT (item_id) DO UPDATE SET
  sku = EXCLUDED.sku,
  name = EXCLUDED.name,
  quantity = EXCLUDED.quantity,
  location = EXCLUDED.location,
  description = EXCLUDED.description,
  category = EXCLUDED.category,
  supplier = EXCLUDED.supplier,
  cost = EXCLUDED.cost,
  price = EXCLUDED.price,
  metadata = EXCLUDED.metadata,
  last_updated = NOW()`

// Postgres is the production Store, backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres opens a pool against url and verifies connectivity.
func NewPostgres(ctx context.Context, url string, logger log.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	logger.Info("database connected")

	return &Postgres{pool: pool, logger: logger}, nil
}

// Upsert inserts the item or, when an item with the same item_id already
// exists, replaces its columns. last_updated is set server-side.
func (p *Postgres) Upsert(ctx context.Context, item Item) error {
	if item.ItemID == "" {
		return ErrMissingID
	}

	_, err := p.pool.Exec(ctx, upsertItemSQL,
		item.ItemID,
		item.SKU,
		item.Name,
		item.Quantity,
		item.Location,
		item.Description,
		item.Category,
		item.Supplier,
		item.Cost,
		item.Price,
		item.Metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert of item %q failed: %w", item.ItemID, err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
