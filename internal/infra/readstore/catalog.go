package readstore

import (
	"context"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/jackc/pgx/v5"
)

const (
	showingByIDSQL = `
SELECT s.id, m.title, s.studio_name, s.starts_at, s.price
FROM showings s
JOIN movies m ON m.id = s.movie_id
WHERE s.id = $1`

	availableProductsSQL = `
SELECT id, name, category, price
FROM products
WHERE id = ANY($1) AND is_available
ORDER BY id`
)

type CatalogReadStore struct {
	db db.DBTX
}

func NewCatalogReadStore(db db.DBTX) *CatalogReadStore {
	return &CatalogReadStore{db: db}
}

func (r *CatalogReadStore) ShowingByID(ctx context.Context, id int64) (*shared.ShowingSnapshot, error) {
	var (
		s     shared.ShowingSnapshot
		price int64
	)
	err := r.db.QueryRow(ctx, showingByIDSQL, id).Scan(&s.ID, &s.MovieTitle, &s.StudioName, &s.StartsAt, &price)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find showing", err)
	}
	s.Price = order.Money(price)
	return &s, nil
}

// ProductsByIDs returns only products that exist and are on sale; callers detect
// omissions themselves.
func (r *CatalogReadStore) ProductsByIDs(ctx context.Context, ids []int64) ([]shared.ProductSnapshot, error) {
	if len(ids) == 0 {
		return []shared.ProductSnapshot{}, nil
	}

	rows, err := r.db.Query(ctx, availableProductsSQL, ids)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find products", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (shared.ProductSnapshot, error) {
		var (
			p     shared.ProductSnapshot
			price int64
		)
		err := row.Scan(&p.ID, &p.Name, &p.Category, &price)
		p.UnitPrice = order.Money(price)
		return p, err
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan products", err)
	}
	return products, nil
}
