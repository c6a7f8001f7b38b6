package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/normalize"
)

// ProductRow is one exported product. Prices are parsed from the listing
// text and left nil when the text has no amount.
type ProductRow struct {
	Link        string
	Category    string
	ProductID   string
	ProductCode string
	Name        string
	Brand       string
	PriceVND    *int64
	PriceOldVND *int64
	DiscountPct *int
	Rating      string
	Listing     json.RawMessage
	Detail      json.RawMessage
	CrawledAt   time.Time
}

func NewProductRow(category string, p *models.EnrichedProduct, crawledAt time.Time) (*ProductRow, error) {
	listing, err := json.Marshal(p.ListingRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing: %w", err)
	}
	detail, err := json.Marshal(p.Detail)
	if err != nil {
		return nil, fmt.Errorf("failed to encode detail: %w", err)
	}

	row := &ProductRow{
		Link:        p.Link,
		Category:    category,
		ProductID:   p.ID,
		ProductCode: p.ProductCode,
		Name:        p.Name.String(),
		Brand:       p.Brand.String(),
		Rating:      p.Rating.String(),
		Listing:     listing,
		Detail:      detail,
		CrawledAt:   crawledAt,
	}

	price := p.Price.String()
	priceOld := p.PriceOld.String()
	if p.Detail != nil {
		if p.Detail.Price != "" {
			price = p.Detail.Price
		}
		if p.Detail.PriceOld != "" {
			priceOld = p.Detail.PriceOld
		}
		if row.Name == "" {
			row.Name = p.Detail.Title
		}
	}

	if n, ok := normalize.Price(price); ok {
		row.PriceVND = &n
	}
	if n, ok := normalize.Price(priceOld); ok {
		row.PriceOldVND = &n
	}
	if n, ok := normalize.Percent(p.Discount.String()); ok {
		row.DiscountPct = &n
	}

	return row, nil
}

type ProductRepository struct{}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

// UpsertWithTx inserts the product or refreshes the stored copy. It reports
// whether the row was newly created.
func (r *ProductRepository) UpsertWithTx(ctx context.Context, tx pgx.Tx, row *ProductRow) (bool, error) {
	query := `
		INSERT INTO catalog_product (
			link, category, product_id, product_code, name, brand,
			price_vnd, price_old_vnd, discount_pct, rating,
			listing, detail, crawled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (link) DO UPDATE SET
			category = EXCLUDED.category,
			product_id = EXCLUDED.product_id,
			product_code = EXCLUDED.product_code,
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			price_vnd = EXCLUDED.price_vnd,
			price_old_vnd = EXCLUDED.price_old_vnd,
			discount_pct = EXCLUDED.discount_pct,
			rating = EXCLUDED.rating,
			listing = EXCLUDED.listing,
			detail = EXCLUDED.detail,
			crawled_at = EXCLUDED.crawled_at
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := tx.QueryRow(ctx, query,
		row.Link, row.Category, row.ProductID, row.ProductCode, row.Name, row.Brand,
		row.PriceVND, row.PriceOldVND, row.DiscountPct, row.Rating,
		row.Listing, row.Detail, row.CrawledAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert product %s: %w", row.Link, err)
	}

	return inserted, nil
}
