package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
)

const (
	AggregateProduct = "catalog_product"

	EventProductDiscovered = "PRODUCT_DISCOVERED"
	EventProductRefreshed  = "PRODUCT_REFRESHED"
)

type TxRunner interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type ProductUpserter interface {
	UpsertWithTx(ctx context.Context, tx pgx.Tx, row *ProductRow) (bool, error)
}

type OutboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error
}

// Exporter stores accepted products and queues a change event for each in
// the same transaction.
type Exporter struct {
	tx       TxRunner
	products ProductUpserter
	outbox   OutboxWriter
	stream   string
	now      func() time.Time
	logger   *slog.Logger
}

func NewExporter(db *DB, stream string, logger *slog.Logger) *Exporter {
	return newExporter(db, NewProductRepository(), NewOutboxRepository(db), stream, logger)
}

func newExporter(tx TxRunner, products ProductUpserter, outbox OutboxWriter, stream string, logger *slog.Logger) *Exporter {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		tx:       tx,
		products: products,
		outbox:   outbox,
		stream:   stream,
		now:      time.Now,
		logger:   logger.With("component", "exporter"),
	}
}

type productEventPayload struct {
	Category    string `json:"category"`
	Link        string `json:"link"`
	ProductID   string `json:"product_id"`
	ProductCode string `json:"product_code"`
	Name        string `json:"name"`
	PriceVND    *int64 `json:"price_vnd,omitempty"`
	PriceOldVND *int64 `json:"price_old_vnd,omitempty"`
	CrawledAt   string `json:"crawled_at"`
}

func (e *Exporter) Export(ctx context.Context, category string, p *models.EnrichedProduct) error {
	row, err := NewProductRow(category, p, e.now())
	if err != nil {
		return err
	}

	payload, err := json.Marshal(productEventPayload{
		Category:    row.Category,
		Link:        row.Link,
		ProductID:   row.ProductID,
		ProductCode: row.ProductCode,
		Name:        row.Name,
		PriceVND:    row.PriceVND,
		PriceOldVND: row.PriceOldVND,
		CrawledAt:   row.CrawledAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	var eventType string
	err = e.tx.Transaction(ctx, func(tx pgx.Tx) error {
		inserted, err := e.products.UpsertWithTx(ctx, tx, row)
		if err != nil {
			return err
		}

		eventType = EventProductRefreshed
		if inserted {
			eventType = EventProductDiscovered
		}

		return e.outbox.InsertWithTx(ctx, tx, &OutboxEvent{
			AggregateType: AggregateProduct,
			AggregateID:   row.Link,
			EventType:     eventType,
			Payload:       payload,
			TargetStream:  e.stream,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to export product: %w", err)
	}

	e.logger.Debug("product exported", "category", category, "link", row.Link, "event", eventType)
	return nil
}
