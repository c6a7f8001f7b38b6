package database

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, Config{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	_, err = db.pool.Exec(ctx, "TRUNCATE outbox_event, catalog_product")
	require.NoError(t, err)

	return db
}

func catalogEvent(link string) *OutboxEvent {
	return &OutboxEvent{
		AggregateType: AggregateProduct,
		AggregateID:   link,
		EventType:     EventProductDiscovered,
		Payload:       json.RawMessage(`{"link":"` + link + `"}`),
		TargetStream:  DefaultStream,
	}
}

func TestOutboxEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *OutboxEvent)
		wantErr string
	}{
		{name: "valid", mutate: func(e *OutboxEvent) {}},
		{name: "missing aggregate type", mutate: func(e *OutboxEvent) { e.AggregateType = "" }, wantErr: "aggregate type"},
		{name: "missing aggregate id", mutate: func(e *OutboxEvent) { e.AggregateID = "" }, wantErr: "aggregate id"},
		{name: "missing event type", mutate: func(e *OutboxEvent) { e.EventType = "" }, wantErr: "event type"},
		{name: "missing payload", mutate: func(e *OutboxEvent) { e.Payload = nil }, wantErr: "payload"},
		{name: "malformed payload", mutate: func(e *OutboxEvent) { e.Payload = json.RawMessage(`{`) }, wantErr: "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := catalogEvent("https://www.thegioididong.com/dtdd/a")
			tt.mutate(event)

			err := event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOutboxRepository_InsertWithTx(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	t.Run("successful insert with transaction", func(t *testing.T) {
		event := catalogEvent("https://www.thegioididong.com/dtdd/a")

		err := db.Transaction(ctx, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, event.ID)
		assert.Equal(t, OutboxStatusPending, event.Status)
		assert.Equal(t, 0, event.RetryCount)
		assert.False(t, event.CreatedAt.IsZero())
	})

	t.Run("rollback on transaction failure", func(t *testing.T) {
		event := catalogEvent("https://www.thegioididong.com/dtdd/rolled-back")

		err := db.Transaction(ctx, func(tx pgx.Tx) error {
			if err := repo.InsertWithTx(ctx, tx, event); err != nil {
				return err
			}
			return errors.New("forced rollback")
		})
		assert.Error(t, err)

		events, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		for _, e := range events {
			assert.NotEqual(t, event.AggregateID, e.AggregateID)
		}
	})

	t.Run("invalid event is rejected", func(t *testing.T) {
		event := catalogEvent("x")
		event.EventType = ""

		err := db.Transaction(ctx, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		})
		assert.ErrorContains(t, err, "invalid outbox event")
	})
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)

	first := catalogEvent("https://www.thegioididong.com/dtdd/first")
	second := catalogEvent("https://www.thegioididong.com/dtdd/second")
	for _, event := range []*OutboxEvent{first, second} {
		require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
			return repo.InsertWithTx(ctx, tx, event)
		}))
	}

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)

	require.NoError(t, repo.MarkProcessed(ctx, first.ID))
	require.NoError(t, repo.MarkFailed(ctx, second.ID, errors.New("redis down")))

	// The failed event is scheduled in the future, so nothing is due.
	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	processed, err := repo.CountByStatus(ctx, OutboxStatusProcessed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), processed)

	failed, err := repo.CountByStatus(ctx, OutboxStatusFailed, OutboxStatusDeadLetter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed)

	var retryCount int
	var backedOff bool
	require.NoError(t, db.pool.QueryRow(ctx,
		"SELECT retry_count, next_retry_at > now() + interval '1 second' FROM outbox_event WHERE id = $1",
		second.ID).Scan(&retryCount, &backedOff))
	assert.Equal(t, 1, retryCount)
	assert.True(t, backedOff, "first failure backs off two seconds")

	for i := 1; i < MaxRetryCount; i++ {
		require.NoError(t, repo.MarkFailed(ctx, second.ID, errors.New("redis down")))
	}
	dead, err := repo.CountByStatus(ctx, OutboxStatusDeadLetter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	assert.ErrorContains(t, repo.MarkProcessed(ctx, uuid.New()), "event not found")
	assert.ErrorContains(t, repo.MarkFailed(ctx, uuid.New(), errors.New("x")), "event not found")
}
