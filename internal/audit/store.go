// Package audit persists the append-only change history of buyer records.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Action tags carried by fixed-shape history entries.
const (
	ActionCreated  = "created"
	ActionImported = "imported"
)

// Entry is one immutable history record for a buyer.
type Entry struct {
	ID        string          `json:"id"`
	BuyerID   string          `json:"buyerId"`
	ChangedBy string          `json:"changedBy"`
	ChangedAt time.Time       `json:"changedAt"`
	Diff      json.RawMessage `json:"diff"`
}

// Querier is the subset of pgx operations the store needs. A pgx.Tx satisfies
// it, which lets callers append history inside the same transaction as the
// mutation it records.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists history entries in Postgres.
type Store struct {
	pool Querier
}

// NewStore creates a history store backed by the given pool.
func NewStore(pool Querier) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// Append inserts a single entry. When q is nil the pool is used directly.
func (s *Store) Append(ctx context.Context, q Querier, entry *Entry) error {
	if q == nil {
		q = s.pool
	}
	fill(entry)
	query := `
		INSERT INTO buyer_history (id, buyer_id, changed_by, changed_at, diff)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := q.Exec(ctx, query, entry.ID, entry.BuyerID, entry.ChangedBy, entry.ChangedAt, entry.Diff); err != nil {
		return fmt.Errorf("audit: append history: %w", err)
	}
	return nil
}

// AppendMany inserts entries for a bulk operation.
func (s *Store) AppendMany(ctx context.Context, q Querier, entries []*Entry) error {
	if q == nil {
		q = s.pool
	}
	for _, entry := range entries {
		if err := s.Append(ctx, q, entry); err != nil {
			return err
		}
	}
	return nil
}

// ListRecent returns the newest entries for a buyer, most recent first.
func (s *Store) ListRecent(ctx context.Context, buyerID string, limit int) ([]*Entry, error) {
	query := `
		SELECT id, buyer_id, changed_by, changed_at, diff
		FROM buyer_history
		WHERE buyer_id = $1
		ORDER BY changed_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, buyerID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BuyerID, &e.ChangedBy, &e.ChangedAt, &e.Diff); err != nil {
			return nil, fmt.Errorf("audit: scan history: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func fill(entry *Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
}

// CreatedDiff builds the fixed-shape payload recorded when a buyer is created.
func CreatedDiff(fields any) json.RawMessage {
	payload, _ := json.Marshal(struct {
		Action string `json:"action"`
		Data   any    `json:"data"`
	}{Action: ActionCreated, Data: fields})
	return payload
}

// ImportedDiff builds the fixed-shape payload recorded for imported rows.
func ImportedDiff() json.RawMessage {
	return json.RawMessage(`{"action":"imported"}`)
}
