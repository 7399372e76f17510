package buyers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/propstack/buyer-leads/internal/audit"
)

// PgxPool is the pool surface the repository needs; pgxmock satisfies it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores buyer records in the relational database.
type PostgresRepository struct {
	pool    PgxPool
	history *audit.Store
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("buyers: pgx pool required")
	}
	return &PostgresRepository{pool: pool, history: audit.NewStore(pool)}
}

const buyerColumns = `
	b.id, b.full_name, COALESCE(b.email, ''), b.phone, b.city, b.property_type,
	COALESCE(b.bhk, ''), b.purpose, b.budget_min, b.budget_max, b.timeline,
	b.source, b.status, COALESCE(b.notes, ''), b.tags, b.owner_id,
	b.created_at, b.updated_at`

// Create inserts a new record and its creation history entry in one
// transaction.
func (r *PostgresRepository) Create(ctx context.Context, b *Buyer, entry *audit.Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("buyers: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertBuyer(ctx, tx, b); err != nil {
		return err
	}
	if entry != nil {
		entry.BuyerID = b.ID
		if err := r.history.Append(ctx, tx, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("buyers: commit create: %w", err)
	}
	return nil
}

// CreateMany bulk-inserts validated rows with their history entries. The
// whole sub-batch commits or rolls back as one unit.
func (r *PostgresRepository) CreateMany(ctx context.Context, records []*Buyer, entries []*audit.Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("buyers: begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, b := range records {
		if err := insertBuyer(ctx, tx, b); err != nil {
			return err
		}
		if i < len(entries) && entries[i] != nil {
			entries[i].BuyerID = b.ID
			if err := r.history.Append(ctx, tx, entries[i]); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("buyers: commit bulk insert: %w", err)
	}
	return nil
}

// GetByID fetches a record together with its owner summary.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Buyer, error) {
	query := `
		SELECT` + buyerColumns + `,
			COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM buyers b
		LEFT JOIN users u ON u.id = b.owner_id
		WHERE b.id = $1
	`
	var b Buyer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.FullName, &b.Email, &b.Phone, &b.City, &b.PropertyType,
		&b.BHK, &b.Purpose, &b.BudgetMin, &b.BudgetMax, &b.Timeline,
		&b.Source, &b.Status, &b.Notes, &b.Tags, &b.OwnerID,
		&b.CreatedAt, &b.UpdatedAt,
		&b.OwnerName, &b.OwnerEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("buyers: select failed: %w", err)
	}
	return &b, nil
}

// List returns the filtered page and the total filtered count.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*Buyer, int, error) {
	where, args := buildFilter(f)

	var total int
	countQuery := "SELECT COUNT(*) FROM buyers b" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("buyers: count failed: %w", err)
	}

	query := "SELECT" + buyerColumns + " FROM buyers b" + where +
		" ORDER BY " + sortColumn(f.Sort) + " " + sortDirection(f.Order)
	if f.Page > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", PageSize, (f.Page-1)*PageSize)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("buyers: list failed: %w", err)
	}
	defer rows.Close()

	var records []*Buyer
	for rows.Next() {
		var b Buyer
		if err := rows.Scan(
			&b.ID, &b.FullName, &b.Email, &b.Phone, &b.City, &b.PropertyType,
			&b.BHK, &b.Purpose, &b.BudgetMin, &b.BudgetMax, &b.Timeline,
			&b.Source, &b.Status, &b.Notes, &b.Tags, &b.OwnerID,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("buyers: scan failed: %w", err)
		}
		records = append(records, &b)
	}
	return records, total, rows.Err()
}

// Update applies the merged record inside one transaction: the stored token
// is read under a row lock, compared against the expected value, and only
// then written together with the history entry. Two racing writers cannot
// both observe a matching token.
func (r *PostgresRepository) Update(ctx context.Context, next *Buyer, expectedMillis int64, entry *audit.Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("buyers: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Buyer
	err = tx.QueryRow(ctx, `SELECT updated_at FROM buyers WHERE id = $1 FOR UPDATE`, next.ID).
		Scan(&current.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("buyers: lock row: %w", err)
	}
	if Milli(current.UpdatedAt) != expectedMillis {
		return ErrConflict
	}

	query := `
		UPDATE buyers SET
			full_name = $2, email = NULLIF($3, ''), phone = $4, city = $5,
			property_type = $6, bhk = NULLIF($7, ''), purpose = $8,
			budget_min = $9, budget_max = $10, timeline = $11, source = $12,
			status = $13, notes = NULLIF($14, ''), tags = $15, updated_at = $16
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query,
		next.ID, next.FullName, next.Email, next.Phone, next.City,
		next.PropertyType, next.BHK, next.Purpose,
		next.BudgetMin, next.BudgetMax, next.Timeline, next.Source,
		next.Status, next.Notes, tagsParam(next.Tags), next.UpdatedAt,
	); err != nil {
		return fmt.Errorf("buyers: update failed: %w", err)
	}

	if entry != nil {
		if err := r.history.Append(ctx, tx, entry); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("buyers: commit update: %w", err)
	}
	return nil
}

// Delete removes a record; history cascades at the schema level.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM buyers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("buyers: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// History returns the newest entries for a buyer.
func (r *PostgresRepository) History(ctx context.Context, buyerID string, limit int) ([]*audit.Entry, error) {
	return r.history.ListRecent(ctx, buyerID, limit)
}

func insertBuyer(ctx context.Context, tx pgx.Tx, b *Buyer) error {
	query := `
		INSERT INTO buyers (
			id, full_name, email, phone, city, property_type, bhk, purpose,
			budget_min, budget_max, timeline, source, status, notes, tags,
			owner_id, created_at, updated_at
		) VALUES (
			$1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8,
			$9, $10, $11, $12, $13, NULLIF($14, ''), $15, $16, $17, $18
		)
	`
	if _, err := tx.Exec(ctx, query,
		b.ID, b.FullName, b.Email, b.Phone, b.City, b.PropertyType, b.BHK,
		b.Purpose, b.BudgetMin, b.BudgetMax, b.Timeline, b.Source, b.Status,
		b.Notes, tagsParam(b.Tags), b.OwnerID, b.CreatedAt, b.UpdatedAt,
	); err != nil {
		return fmt.Errorf("buyers: insert failed: %w", err)
	}
	return nil
}

func buildFilter(f ListFilter) (string, []any) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conditions = append(conditions, fmt.Sprintf(
			"(b.full_name ILIKE %s OR b.phone ILIKE %s OR b.email ILIKE %s)", p, p, p))
	}
	if f.City != "" {
		conditions = append(conditions, "b.city = "+arg(f.City))
	}
	if f.PropertyType != "" {
		conditions = append(conditions, "b.property_type = "+arg(f.PropertyType))
	}
	if f.Status != "" {
		conditions = append(conditions, "b.status = "+arg(f.Status))
	}
	if f.Timeline != "" {
		conditions = append(conditions, "b.timeline = "+arg(f.Timeline))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func sortColumn(key string) string {
	switch key {
	case "createdAt":
		return "b.created_at"
	case "fullName":
		return "b.full_name"
	case "email":
		return "b.email"
	case "phone":
		return "b.phone"
	case "city":
		return "b.city"
	case "propertyType":
		return "b.property_type"
	case "status":
		return "b.status"
	case "timeline":
		return "b.timeline"
	default:
		return "b.updated_at"
	}
}

func sortDirection(order string) string {
	if order == "asc" {
		return "ASC"
	}
	return "DESC"
}

func tagsParam(tags []string) any {
	if len(tags) == 0 {
		return nil
	}
	return tags
}
