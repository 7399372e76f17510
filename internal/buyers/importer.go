package buyers

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/propstack/buyer-leads/internal/audit"
	"github.com/propstack/buyer-leads/internal/auth"
	"github.com/propstack/buyer-leads/internal/observability/metrics"
	"github.com/propstack/buyer-leads/pkg/logging"
)

// MaxImportRows is the hard ceiling for one import batch.
const MaxImportRows = 200

// RowError reports the validation failures of one row, identified by its
// 1-based position within the filtered row set.
type RowError struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

// ImportResult is the JSON-serializable report of one batch.
type ImportResult struct {
	TotalRows     int        `json:"totalRows"`
	InsertedCount int        `json:"insertedCount"`
	ErrorCount    int        `json:"errorCount"`
	Errors        []RowError `json:"errors"`
}

// Importer ingests CSV batches of buyer rows.
type Importer struct {
	repo    Repository
	logger  *logging.Logger
	metrics *metrics.BuyerMetrics
	now     func() time.Time
}

// NewImporter creates the import pipeline. Metrics may be nil.
func NewImporter(repo Repository, logger *logging.Logger, m *metrics.BuyerMetrics) *Importer {
	return &Importer{
		repo:    repo,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Import runs one batch through the pipeline: parse, drop blank rows,
// enforce the row cap, validate each row independently, bulk-insert the
// survivors with one "imported" history entry each, and report per-row
// failures. Row-level problems never abort the batch; malformed input, the
// row cap, and storage failure are batch-fatal.
func (imp *Importer) Import(ctx context.Context, r io.Reader, actor auth.Actor) (*ImportResult, error) {
	rawRows, err := ParseCSV(r)
	if err != nil {
		imp.metrics.ObserveImportBatch("parse_error")
		return nil, err
	}

	rows := make([]map[string]string, 0, len(rawRows))
	for _, row := range rawRows {
		if !IsBlankRow(row) {
			rows = append(rows, row)
		}
	}

	if len(rows) > MaxImportRows {
		imp.metrics.ObserveImportBatch("row_limit")
		return nil, ErrRowLimitExceeded
	}

	result := &ImportResult{
		TotalRows: len(rows),
		Errors:    []RowError{},
	}

	now := imp.now()
	var records []*Buyer
	var entries []*audit.Entry
	for i, cells := range rows {
		in, verr := CoerceCSVRow(cells)
		if verr == nil {
			// Same cross-field rules as the schema; re-checked here so a
			// divergence between the two paths cannot slip rows through.
			recheck := &ValidationError{}
			CheckInvariants(in.PropertyType, in.BHK, in.BudgetMin, in.BudgetMax, recheck)
			if !recheck.empty() {
				verr = recheck
			}
		}
		if verr != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Errors: verr.Messages()})
			continue
		}

		b := NewBuyer(uuid.NewString(), in, actor.ID, now)
		records = append(records, b)
		entries = append(entries, &audit.Entry{
			BuyerID:   b.ID,
			ChangedBy: actor.ID,
			ChangedAt: now,
			Diff:      audit.ImportedDiff(),
		})
	}

	if len(records) > 0 {
		if err := imp.repo.CreateMany(ctx, records, entries); err != nil {
			imp.metrics.ObserveImportBatch("storage_error")
			return nil, err
		}
	}

	result.InsertedCount = len(records)
	result.ErrorCount = len(result.Errors)
	imp.metrics.ObserveImportBatch("ok")
	imp.metrics.ObserveImportRows(result.InsertedCount, result.ErrorCount)
	imp.logger.Info("import completed",
		"actor", actor.ID,
		"total_rows", result.TotalRows,
		"inserted", result.InsertedCount,
		"failed", result.ErrorCount,
	)
	return result, nil
}
