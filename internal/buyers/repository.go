package buyers

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/propstack/buyer-leads/internal/audit"
)

// PageSize is the fixed page length for listing.
const PageSize = 10

// SortKeys are the columns listing may be ordered by.
var SortKeys = []string{
	"updatedAt", "createdAt", "fullName", "email", "phone",
	"city", "propertyType", "status", "timeline",
}

// ListFilter selects and orders a record set. Page <= 0 disables pagination
// (used by export, which always operates on the full filtered set).
type ListFilter struct {
	Search       string
	City         string
	PropertyType string
	Status       string
	Timeline     string
	Page         int
	Sort         string
	Order        string
}

// Repository is the record-store contract. Mutations that must be audited
// take the history entry so implementations can persist both atomically;
// Update additionally takes the expected concurrency token in epoch ms and
// fails with ErrConflict when the stored record has moved on.
type Repository interface {
	Create(ctx context.Context, b *Buyer, entry *audit.Entry) error
	CreateMany(ctx context.Context, records []*Buyer, entries []*audit.Entry) error
	GetByID(ctx context.Context, id string) (*Buyer, error)
	List(ctx context.Context, f ListFilter) ([]*Buyer, int, error)
	Update(ctx context.Context, next *Buyer, expectedMillis int64, entry *audit.Entry) error
	Delete(ctx context.Context, id string) error
	History(ctx context.Context, buyerID string, limit int) ([]*audit.Entry, error)
}

// InMemoryRepository keeps records in process memory. Used by tests and
// local development without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Buyer
	history map[string][]*audit.Entry
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Buyer),
		history: make(map[string][]*audit.Entry),
	}
}

// Create stores a new record with its creation history entry.
func (r *InMemoryRepository) Create(ctx context.Context, b *Buyer, entry *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	clone := *b
	r.records[b.ID] = &clone
	if entry != nil {
		entry.BuyerID = b.ID
		r.history[b.ID] = append(r.history[b.ID], entry)
	}
	return nil
}

// CreateMany stores a batch of records with their history entries.
func (r *InMemoryRepository) CreateMany(ctx context.Context, records []*Buyer, entries []*audit.Entry) error {
	for i, b := range records {
		var entry *audit.Entry
		if i < len(entries) {
			entry = entries[i]
		}
		if err := r.Create(ctx, b, entry); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a record by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Buyer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *b
	return &clone, nil
}

// List returns the filtered, sorted page plus the total filtered count.
func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]*Buyer, int, error) {
	r.mu.RLock()
	matched := make([]*Buyer, 0, len(r.records))
	for _, b := range r.records {
		if matches(b, f) {
			clone := *b
			matched = append(matched, &clone)
		}
	}
	r.mu.RUnlock()

	sortRecords(matched, f.Sort, f.Order)
	total := len(matched)

	if f.Page > 0 {
		offset := (f.Page - 1) * PageSize
		if offset >= total {
			return nil, total, nil
		}
		end := offset + PageSize
		if end > total {
			end = total
		}
		matched = matched[offset:end]
	}
	return matched, total, nil
}

// Update applies the merged record if the stored concurrency token still
// matches, appending the history entry in the same critical section.
func (r *InMemoryRepository) Update(ctx context.Context, next *Buyer, expectedMillis int64, entry *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[next.ID]
	if !ok {
		return ErrNotFound
	}
	if Milli(current.UpdatedAt) != expectedMillis {
		return ErrConflict
	}
	clone := *next
	r.records[next.ID] = &clone
	if entry != nil {
		r.history[next.ID] = append(r.history[next.ID], entry)
	}
	return nil
}

// Delete removes a record and its history.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	delete(r.history, id)
	return nil
}

// History returns up to limit entries for a buyer, newest first.
func (r *InMemoryRepository) History(ctx context.Context, buyerID string, limit int) ([]*audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := append([]*audit.Entry(nil), r.history[buyerID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ChangedAt.After(entries[j].ChangedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func matches(b *Buyer, f ListFilter) bool {
	if f.City != "" && b.City != f.City {
		return false
	}
	if f.PropertyType != "" && b.PropertyType != f.PropertyType {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.Timeline != "" && b.Timeline != f.Timeline {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(b.FullName), needle) &&
			!strings.Contains(strings.ToLower(b.Phone), needle) &&
			!strings.Contains(strings.ToLower(b.Email), needle) {
			return false
		}
	}
	return true
}

func sortRecords(records []*Buyer, key, order string) {
	if !isOneOf(key, SortKeys) {
		key = "updatedAt"
	}
	desc := order != "asc"
	sort.SliceStable(records, func(i, j int) bool {
		less := lessByKey(records[i], records[j], key)
		if desc {
			return lessByKey(records[j], records[i], key)
		}
		return less
	})
}

func lessByKey(a, b *Buyer, key string) bool {
	switch key {
	case "createdAt":
		return a.CreatedAt.Before(b.CreatedAt)
	case "fullName":
		return a.FullName < b.FullName
	case "email":
		return a.Email < b.Email
	case "phone":
		return a.Phone < b.Phone
	case "city":
		return a.City < b.City
	case "propertyType":
		return a.PropertyType < b.PropertyType
	case "status":
		return a.Status < b.Status
	case "timeline":
		return a.Timeline < b.Timeline
	default:
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
}
