package buyers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propstack/buyer-leads/internal/audit"
	"github.com/propstack/buyer-leads/internal/auth"
	"github.com/propstack/buyer-leads/internal/observability/metrics"
	"github.com/propstack/buyer-leads/pkg/logging"
)

// HistoryLimit bounds the entries returned on the detail view.
const HistoryLimit = 5

// Service owns the write pipeline for buyer records: authorization, schema
// validation, the optimistic concurrency guard, diff computation, and the
// history trail.
type Service struct {
	repo    Repository
	logger  *logging.Logger
	metrics *metrics.BuyerMetrics
	now     func() time.Time
}

// NewService creates the buyers service. Metrics may be nil.
func NewService(repo Repository, logger *logging.Logger, m *metrics.BuyerMetrics) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create validates a form payload and persists a new record owned by the
// actor, together with its "created" history entry.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in Input) (*Buyer, error) {
	if verr := Validate(in); verr != nil {
		return nil, verr
	}
	now := s.now()
	b := NewBuyer(uuid.NewString(), in, actor.ID, now)
	entry := &audit.Entry{
		BuyerID:   b.ID,
		ChangedBy: actor.ID,
		ChangedAt: now,
		Diff:      audit.CreatedDiff(in),
	}
	if err := s.repo.Create(ctx, b, entry); err != nil {
		s.metrics.ObserveMutation("create", "error")
		return nil, err
	}
	s.metrics.ObserveMutation("create", "ok")
	s.logger.Info("buyer created", "id", b.ID, "owner", actor.ID)
	return b, nil
}

// Get returns a record with its most recent history entries.
func (s *Service) Get(ctx context.Context, id string) (*Buyer, []*audit.Entry, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.repo.History(ctx, id, HistoryLimit)
	if err != nil {
		return nil, nil, err
	}
	return b, entries, nil
}

// List returns the filtered page plus the total filtered count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*Buyer, int, error) {
	return s.repo.List(ctx, f)
}

// Update runs the full write pipeline. The payload either carries the full
// validated field set or only the lightweight status/tags patch; fields
// absent from it are left untouched. A stale concurrency token yields
// ErrConflict with no mutation, and an update that changes nothing writes no
// history entry.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, in *UpdateInput) (*Buyer, error) {
	expected, err := NormalizeToken(in.UpdatedAt)
	if err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "updatedAt", Message: err.Error()}}}
	}

	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canMutate(actor, prev) {
		return nil, ErrForbidden
	}
	if verr := validateUpdate(in); verr != nil {
		return nil, verr
	}

	changes := Diff(prev, in)
	next := Apply(prev, in)
	next.UpdatedAt = s.nextTimestamp(prev.UpdatedAt)

	var entry *audit.Entry
	if len(changes) > 0 {
		entry = &audit.Entry{
			BuyerID:   id,
			ChangedBy: actor.ID,
			ChangedAt: next.UpdatedAt,
			Diff:      MarshalDiff(changes),
		}
	}

	if err := s.repo.Update(ctx, next, expected, entry); err != nil {
		s.metrics.ObserveMutation("update", outcome(err))
		return nil, err
	}
	s.metrics.ObserveMutation("update", "ok")
	s.logger.Info("buyer updated", "id", id, "actor", actor.ID, "changed_fields", len(changes))
	return next, nil
}

// Delete removes a record after the ownership check; history cascades.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	prev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canMutate(actor, prev) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.metrics.ObserveMutation("delete", outcome(err))
		return err
	}
	s.metrics.ObserveMutation("delete", "ok")
	s.logger.Info("buyer deleted", "id", id, "actor", actor.ID)
	return nil
}

// Export returns the full filtered record set in the requested order.
func (s *Service) Export(ctx context.Context, f ListFilter) ([]*Buyer, error) {
	f.Page = 0
	records, _, err := s.repo.List(ctx, f)
	return records, err
}

// canMutate is the whole authorization policy: owner or admin.
func canMutate(actor auth.Actor, b *Buyer) bool {
	return actor.ID == b.OwnerID || actor.IsAdmin()
}

// nextTimestamp assigns the new concurrency token, strictly after the
// previous one at millisecond precision even on fast consecutive writes.
func (s *Service) nextTimestamp(prev time.Time) time.Time {
	now := s.now()
	if Milli(now) <= Milli(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

// validateUpdate applies the form rules to a full payload, or only the
// status/tags enum checks on the lightweight patch path.
func validateUpdate(in *UpdateInput) *ValidationError {
	if in.PatchOnly() {
		verr := &ValidationError{}
		if in.Status != nil && !isOneOf(*in.Status, Statuses) {
			verr.add("status", "must be one of "+joinSet(Statuses))
		}
		if verr.empty() {
			return nil
		}
		return verr
	}

	verr := &ValidationError{}
	required := map[string]*string{
		"fullName":     in.FullName,
		"phone":        in.Phone,
		"city":         in.City,
		"propertyType": in.PropertyType,
		"purpose":      in.Purpose,
		"timeline":     in.Timeline,
		"source":       in.Source,
	}
	for field, value := range required {
		if value == nil {
			verr.add(field, "is required")
		}
	}
	if !verr.empty() {
		return verr
	}

	full := Input{
		FullName:     *in.FullName,
		Phone:        *in.Phone,
		City:         *in.City,
		PropertyType: *in.PropertyType,
		Purpose:      *in.Purpose,
		Timeline:     *in.Timeline,
		Source:       *in.Source,
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
	}
	if in.Email != nil {
		full.Email = *in.Email
	}
	if in.BHK != nil {
		full.BHK = *in.BHK
	}
	if in.Notes != nil {
		full.Notes = *in.Notes
	}
	if in.Tags != nil {
		full.Tags = *in.Tags
	}
	if in.Status != nil {
		full.Status = *in.Status
	}
	return Validate(full)
}

func outcome(err error) string {
	switch err {
	case ErrConflict:
		return "conflict"
	case ErrNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func joinSet(set []string) string {
	return strings.Join(set, ", ")
}
