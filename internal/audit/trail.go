package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
)

// Repository is the append-only storage behind the trail. Entries are never
// updated or deleted.
type Repository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}

// Publisher forwards audit entries to downstream consumers (reporting,
// SIEM). Publishing is best-effort; durability comes from the repository.
type Publisher interface {
	PublishAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// Trail is the append-only audit log of assessments and configuration
// changes. Durability is a compliance requirement: a failed append is fatal
// and surfaces to the caller, never dropped.
type Trail struct {
	repo      Repository
	publisher Publisher
	log       *logger.Logger
}

// NewTrail creates an audit trail. publisher may be nil.
func NewTrail(repo Repository, publisher Publisher, log *logger.Logger) *Trail {
	return &Trail{
		repo:      repo,
		publisher: publisher,
		log:       log.Named("audit_trail"),
	}
}

// Record appends an entry to the trail. Missing ID and timestamp are filled
// in; everything else is stored exactly as given.
func (t *Trail) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = "SYSTEM"
	}

	if err := t.repo.Append(ctx, entry); err != nil {
		return domain.NewStorageError("audit append", err)
	}

	if t.publisher != nil {
		if err := t.publisher.PublishAudit(ctx, entry); err != nil {
			t.log.Warn("audit publish failed", logger.ErrorField(err))
		}
	}

	t.log.AuditRecorded(string(entry.Action), entry.Actor, entry.TargetID)
	return nil
}

// Query returns matching entries ordered by timestamp ascending. The result
// is finite and the query is restartable.
func (t *Trail) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	entries, err := t.repo.Query(ctx, filter)
	if err != nil {
		return nil, domain.NewStorageError("audit query", err)
	}
	return entries, nil
}
