package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/merchant-risk-service/internal/audit"
	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
	"github.com/banking/merchant-risk-service/internal/storage/memory"
)

func TestTrail_RecordFillsDefaults(t *testing.T) {
	trail := audit.NewTrail(memory.NewAuditRepository(), nil, logger.NewNop())

	entry := &domain.AuditEntry{
		Action:      domain.AuditActionAssessment,
		TargetID:    "M-1001",
		Description: "Merchant M-1001 assessed",
	}
	require.NoError(t, trail.Record(context.Background(), entry))

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, "SYSTEM", entry.Actor)
}

func TestTrail_QueryFiltersAndOrders(t *testing.T) {
	trail := audit.NewTrail(memory.NewAuditRepository(), nil, logger.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []*domain.AuditEntry{
		{Actor: "ops@bank", Action: domain.AuditActionConfigChange, TargetID: "risk_weights", CreatedAt: base.Add(2 * time.Hour)},
		{Actor: "SYSTEM", Action: domain.AuditActionAssessment, TargetID: "M-1001", CreatedAt: base},
		{Actor: "SYSTEM", Action: domain.AuditActionAssessment, TargetID: "M-1002", CreatedAt: base.Add(time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, trail.Record(ctx, e))
	}

	// No filter: everything, ascending by timestamp.
	all, err := trail.Query(ctx, domain.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "M-1001", all[0].TargetID)
	assert.Equal(t, "M-1002", all[1].TargetID)
	assert.Equal(t, "risk_weights", all[2].TargetID)

	byActor, err := trail.Query(ctx, domain.AuditFilter{Actor: "ops@bank"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, domain.AuditActionConfigChange, byActor[0].Action)

	byRange, err := trail.Query(ctx, domain.AuditFilter{
		From: base.Add(30 * time.Minute),
		To:   base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, "M-1002", byRange[0].TargetID)
}

type failingAuditRepo struct{}

func (failingAuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	return errors.New("disk full")
}

func (failingAuditRepo) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	return nil, errors.New("disk full")
}

func TestTrail_AppendFailureIsStorageError(t *testing.T) {
	trail := audit.NewTrail(failingAuditRepo{}, nil, logger.NewNop())

	err := trail.Record(context.Background(), &domain.AuditEntry{
		Action: domain.AuditActionAssessment,
	})
	assert.True(t, domain.IsStorage(err))
}
