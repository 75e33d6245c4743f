package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
)

// AssessmentRepository persists assessment results. Append never overwrites:
// each assessment adds one result to the merchant's history.
type AssessmentRepository interface {
	Append(ctx context.Context, result *domain.AssessmentResult) error
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.AssessmentResult, error)
}

// AuditRecorder records audit entries. A failed record is fatal to the
// surrounding operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

// AlertSink derives alert-worthiness from an assessment result.
type AlertSink interface {
	Evaluate(ctx context.Context, result *domain.AssessmentResult) (*domain.Alert, error)
}

// AssessmentCache caches the latest result per merchant. Cache failures are
// logged, never surfaced: the cache is an optimization, not a record.
type AssessmentCache interface {
	SetLatest(ctx context.Context, result *domain.AssessmentResult) error
	GetLatest(ctx context.Context, merchantID string) (*domain.AssessmentResult, error)
	Invalidate(ctx context.Context, merchantID string) error
}

// Engine is the sole assessment entry point used by the serving layer. It
// orchestrates the scoring rules and override rules into one result, then
// records the audit entry and feeds the alert dispatcher.
type Engine struct {
	configs     *ConfigStore
	assessments AssessmentRepository
	audit       AuditRecorder
	alerts      AlertSink
	cache       AssessmentCache

	log    *logger.Logger
	tracer trace.Tracer
}

// NewEngine creates an assessment engine. cache may be nil.
func NewEngine(
	configs *ConfigStore,
	assessments AssessmentRepository,
	audit AuditRecorder,
	alerts AlertSink,
	cache AssessmentCache,
	log *logger.Logger,
) *Engine {
	return &Engine{
		configs:     configs,
		assessments: assessments,
		audit:       audit,
		alerts:      alerts,
		cache:       cache,
		log:         log.Named("assessment_engine"),
		tracer:      otel.Tracer("merchant-risk-service/risk"),
	}
}

// Configs exposes the configuration store for the serving layer.
func (e *Engine) Configs() *ConfigStore {
	return e.configs
}

// Assess runs one risk assessment against the active configuration. The
// snapshot and the configuration are never mutated; a well-formed snapshot
// always produces exactly one immutable result, appended to the merchant's
// history and audited.
func (e *Engine) Assess(ctx context.Context, snapshot *domain.MerchantSnapshot, actor string) (*domain.AssessmentResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.assess",
		trace.WithAttributes(attribute.String("merchant.id", snapshot.MerchantID)))
	defer span.End()

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	cfg, version := e.configs.Current()

	factors := Evaluate(snapshot, cfg)
	raw := RawScore(factors)
	score, level, overrideReason := ApplyOverrides(snapshot, raw, cfg)

	reasons := make([]string, 0, len(factors)+1)
	for _, f := range factors {
		reasons = append(reasons, f.Reason)
	}
	if len(reasons) == 0 && overrideReason == "" {
		reasons = append(reasons, "No high-risk factors identified")
	}
	if overrideReason != "" {
		reasons = append(reasons, overrideReason)
	}

	result := &domain.AssessmentResult{
		ID:              uuid.New(),
		MerchantID:      snapshot.MerchantID,
		ConfigVersion:   version,
		RawScore:        raw,
		Score:           score,
		RiskLevel:       level,
		Factors:         factors,
		Reasons:         reasons,
		OverrideApplied: overrideReason != "",
		OverrideReason:  overrideReason,
		AssessedBy:      actor,
		AssessedAt:      nowUTC(),
	}

	span.SetAttributes(
		attribute.Int("risk.score", result.Score),
		attribute.String("risk.level", string(result.RiskLevel)),
		attribute.Bool("risk.override", result.OverrideApplied),
	)

	if err := e.assessments.Append(ctx, result); err != nil {
		return nil, domain.NewStorageError("assessment append", err)
	}

	if err := e.audit.Record(ctx, assessmentAuditEntry(result, actor)); err != nil {
		return nil, err
	}

	if _, err := e.alerts.Evaluate(ctx, result); err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetLatest(ctx, result); err != nil {
			e.log.Warn("failed to cache assessment", logger.ErrorField(err))
		}
	}

	e.log.AssessmentCompleted(result.MerchantID, result.Score, string(result.RiskLevel), result.ConfigVersion, result.OverrideApplied)
	return result, nil
}

// RecomputeAt re-runs the scoring pipeline against a historical configuration
// version for display and audit review. The result is not persisted and has
// no side effects.
func (e *Engine) RecomputeAt(ctx context.Context, snapshot *domain.MerchantSnapshot, version int64) (*domain.AssessmentResult, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	cfg, err := e.configs.Get(version)
	if err != nil {
		return nil, err
	}

	factors := Evaluate(snapshot, cfg)
	raw := RawScore(factors)
	score, level, overrideReason := ApplyOverrides(snapshot, raw, cfg)

	reasons := make([]string, 0, len(factors)+1)
	for _, f := range factors {
		reasons = append(reasons, f.Reason)
	}
	if overrideReason != "" {
		reasons = append(reasons, overrideReason)
	}

	return &domain.AssessmentResult{
		ID:              uuid.New(),
		MerchantID:      snapshot.MerchantID,
		ConfigVersion:   version,
		RawScore:        raw,
		Score:           score,
		RiskLevel:       level,
		Factors:         factors,
		Reasons:         reasons,
		OverrideApplied: overrideReason != "",
		OverrideReason:  overrideReason,
		AssessedBy:      "SYSTEM",
		AssessedAt:      nowUTC(),
	}, nil
}

// AppendOverride records a manually constructed assessment result, produced
// by an admin override, into the merchant's history and cache. No scoring
// runs; the caller is responsible for auditing the override itself.
func (e *Engine) AppendOverride(ctx context.Context, result *domain.AssessmentResult) error {
	if err := e.assessments.Append(ctx, result); err != nil {
		return domain.NewStorageError("assessment append", err)
	}
	if e.cache != nil {
		if err := e.cache.SetLatest(ctx, result); err != nil {
			e.log.Warn("failed to cache assessment", logger.ErrorField(err))
		}
	}
	return nil
}

// Latest returns a merchant's most recent assessment result, serving from
// the cache when possible and falling back to the history store. A fall-back
// hit backfills the cache. Returns ErrNotFound when the merchant has never
// been assessed.
func (e *Engine) Latest(ctx context.Context, merchantID string) (*domain.AssessmentResult, error) {
	if e.cache != nil {
		result, err := e.cache.GetLatest(ctx, merchantID)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			e.log.Warn("failed to read cached assessment", logger.ErrorField(err))
		}
	}

	results, err := e.assessments.ListByMerchant(ctx, merchantID, 1)
	if err != nil {
		return nil, domain.NewStorageError("assessment lookup", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("assessments for merchant %s: %w", merchantID, domain.ErrNotFound)
	}

	result := results[0]
	if e.cache != nil {
		if err := e.cache.SetLatest(ctx, result); err != nil {
			e.log.Warn("failed to cache assessment", logger.ErrorField(err))
		}
	}
	return result, nil
}

// Forget drops the merchant's cached assessment, used when the merchant is
// deleted. The history store is untouched.
func (e *Engine) Forget(ctx context.Context, merchantID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, merchantID); err != nil {
		e.log.Warn("failed to invalidate cached assessment", logger.ErrorField(err))
	}
}

// History lists a merchant's prior assessment results, newest first.
func (e *Engine) History(ctx context.Context, merchantID string, limit int) ([]*domain.AssessmentResult, error) {
	results, err := e.assessments.ListByMerchant(ctx, merchantID, limit)
	if err != nil {
		return nil, domain.NewStorageError("assessment history", err)
	}
	return results, nil
}

func assessmentAuditEntry(result *domain.AssessmentResult, actor string) *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:          uuid.New(),
		Actor:       actor,
		Action:      domain.AuditActionAssessment,
		TargetID:    result.MerchantID,
		Description: fmt.Sprintf("Merchant %s assessed: score=%d level=%s", result.MerchantID, result.Score, result.RiskLevel),
		After: map[string]any{
			"assessment_id":    result.ID.String(),
			"config_version":   result.ConfigVersion,
			"score":            result.Score,
			"risk_level":       string(result.RiskLevel),
			"reasons":          result.Reasons,
			"override_applied": result.OverrideApplied,
		},
		CreatedAt: result.AssessedAt,
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
