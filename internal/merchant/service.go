package merchant

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
	"github.com/banking/merchant-risk-service/internal/risk"
)

// reassessParallelism bounds concurrent assessments during a batch
// reassessment sweep.
const reassessParallelism = 8

// Repository persists merchant records.
type Repository interface {
	Create(ctx context.Context, m *domain.Merchant) error
	Get(ctx context.Context, merchantID string) (*domain.Merchant, error)
	Update(ctx context.Context, m *domain.Merchant) error
	Delete(ctx context.Context, merchantID string) error
	List(ctx context.Context, filter domain.MerchantFilter) ([]*domain.Merchant, error)
}

// AuditRecorder records lifecycle actions on the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

// Service owns the merchant lifecycle: onboarding, updates, manual
// approval decisions, and manual risk overrides. Every state change runs
// through the assessment engine and lands on the audit trail.
type Service struct {
	repo   Repository
	engine *risk.Engine
	audit  AuditRecorder
	log    *logger.Logger
}

// NewService creates a merchant service.
func NewService(repo Repository, engine *risk.Engine, audit AuditRecorder, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		audit:  audit,
		log:    log.Named("merchant_service"),
	}
}

// OnboardRequest carries the KYC profile of a new merchant.
type OnboardRequest struct {
	MerchantID   string `json:"merchant_id" validate:"required"`
	BusinessName string `json:"business_name" validate:"required"`
	Country      string `json:"country" validate:"required"`
	Industry     string `json:"industry" validate:"required"`
	MCCCode      string `json:"mcc_code,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`

	OwnerPEP        bool `json:"owner_pep"`
	OwnerSanctioned bool `json:"owner_sanctioned"`

	AnnualVolume      float64 `json:"annual_volume"`
	YearsInBusiness   int     `json:"years_in_business"`
	OffshoreStructure bool    `json:"offshore_structure"`
	CashIntensive     bool    `json:"cash_intensive"`
	ComplexOwnership  bool    `json:"complex_ownership"`

	RefundRate     float64 `json:"refund_rate"`
	VolumeChange   float64 `json:"volume_change"`
	ChargebackRate float64 `json:"chargeback_rate"`
}

// UpdateRequest is a partial merchant update; nil fields are unchanged.
type UpdateRequest struct {
	BusinessName *string `json:"business_name,omitempty"`
	Country      *string `json:"country,omitempty"`
	Industry     *string `json:"industry,omitempty"`
	MCCCode      *string `json:"mcc_code,omitempty"`
	OwnerName    *string `json:"owner_name,omitempty"`

	OwnerPEP        *bool `json:"owner_pep,omitempty"`
	OwnerSanctioned *bool `json:"owner_sanctioned,omitempty"`

	AnnualVolume      *float64 `json:"annual_volume,omitempty"`
	YearsInBusiness   *int     `json:"years_in_business,omitempty"`
	OffshoreStructure *bool    `json:"offshore_structure,omitempty"`
	CashIntensive     *bool    `json:"cash_intensive,omitempty"`
	ComplexOwnership  *bool    `json:"complex_ownership,omitempty"`

	RefundRate     *float64 `json:"refund_rate,omitempty"`
	VolumeChange   *float64 `json:"volume_change,omitempty"`
	ChargebackRate *float64 `json:"chargeback_rate,omitempty"`
}

// OverrideRequest forces a merchant's risk level with a justification.
type OverrideRequest struct {
	NewLevel domain.RiskLevel `json:"new_risk_level" validate:"required"`
	Reason   string           `json:"reason" validate:"required"`
}

// overrideScores maps a manually assigned level to a representative score.
var overrideScores = map[domain.RiskLevel]int{
	domain.RiskLevelLow:      15,
	domain.RiskLevelMedium:   45,
	domain.RiskLevelHigh:     75,
	domain.RiskLevelCritical: 95,
}

// Onboard creates a merchant, runs the initial assessment, and auto-approves
// LOW-risk merchants. Anything above LOW goes to manual review.
func (s *Service) Onboard(ctx context.Context, req *OnboardRequest, actor string) (*domain.Merchant, error) {
	now := time.Now().UTC()
	m := &domain.Merchant{
		MerchantID:        req.MerchantID,
		BusinessName:      req.BusinessName,
		Country:           req.Country,
		Industry:          req.Industry,
		MCCCode:           req.MCCCode,
		OwnerName:         req.OwnerName,
		OwnerPEP:          req.OwnerPEP,
		OwnerSanctioned:   req.OwnerSanctioned,
		AnnualVolume:      req.AnnualVolume,
		YearsInBusiness:   req.YearsInBusiness,
		OffshoreStructure: req.OffshoreStructure,
		CashIntensive:     req.CashIntensive,
		ComplexOwnership:  req.ComplexOwnership,
		RefundRate:        req.RefundRate,
		VolumeChange:      req.VolumeChange,
		ChargebackRate:    req.ChargebackRate,
		Status:            domain.MerchantStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	snapshot := m.Snapshot()
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	result, err := s.engine.Assess(ctx, &snapshot, actor)
	if err != nil {
		return nil, err
	}
	s.applyResult(m, result)

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, domain.NewStorageError("merchant update", err)
	}

	entry := &domain.AuditEntry{
		Actor:       actor,
		Action:      domain.AuditActionOnboard,
		TargetID:    m.MerchantID,
		Description: fmt.Sprintf("Merchant %s onboarded", m.MerchantID),
		After: map[string]any{
			"business_name": m.BusinessName,
			"country":       m.Country,
			"industry":      m.Industry,
			"risk_level":    string(m.RiskLevel),
			"status":        string(m.Status),
		},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, err
	}

	s.log.MerchantOnboarded(m.MerchantID, string(m.RiskLevel), string(m.Status))
	return m, nil
}

// Update applies a partial update and re-assesses the merchant.
func (s *Service) Update(ctx context.Context, merchantID string, req *UpdateRequest, actor string) (*domain.Merchant, error) {
	m, err := s.repo.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	before := map[string]any{
		"country":    m.Country,
		"industry":   m.Industry,
		"owner_pep":  m.OwnerPEP,
		"risk_score": m.RiskScore,
		"risk_level": string(m.RiskLevel),
	}

	applyUpdate(m, req)
	m.UpdatedAt = time.Now().UTC()

	snapshot := m.Snapshot()
	result, err := s.engine.Assess(ctx, &snapshot, actor)
	if err != nil {
		return nil, err
	}
	s.applyResult(m, result)

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, domain.NewStorageError("merchant update", err)
	}

	entry := &domain.AuditEntry{
		Actor:       actor,
		Action:      domain.AuditActionUpdate,
		TargetID:    m.MerchantID,
		Description: fmt.Sprintf("Merchant %s updated", m.MerchantID),
		Before:      before,
		After: map[string]any{
			"country":    m.Country,
			"industry":   m.Industry,
			"owner_pep":  m.OwnerPEP,
			"risk_score": m.RiskScore,
			"risk_level": string(m.RiskLevel),
		},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns a merchant by ID.
func (s *Service) Get(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	return s.repo.Get(ctx, merchantID)
}

// List returns merchants matching the filter.
func (s *Service) List(ctx context.Context, filter domain.MerchantFilter) ([]*domain.Merchant, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a merchant after auditing the deletion. The audit entry is
// written first so a storage failure cannot leave an unaudited removal.
func (s *Service) Delete(ctx context.Context, merchantID, actor string) error {
	m, err := s.repo.Get(ctx, merchantID)
	if err != nil {
		return err
	}

	entry := &domain.AuditEntry{
		Actor:       actor,
		Action:      domain.AuditActionDelete,
		TargetID:    merchantID,
		Description: fmt.Sprintf("Merchant %s deleted", merchantID),
		Before: map[string]any{
			"business_name": m.BusinessName,
			"risk_level":    string(m.RiskLevel),
		},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, merchantID); err != nil {
		return err
	}
	s.engine.Forget(ctx, merchantID)
	return nil
}

// Approve manually activates a merchant under review.
func (s *Service) Approve(ctx context.Context, merchantID, actor string) (*domain.Merchant, error) {
	return s.transition(ctx, merchantID, actor, domain.MerchantStatusActive, domain.AuditActionApprove, "approved")
}

// Reject manually terminates a merchant.
func (s *Service) Reject(ctx context.Context, merchantID, actor string) (*domain.Merchant, error) {
	return s.transition(ctx, merchantID, actor, domain.MerchantStatusTerminated, domain.AuditActionReject, "rejected")
}

func (s *Service) transition(ctx context.Context, merchantID, actor string, status domain.MerchantStatus, action domain.AuditAction, verb string) (*domain.Merchant, error) {
	m, err := s.repo.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if m.IsTerminal() {
		return nil, fmt.Errorf("merchant %s is terminated: %w", merchantID, domain.ErrInvalidState)
	}

	previous := m.Status
	m.Status = status
	m.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, domain.NewStorageError("merchant update", err)
	}

	entry := &domain.AuditEntry{
		Actor:       actor,
		Action:      action,
		TargetID:    merchantID,
		Description: fmt.Sprintf("Merchant %s manually %s", merchantID, verb),
		Before:      map[string]any{"status": string(previous)},
		After:       map[string]any{"status": string(m.Status)},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// Reassess runs a fresh assessment for a merchant on demand.
func (s *Service) Reassess(ctx context.Context, merchantID, actor string) (*domain.AssessmentResult, error) {
	m, err := s.repo.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	snapshot := m.Snapshot()
	result, err := s.engine.Assess(ctx, &snapshot, actor)
	if err != nil {
		return nil, err
	}
	s.applyResult(m, result)

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, domain.NewStorageError("merchant update", err)
	}
	return result, nil
}

// OverrideRisk forces a merchant's risk level with an admin justification.
// The override is recorded as its own assessment result and audited as a
// RISK_OVERRIDE.
func (s *Service) OverrideRisk(ctx context.Context, merchantID string, req *OverrideRequest, actor string) (*domain.Merchant, error) {
	score, ok := overrideScores[req.NewLevel]
	if !ok {
		return nil, domain.NewValidationError("new_risk_level", "must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}
	if req.Reason == "" {
		return nil, domain.NewValidationError("reason", "must not be empty")
	}

	m, err := s.repo.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	previousLevel := m.RiskLevel
	previousScore := m.RiskScore
	_, version := s.engine.Configs().Current()

	now := time.Now().UTC()
	reason := fmt.Sprintf("Manual override: %s", req.Reason)
	result := &domain.AssessmentResult{
		ID:              uuid.New(),
		MerchantID:      merchantID,
		ConfigVersion:   version,
		RawScore:        score,
		Score:           score,
		RiskLevel:       req.NewLevel,
		Reasons:         []string{reason},
		OverrideApplied: true,
		OverrideReason:  reason,
		AssessedBy:      actor,
		AssessedAt:      now,
	}

	if err := s.engine.AppendOverride(ctx, result); err != nil {
		return nil, err
	}
	// Override moves risk fields only; lifecycle decisions stay manual.
	s.applyRiskFields(m, result)
	m.UpdatedAt = now

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, domain.NewStorageError("merchant update", err)
	}

	entry := &domain.AuditEntry{
		Actor:       actor,
		Action:      domain.AuditActionOverride,
		TargetID:    merchantID,
		Description: fmt.Sprintf("Merchant %s risk manually overridden from %s to %s", merchantID, previousLevel, req.NewLevel),
		Before:      map[string]any{"risk_level": string(previousLevel), "risk_score": previousScore},
		After:       map[string]any{"risk_level": string(req.NewLevel), "risk_score": score, "reason": req.Reason},
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return nil, err
	}
	return m, nil
}

// ReassessAll re-runs assessments for every merchant, used after a
// configuration change. Work fans out with bounded parallelism; merchants
// are independent so no cross-merchant ordering is required. One merchant
// failing does not stop the sweep: the returned count is the number of
// assessments actually committed, and any failure surfaces alongside it.
func (s *Service) ReassessAll(ctx context.Context, actor string) (int, error) {
	merchants, err := s.repo.List(ctx, domain.MerchantFilter{})
	if err != nil {
		return 0, err
	}

	var (
		g          errgroup.Group
		reassessed atomic.Int64

		mu       sync.Mutex
		failed   int
		firstErr error
	)
	g.SetLimit(reassessParallelism)

	for _, m := range merchants {
		id := m.MerchantID
		g.Go(func() error {
			if _, err := s.Reassess(ctx, id, actor); err != nil {
				s.log.Warn("reassessment failed",
					logger.StringField("merchant_id", id), logger.ErrorField(err))
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			reassessed.Add(1)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are counted above

	count := int(reassessed.Load())
	if firstErr != nil {
		return count, fmt.Errorf("reassessed %d of %d merchants, %d failed: %w",
			count, len(merchants), failed, firstErr)
	}
	return count, nil
}

// applyResult records the assessment outcome on the merchant and moves the
// lifecycle state: LOW risk auto-activates, anything above goes to manual
// review. Terminated merchants never leave that state.
func (s *Service) applyResult(m *domain.Merchant, result *domain.AssessmentResult) {
	s.applyRiskFields(m, result)
	if m.IsTerminal() {
		return
	}
	if result.RiskLevel == domain.RiskLevelLow {
		m.Status = domain.MerchantStatusActive
	} else {
		m.Status = domain.MerchantStatusUnderReview
	}
}

func (s *Service) applyRiskFields(m *domain.Merchant, result *domain.AssessmentResult) {
	m.RiskScore = result.Score
	m.RiskLevel = result.RiskLevel
	m.RiskReasons = result.Reasons
	assessedAt := result.AssessedAt
	m.LastAssessedAt = &assessedAt
}

func applyUpdate(m *domain.Merchant, req *UpdateRequest) {
	if req.BusinessName != nil {
		m.BusinessName = *req.BusinessName
	}
	if req.Country != nil {
		m.Country = *req.Country
	}
	if req.Industry != nil {
		m.Industry = *req.Industry
	}
	if req.MCCCode != nil {
		m.MCCCode = *req.MCCCode
	}
	if req.OwnerName != nil {
		m.OwnerName = *req.OwnerName
	}
	if req.OwnerPEP != nil {
		m.OwnerPEP = *req.OwnerPEP
	}
	if req.OwnerSanctioned != nil {
		m.OwnerSanctioned = *req.OwnerSanctioned
	}
	if req.AnnualVolume != nil {
		m.AnnualVolume = *req.AnnualVolume
	}
	if req.YearsInBusiness != nil {
		m.YearsInBusiness = *req.YearsInBusiness
	}
	if req.OffshoreStructure != nil {
		m.OffshoreStructure = *req.OffshoreStructure
	}
	if req.CashIntensive != nil {
		m.CashIntensive = *req.CashIntensive
	}
	if req.ComplexOwnership != nil {
		m.ComplexOwnership = *req.ComplexOwnership
	}
	if req.RefundRate != nil {
		m.RefundRate = *req.RefundRate
	}
	if req.VolumeChange != nil {
		m.VolumeChange = *req.VolumeChange
	}
	if req.ChargebackRate != nil {
		m.ChargebackRate = *req.ChargebackRate
	}
}
