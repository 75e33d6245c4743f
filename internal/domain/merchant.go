package domain

import (
	"time"
)

// MerchantStatus represents the merchant account lifecycle state.
type MerchantStatus string

const (
	MerchantStatusPending     MerchantStatus = "PENDING"
	MerchantStatusActive      MerchantStatus = "ACTIVE"
	MerchantStatusSuspended   MerchantStatus = "SUSPENDED"
	MerchantStatusTerminated  MerchantStatus = "TERMINATED"
	MerchantStatusUnderReview MerchantStatus = "UNDER_REVIEW"
)

// MerchantSnapshot is the immutable input to a risk assessment. A fresh
// snapshot is built for every assessment request; fields are never mutated
// after construction.
type MerchantSnapshot struct {
	MerchantID   string `json:"merchant_id"`
	BusinessName string `json:"business_name"`
	Country      string `json:"country"`
	Industry     string `json:"industry"`
	MCCCode      string `json:"mcc_code,omitempty"`

	// Owner / KYC
	OwnerPEP        bool `json:"owner_pep"`
	OwnerSanctioned bool `json:"owner_sanctioned"`

	// Business structure
	AnnualVolume      float64 `json:"annual_volume"`
	YearsInBusiness   int     `json:"years_in_business"`
	OffshoreStructure bool    `json:"offshore_structure"`
	CashIntensive     bool    `json:"cash_intensive"`
	ComplexOwnership  bool    `json:"complex_ownership"`

	// Behavioral signals, all expressed as fractions in [0, 1] except the
	// month-over-month volume change which is a ratio (0.5 = +50%).
	RefundRate     float64 `json:"refund_rate"`
	VolumeChange   float64 `json:"volume_change"`
	ChargebackRate float64 `json:"chargeback_rate"`
}

// Validate checks the snapshot for well-formedness. A valid snapshot always
// produces an assessment result; there is no other error path in scoring.
func (s *MerchantSnapshot) Validate() error {
	if s.MerchantID == "" {
		return NewValidationError("merchant_id", "must not be empty")
	}
	if s.Country == "" {
		return NewValidationError("country", "must not be empty")
	}
	if s.AnnualVolume < 0 {
		return NewValidationError("annual_volume", "must not be negative")
	}
	if s.YearsInBusiness < 0 {
		return NewValidationError("years_in_business", "must not be negative")
	}
	if s.RefundRate < 0 || s.RefundRate > 1 {
		return NewValidationError("refund_rate", "must be within [0, 1]")
	}
	if s.ChargebackRate < 0 || s.ChargebackRate > 1 {
		return NewValidationError("chargeback_rate", "must be within [0, 1]")
	}
	return nil
}

// Merchant is the persisted merchant record, carrying the KYC profile plus
// the outcome of the most recent risk assessment.
type Merchant struct {
	MerchantID   string `json:"merchant_id" db:"merchant_id"`
	BusinessName string `json:"business_name" db:"business_name"`
	Country      string `json:"country" db:"country"`
	Industry     string `json:"industry" db:"industry"`
	MCCCode      string `json:"mcc_code,omitempty" db:"mcc_code"`
	OwnerName    string `json:"owner_name,omitempty" db:"owner_name"`

	OwnerPEP        bool `json:"owner_pep" db:"owner_pep"`
	OwnerSanctioned bool `json:"owner_sanctioned" db:"owner_sanctioned"`

	AnnualVolume      float64 `json:"annual_volume" db:"annual_volume"`
	YearsInBusiness   int     `json:"years_in_business" db:"years_in_business"`
	OffshoreStructure bool    `json:"offshore_structure" db:"offshore_structure"`
	CashIntensive     bool    `json:"cash_intensive" db:"cash_intensive"`
	ComplexOwnership  bool    `json:"complex_ownership" db:"complex_ownership"`

	RefundRate     float64 `json:"refund_rate" db:"refund_rate"`
	VolumeChange   float64 `json:"volume_change" db:"volume_change"`
	ChargebackRate float64 `json:"chargeback_rate" db:"chargeback_rate"`

	// Latest assessment outcome
	RiskScore      int        `json:"risk_score" db:"risk_score"`
	RiskLevel      RiskLevel  `json:"risk_level" db:"risk_level"`
	RiskReasons    []string   `json:"risk_reasons" db:"risk_reasons"`
	LastAssessedAt *time.Time `json:"last_assessed_at,omitempty" db:"last_assessed_at"`

	Status    MerchantStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// Snapshot builds the immutable assessment input from the current record.
func (m *Merchant) Snapshot() MerchantSnapshot {
	return MerchantSnapshot{
		MerchantID:        m.MerchantID,
		BusinessName:      m.BusinessName,
		Country:           m.Country,
		Industry:          m.Industry,
		MCCCode:           m.MCCCode,
		OwnerPEP:          m.OwnerPEP,
		OwnerSanctioned:   m.OwnerSanctioned,
		AnnualVolume:      m.AnnualVolume,
		YearsInBusiness:   m.YearsInBusiness,
		OffshoreStructure: m.OffshoreStructure,
		CashIntensive:     m.CashIntensive,
		ComplexOwnership:  m.ComplexOwnership,
		RefundRate:        m.RefundRate,
		VolumeChange:      m.VolumeChange,
		ChargebackRate:    m.ChargebackRate,
	}
}

// IsTerminal returns true if no further lifecycle transitions are allowed.
func (m *Merchant) IsTerminal() bool {
	return m.Status == MerchantStatusTerminated
}

// MerchantFilter narrows merchant listings.
type MerchantFilter struct {
	RiskLevel RiskLevel
	Status    MerchantStatus
	Country   string
	Offset    int
	Limit     int
}
