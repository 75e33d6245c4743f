package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/merchant-risk-service/internal/alerting"
	"github.com/banking/merchant-risk-service/internal/audit"
	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/httpapi"
	"github.com/banking/merchant-risk-service/internal/merchant"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
	"github.com/banking/merchant-risk-service/internal/risk"
	"github.com/banking/merchant-risk-service/internal/storage/memory"
)

type apiFixture struct {
	echo      *echo.Echo
	store     *risk.ConfigStore
	auditRepo *memory.AuditRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := logger.NewNop()

	seed := &domain.RiskConfig{
		Weights: map[string]int{
			domain.FactorHighRiskCountry: 30,
			domain.FactorOwnerPEP:        50,
			domain.FactorSanctionedOwner: 100,
		},
		Thresholds: domain.RiskThresholds{LowMax: 30, MediumMax: 60, CriticalMin: 85},
		FactorThresholds: domain.FactorThresholds{
			HighVolumeMin:       1_000_000,
			NewBusinessMaxYears: 2,
			HighRefundRate:      0.05,
			VolumeSpikeRatio:    0.5,
		},
		HighRiskCountries: []string{"iran"},
	}
	store, err := risk.NewConfigStore(context.Background(), seed, memory.NewConfigVersionRepository(), log)
	require.NoError(t, err)

	auditRepo := memory.NewAuditRepository()
	trail := audit.NewTrail(auditRepo, nil, log)
	dispatcher := alerting.NewDispatcher(memory.NewAlertRepository(), nil, log)
	engine := risk.NewEngine(store, memory.NewAssessmentRepository(), trail, dispatcher, nil, log)
	svc := merchant.NewService(memory.NewMerchantRepository(), engine, trail, log)

	e := echo.New()
	handler := httpapi.NewHandler(svc, engine, dispatcher, trail, log)
	handler.Register(e, func(next echo.HandlerFunc) echo.HandlerFunc { return next })

	return &apiFixture{echo: e, store: store, auditRepo: auditRepo}
}

func (f *apiFixture) putJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestConfigUpdate_AuditPairsExactPredecessor(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	rec := f.putJSON("/api/v1/config/weights", `{"weights":{"owner_pep":75}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.putJSON("/api/v1/config/weights", `{"weights":{"owner_pep":90}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := f.auditRepo.Query(ctx, domain.AuditFilter{Action: domain.AuditActionConfigChange})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// The second entry's "before" is the stored version-2 config, which the
	// first update produced, not whatever snapshot the handler saw earlier.
	second := entries[1]
	before, ok := second.Before["weights"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 75, before[domain.FactorOwnerPEP])

	after, ok := second.After["weights"].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 90, after[domain.FactorOwnerPEP])
	assert.Equal(t, int64(3), second.After["version"])

	// Untouched weights carry through both payloads.
	assert.Equal(t, 30, before[domain.FactorHighRiskCountry])
	assert.Equal(t, 30, after[domain.FactorHighRiskCountry])
}

func TestConfigUpdate_ListAuditUsesStoredNormalizedItems(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	rec := f.putJSON("/api/v1/config/lists", `{"list_type":"countries","items":[" Cuba ","IRAN"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := f.auditRepo.Query(ctx, domain.AuditFilter{Action: domain.AuditActionConfigChange})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, []string{"iran"}, entries[0].Before["items"])
	assert.Equal(t, []string{"cuba", "iran"}, entries[0].After["items"])
}
