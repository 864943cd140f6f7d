/*
handlers_test.go - HTTP-level tests for the pricing and claims-validation API

Tests exercise the router end to end against in-memory stores, the way a
client actually sees it: marshal a request, hit the handler, unmarshal the
response.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salamenterprise/claims-askes/internal/accumulator"
	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/claims"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/pricing"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

func newTestHandler(t *testing.T) (*Handler, *catalog.CatalogStore) {
	t.Helper()

	cat := catalog.NewStore()
	cat.Reload(
		[]catalog.ProductTemplate{
			{TemplateCode: "TPL_IP", Category: catalog.CategoryInpatient, BaseAdultMale: money.New(1_000_000), BaseAdultFemale: money.New(1_000_000), BaseChild: money.New(750_000), EffectiveFrom: timeutil.NewDate(2020, 1, 1)},
		},
		nil, nil,
		[]catalog.BenefitConfiguration{
			{BenefitCode: "IP_ROOM", Category: catalog.CategoryInpatient, SettlementPct: money.New(100), LimitValue: money.New(2_000_000)},
		},
	)

	registry := claims.NewRegistry()
	claims.RegisterAll(registry)

	h := NewHandler(
		pricing.NewEngine(pricing.NewMemoryStore(), cat),
		claims.NewEngine(registry),
		cat,
		accumulator.NewMemoryStore(),
		nil,
	)
	return h, cat
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndReadyz(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	rec := doRequest(router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}
}

func TestCreateConfiguration_Success(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	rec := doRequest(router, http.MethodPost, "/api/pricing/configurations", CreateConfigurationRequest{
		CompanyName:      "Acme Corp",
		ParticipantCount: 10,
		CoverageStart:    "2026-01-01",
		CoverageEnd:      "2026-12-31",
		PricingMethod:    "STANDARD",
	})
	// require: setup must succeed or nothing downstream is meaningful
	require.Equal(t, http.StatusOK, rec.Code)

	var dto ConfigurationDTO
	decodeJSON(t, rec, &dto)
	if dto.ID == "" {
		t.Error("expected a non-empty configuration id")
	}
	if dto.CompanyName != "Acme Corp" {
		t.Errorf("company_name = %q, want %q", dto.CompanyName, "Acme Corp")
	}
	if dto.Status != "DRAFT" {
		t.Errorf("status = %q, want DRAFT", dto.Status)
	}
}

func TestCreateConfiguration_MalformedDateIsValidationError(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	rec := doRequest(router, http.MethodPost, "/api/pricing/configurations", CreateConfigurationRequest{
		CompanyName:      "Acme Corp",
		ParticipantCount: 10,
		CoverageStart:    "not-a-date",
		CoverageEnd:      "2026-12-31",
		PricingMethod:    "STANDARD",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetConfiguration_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	rec := doRequest(router, http.MethodGet, "/api/pricing/configurations/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFullPricingLifecycle(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	// GIVEN a created config
	rec := doRequest(router, http.MethodPost, "/api/pricing/configurations", CreateConfigurationRequest{
		CompanyName:      "Acme Corp",
		ParticipantCount: 10,
		CoverageStart:    "2026-01-01",
		CoverageEnd:      "2026-12-31",
		PricingMethod:    "STANDARD",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created ConfigurationDTO
	decodeJSON(t, rec, &created)

	// WHEN a benefit is selected
	rec = doRequest(router, http.MethodPost, "/api/pricing/configurations/"+created.ID+"/benefits", ToggleBenefitRequest{
		Category:     "INPATIENT",
		Selected:     true,
		TemplateCode: "TPL_IP",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle benefit status = %d, want 200", rec.Code)
	}

	// AND five members are enrolled (participant_count follows the ACTIVE
	// member count, and submission requires at least 5)
	for i := 0; i < 5; i++ {
		rec = doRequest(router, http.MethodPost, "/api/pricing/configurations/"+created.ID+"/members", AddMemberRequest{
			FullName:    "Jane Doe",
			DateOfBirth: "1990-06-15",
			Gender:      "FEMALE",
			MemberType:  "EMPLOYEE",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("add member status = %d, want 201", rec.Code)
		}
	}

	// THEN calculate produces a positive adjusted premium
	rec = doRequest(router, http.MethodPost, "/api/pricing/configurations/"+created.ID+"/calculate?save=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calculate status = %d, want 200", rec.Code)
	}
	var calculated ConfigurationDTO
	decodeJSON(t, rec, &calculated)
	if !money.Parse(calculated.AdjustedPremium).IsPositive() {
		t.Errorf("adjusted_premium = %s, want positive", calculated.AdjustedPremium)
	}

	// AND the calculation was logged: the benefit toggle, each of the five
	// member additions and the saved calculate each append one entry
	rec = doRequest(router, http.MethodGet, "/api/pricing/configurations/"+created.ID+"/calculations/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, want 200", rec.Code)
	}
	var history CalculationHistoryResponse
	decodeJSON(t, rec, &history)
	if len(history.Entries) != 7 {
		t.Errorf("history entries = %d, want 7", len(history.Entries))
	}

	// AND submit opens an approval workflow
	rec = doRequest(router, http.MethodPost, "/api/pricing/configurations/"+created.ID+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, want 200", rec.Code)
	}
	var submitted ConfigurationDTO
	decodeJSON(t, rec, &submitted)
	if submitted.Status != "QUOTED" {
		t.Errorf("status = %q, want QUOTED", submitted.Status)
	}
}

func TestValidateClaim_UnknownBenefitCodeIsDependencyError(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	rec := doRequest(router, http.MethodPost, "/api/claims/validate", ClaimValidationRequest{
		ClaimID:       "CLM-1",
		MemberID:      "MBR-1",
		DateOfBirth:   "1990-01-01",
		Gender:        "MALE",
		BenefitCodes:  []string{"NOT_CONFIGURED"},
		ServiceDate:   "2026-05-01",
		ClaimedAmount: "500000",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestValidateClaim_KnownBenefitProducesResults(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	rec := doRequest(router, http.MethodPost, "/api/claims/validate", ClaimValidationRequest{
		ClaimID:       "CLM-2",
		MemberID:      "MBR-2",
		DateOfBirth:   "1990-01-01",
		Gender:        "MALE",
		BenefitCodes:  []string{"IP_ROOM"},
		ServiceDate:   "2026-05-01",
		ClaimedAmount: "500000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClaimValidationResponse
	decodeJSON(t, rec, &resp)
	if resp.ValidationRunID == "" {
		t.Error("expected a non-empty validation_run_id")
	}
	if len(resp.Benefits) != 1 {
		t.Fatalf("benefits = %d, want 1", len(resp.Benefits))
	}
	if resp.Benefits[0].BenefitCode != "IP_ROOM" {
		t.Errorf("benefit_code = %q, want IP_ROOM", resp.Benefits[0].BenefitCode)
	}
}

func TestImportMembers_CSV(t *testing.T) {
	h, _ := newTestHandler(t)
	router := NewRouter(h)

	rec := doRequest(router, http.MethodPost, "/api/pricing/configurations", CreateConfigurationRequest{
		CompanyName:      "Acme Corp",
		ParticipantCount: 10,
		CoverageStart:    "2026-01-01",
		CoverageEnd:      "2026-12-31",
		PricingMethod:    "STANDARD",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg ConfigurationDTO
	decodeJSON(t, rec, &cfg)

	csvBody := "full_name,date_of_birth,gender,member_type\nJohn Smith,1985-03-10,MALE,EMPLOYEE\nBad Row,not-a-date,MALE,EMPLOYEE\n"
	var buf bytes.Buffer
	contentType := newMultipartCSV(&buf, "file", "members.csv", csvBody)

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/configurations/"+cfg.ID+"/members/import", &buf)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MemberImportResponse
	decodeJSON(t, rec, &resp)
	if resp.ImportedCount != 1 {
		t.Errorf("imported_count = %d, want 1", resp.ImportedCount)
	}
	if resp.ErrorCount != 1 {
		t.Errorf("error_count = %d, want 1", resp.ErrorCount)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(resp.Errors))
	}
	if resp.Errors[0].RowIndex != 2 {
		t.Errorf("row_index = %d, want 2", resp.Errors[0].RowIndex)
	}
}
