/*
handlers.go - HTTP API handlers for the pricing and claims-validation engines

PURPOSE:
  Exposes the Premium Pricing Engine and the Claims Validation Engine via
  REST API. Handles HTTP request/response, JSON (de)serialization via
  go-chi/render, and delegates to the domain engines.

ENDPOINTS:
  Pricing configurations:
    POST   /api/pricing/configurations                       Create a quote
    GET    /api/pricing/configurations/{id}                  Get a quote
    GET    /api/pricing/configurations                       List quotes
    GET    /api/pricing/configurations/{id}/benefits          List benefits
    POST   /api/pricing/configurations/{id}/benefits          Toggle a benefit
    POST   /api/pricing/configurations/{id}/benefits/override Override a limit
    GET    /api/pricing/configurations/{id}/factors           List T&C factors
    POST   /api/pricing/configurations/{id}/factors           Update a T&C factor
    GET    /api/pricing/configurations/{id}/members           List members
    POST   /api/pricing/configurations/{id}/members           Add a member
    POST   /api/pricing/configurations/{id}/members/import     Bulk import
    POST   /api/pricing/configurations/{id}/calculate          Recompute premium
    GET    /api/pricing/configurations/{id}/calculations/history
    POST   /api/pricing/configurations/{id}/submit             Submit for approval
    POST   /api/pricing/configurations/{id}/approve            Approve a step
    GET    /api/pricing/configurations/{id}/approvals          List approval steps
    GET    /api/pricing/configurations/{id}/quote              Quote document

  Claims validation:
    POST   /api/claims/validate   Evaluate a claim against VAL001-VAL025

  Health:
    GET    /healthz   Liveness
    GET    /readyz    Readiness (pings the database)

ERROR HANDLING:
  Every engine error is an apperr-family error; writeAppError maps it to the
  status apperr.StatusCode reports (400/404/409/500).

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/salamenterprise/claims-askes/internal/accumulator"
	"github.com/salamenterprise/claims-askes/internal/apperr"
	"github.com/salamenterprise/claims-askes/internal/catalog"
	"github.com/salamenterprise/claims-askes/internal/claims"
	"github.com/salamenterprise/claims-askes/internal/money"
	"github.com/salamenterprise/claims-askes/internal/pricing"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Pricing     *pricing.Engine
	Claims      *claims.Engine
	Catalog     catalog.Catalog
	Accumulator accumulator.Store
	DB          *sql.DB // for /readyz; nil is tolerated (treated as always-ready)
}

// NewHandler builds a Handler over the pricing and claims engines.
func NewHandler(pricingEngine *pricing.Engine, claimsEngine *claims.Engine, cat catalog.Catalog, accum accumulator.Store, db *sql.DB) *Handler {
	return &Handler{
		Pricing:     pricingEngine,
		Claims:      claimsEngine,
		Catalog:     cat,
		Accumulator: accum,
		DB:          db,
	}
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// Readyz reports readiness, pinging the database if one is configured.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.PingContext(r.Context()); err != nil {
			writeAppError(w, r, apperr.NewDependencyMissing("database", err.Error()))
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ready"})
}

// =============================================================================
// PRICING CONFIGURATION ENDPOINTS
// =============================================================================

// CreateConfiguration creates a new DRAFT quote.
// POST /api/pricing/configurations
func (h *Handler) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req CreateConfigurationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, apperr.NewValidation("body", "malformed JSON: %v", err))
		return
	}

	coverageStart, err := parseDate(req.CoverageStart)
	if err != nil {
		writeAppError(w, r, apperr.NewValidation("coverage_start", "malformed date"))
		return
	}
	coverageEnd, err := parseDate(req.CoverageEnd)
	if err != nil {
		writeAppError(w, r, apperr.NewValidation("coverage_end", "malformed date"))
		return
	}

	cfg, err := h.Pricing.CreateConfig(r.Context(), req.CompanyName, req.ParticipantCount, coverageStart, coverageEnd, req.PricingMethod)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// GetConfiguration returns one quote.
// GET /api/pricing/configurations/{id}
func (h *Handler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := h.Pricing.Store.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// ListConfigurations lists quotes by status/company_name with pagination.
// GET /api/pricing/configurations?status=&company_name=&limit=&offset=
func (h *Handler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := pricing.ListFilter{
		Status:      pricing.ConfigStatus(q.Get("status")),
		CompanyName: q.Get("company_name"),
		Limit:       atoiDefault(q.Get("limit"), 0),
		Offset:      atoiDefault(q.Get("offset"), 0),
	}
	configs, err := h.Pricing.Store.List(r.Context(), filter)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	dtos := make([]ConfigurationDTO, len(configs))
	for i, c := range configs {
		dtos[i] = toConfigurationDTO(c)
	}
	render.JSON(w, r, dtos)
}

// ListBenefits returns a configuration's benefit selections.
// GET /api/pricing/configurations/{id}/benefits
func (h *Handler) ListBenefits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := h.Pricing.Store.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toBenefitSelectionDTOs(cfg.Benefits))
}

// ToggleBenefit selects or unselects a benefit category.
// POST /api/pricing/configurations/{id}/benefits
func (h *Handler) ToggleBenefit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ToggleBenefitRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, apperr.NewValidation("body", "malformed JSON: %v", err))
		return
	}
	cfg, err := h.Pricing.ToggleBenefit(r.Context(), id, catalog.BenefitCategory(req.Category), req.Selected, req.TemplateCode)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// OverrideBenefit overrides a benefit's configured limit for one configuration.
// POST /api/pricing/configurations/{id}/benefits/override
func (h *Handler) OverrideBenefit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req BenefitOverrideRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, apperr.NewValidation("body", "malformed JSON: %v", err))
		return
	}
	overrideLimit := money.Parse(req.OverrideLimit)
	cfg, err := h.Pricing.OverrideBenefitLimit(r.Context(), id, req.BenefitCode, overrideLimit, req.Reason)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// ListFactors returns a configuration's T&C factor selections.
// GET /api/pricing/configurations/{id}/factors
func (h *Handler) ListFactors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := h.Pricing.Store.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toTCFactorDTOs(cfg.TCs))
}

// UpdateFactor applies a new option for one T&C factor.
// POST /api/pricing/configurations/{id}/factors
func (h *Handler) UpdateFactor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateTCRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, apperr.NewValidation("body", "malformed JSON: %v", err))
		return
	}
	cfg, err := h.Pricing.UpdateTC(r.Context(), id, req.FactorCode, req.OptionValue)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// ListMembers returns a configuration's members.
// GET /api/pricing/configurations/{id}/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := h.Pricing.Store.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toMemberDTOs(cfg.Members))
}

// AddMember enrolls one member.
// POST /api/pricing/configurations/{id}/members
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AddMemberRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, apperr.NewValidation("body", "malformed JSON: %v", err))
		return
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		writeAppError(w, r, apperr.NewValidation("date_of_birth", "malformed date"))
		return
	}
	cfg, err := h.Pricing.AddMember(r.Context(), id, req.FullName, dob, genderFromString(req.Gender), memberTypeFromString(req.MemberType), req.ClassCode)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// ImportMembers bulk-imports members from a multipart CSV upload (§4.4.7):
// columns full_name, date_of_birth, gender, member_type, optional
// relationship, class_code. Only the first 10 per-row errors are returned.
// POST /api/pricing/configurations/{id}/members/import
func (h *Handler) ImportMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	file, _, err := r.FormFile("file")
	if err != nil {
		writeAppError(w, r, apperr.NewValidation("file", "multipart file field required"))
		return
	}
	defer file.Close()

	rows, err := parseMemberImportCSV(file)
	if err != nil {
		writeAppError(w, r, apperr.NewValidation("file", "malformed CSV: %v", err))
		return
	}

	created, importErrs, err := h.Pricing.ImportMembers(r.Context(), id, rows)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	cfg, err := h.Pricing.Store.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	errDTOs := make([]MemberImportErrorDTO, 0, len(importErrs))
	for i, e := range importErrs {
		if i >= 10 {
			break
		}
		errDTOs = append(errDTOs, MemberImportErrorDTO{RowIndex: e.RowIndex, Message: e.Message})
	}

	dto := toConfigurationDTO(cfg)
	render.JSON(w, r, MemberImportResponse{
		ImportedCount: len(created),
		ErrorCount:    len(importErrs),
		Errors:        errDTOs,
		PremiumUpdate: &dto,
	})
}

// Calculate recomputes the premium breakdown, persisting a calculation log
// entry when save=true (§4.4.4).
// POST /api/pricing/configurations/{id}/calculate?save=bool
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	save := r.URL.Query().Get("save") == "true"
	cfg, err := h.Pricing.Calculate(r.Context(), id, save)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// CalculationHistory returns prior calculation log entries, most recent first.
// GET /api/pricing/configurations/{id}/calculations/history?limit=
func (h *Handler) CalculationHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := atoiDefault(r.URL.Query().Get("limit"), 0)
	entries, err := h.Pricing.Store.CalculationHistory(r.Context(), id, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, CalculationHistoryResponse{Entries: toCalculationLogDTOs(entries)})
}

// Submit transitions a DRAFT configuration to QUOTED and opens its approval
// workflow (§4.4.6).
// POST /api/pricing/configurations/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SubmitRequest
	_ = render.DecodeJSON(r.Body, &req) // submitted_by is informational only; engine does not require it

	cfg, err := h.Pricing.Submit(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// Approve decides one pending approval step (§4.4.6).
// POST /api/pricing/configurations/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ApproveRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, apperr.NewValidation("body", "malformed JSON: %v", err))
		return
	}
	cfg, err := h.Pricing.Approve(r.Context(), id, req.StepName, req.ApproverID, req.Comments)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toConfigurationDTO(cfg))
}

// ListApprovals returns a configuration's approval workflow steps.
// GET /api/pricing/configurations/{id}/approvals
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := h.Pricing.Store.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, toApprovalDTOs(cfg.Approvals))
}

// GetQuote renders the quote document. The `.pdf` extension is recognized
// but not yet implemented (§6); the JSON document is always served.
// GET /api/pricing/configurations/{id}/quote[.pdf]
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.HasSuffix(r.URL.Path, ".pdf") {
		render.Status(r, http.StatusNotImplemented)
		render.JSON(w, r, ErrorResponse{Error: "PDF quote rendering is not implemented"})
		return
	}

	cfg, err := h.Pricing.Store.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	render.JSON(w, r, QuoteDocumentDTO{
		Configuration: toConfigurationDTO(cfg),
		GeneratedAt:   timeutil.Today().String(),
	})
}

// =============================================================================
// CLAIMS VALIDATION ENDPOINT
// =============================================================================

// ValidateClaim evaluates a claim against VAL001-VAL025 for every named
// benefit code (§4.6, §6). Each benefit code is evaluated against its own
// BenefitConfiguration; the claim-level rollup can auto-adjudicate only if
// every benefit code can.
// POST /api/claims/validate
func (h *Handler) ValidateClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimValidationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, apperr.NewValidation("body", "malformed JSON: %v", err))
		return
	}
	if len(req.BenefitCodes) == 0 {
		writeAppError(w, r, apperr.NewValidation("benefit_codes", "at least one benefit code required"))
		return
	}

	base, err := buildClaimContext(req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := ClaimValidationResponse{
		ValidationRunID:   uuid.New().String(),
		ClaimID:           req.ClaimID,
		CanAutoAdjudicate: true,
	}

	var totalAllowed money.Decimal
	for _, code := range req.BenefitCodes {
		benefit, ok := h.Catalog.BenefitConfiguration(code)
		if !ok {
			writeAppError(w, r, apperr.NewDependencyMissing("BenefitConfiguration", code))
			return
		}

		ctx := base
		ctx.BenefitCode = code
		if totals, err := h.Accumulator.Get(r.Context(), accumulator.Key{
			MemberID:    req.MemberID,
			BenefitCode: code,
			Period:      strconv.Itoa(ctx.ServiceDate.Year()),
		}); err == nil {
			ctx.AccumulatorUsedAmount = totals.UsedAmount
			ctx.AccumulatorUsedCount = totals.UsedCount
		}

		results := h.Claims.Validate(ctx, benefit)
		canAuto := claims.CanAutoAdjudicate(results)
		pendReasons := claims.PendReasons(results)
		allowed := claims.CalculateAllowedAmount(ctx, benefit)
		totalAllowed = totalAllowed.Add(allowed)

		resp.Benefits = append(resp.Benefits, BenefitValidationDTO{
			BenefitCode:       code,
			Results:           toValidationResultDTOs(results),
			CanAutoAdjudicate: canAuto,
			PendReasons:       pendReasons,
			AllowedAmount:     allowed.String(),
		})
		if !canAuto {
			resp.CanAutoAdjudicate = false
			resp.PendReasons = append(resp.PendReasons, pendReasons...)
		}
	}
	resp.AllowedAmount = totalAllowed.String()

	render.JSON(w, r, resp)
}

// buildClaimContext converts a ClaimValidationRequest into the immutable
// claims.ClaimContext the engine evaluates against.
func buildClaimContext(req ClaimValidationRequest) (claims.ClaimContext, error) {
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return claims.ClaimContext{}, apperr.NewValidation("date_of_birth", "malformed date")
	}
	serviceDate, err := parseDate(req.ServiceDate)
	if err != nil {
		return claims.ClaimContext{}, apperr.NewValidation("service_date", "malformed date")
	}
	admissionDate, err := parseDate(req.AdmissionDate)
	if err != nil {
		return claims.ClaimContext{}, apperr.NewValidation("admission_date", "malformed date")
	}
	dischargeDate, err := parseDate(req.DischargeDate)
	if err != nil {
		return claims.ClaimContext{}, apperr.NewValidation("discharge_date", "malformed date")
	}
	memberSinceDate, err := parseDate(req.MemberSinceDate)
	if err != nil {
		return claims.ClaimContext{}, apperr.NewValidation("member_since_date", "malformed date")
	}

	priorClaims := make([]claims.PriorClaim, len(req.PriorClaims))
	for i, p := range req.PriorClaims {
		serviceDate, err := parseDate(p.ServiceDate)
		if err != nil {
			return claims.ClaimContext{}, apperr.NewValidation("prior_claims.service_date", "malformed date")
		}
		priorClaims[i] = claims.PriorClaim{
			ClaimID:       p.ClaimID,
			BenefitCode:   p.BenefitCode,
			ServiceDate:   serviceDate,
			ClaimedAmount: money.Parse(p.ClaimedAmount),
			Status:        claims.Status(p.Status),
		}
	}

	items := make([]claims.ClaimItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = claims.ClaimItem{
			BenefitCode:   it.BenefitCode,
			DiagnosisCode: it.DiagnosisCode,
			ProcedureCode: it.ProcedureCode,
			Quantity:      it.Quantity,
			UnitPrice:     money.Parse(it.UnitPrice),
			ChargedAmount: money.Parse(it.ChargedAmount),
		}
	}

	return claims.ClaimContext{
		ClaimID:         req.ClaimID,
		MemberID:        req.MemberID,
		DOB:             dob,
		Gender:          genderFromString(req.Gender),
		PlanCode:        req.PlanCode,
		ServiceDate:     serviceDate,
		AdmissionDate:   admissionDate,
		DischargeDate:   dischargeDate,
		DiagnosisCodes:  req.DiagnosisCodes,
		ProcedureCodes:  req.ProcedureCodes,
		ClaimedAmount:   money.Parse(req.ClaimedAmount),
		Channel:         req.Channel,
		IsEmergency:     req.IsEmergency,
		HasPreauth:      req.HasPreauth,
		PreauthNumber:   req.PreauthNumber,
		MemberSinceDate: memberSinceDate,
		PriorClaims:     priorClaims,
		Items:           items,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
