package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rentflow/agreement"
	"rentflow/auth"
	"rentflow/dispute"
	"rentflow/payment"
	"rentflow/profile"
	"rentflow/protocol"
)

// Service interfaces are declared here so handlers can be exercised with
// stubs in tests.

type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, auth.Role, error)
}

type ProtocolService interface {
	Initialize(ctx context.Context, adminID string) error
	Counters(ctx context.Context) (protocol.Counters, error)
	Version() string
}

type AgreementService interface {
	Create(ctx context.Context, params agreement.CreateParams) error
	Transition(ctx context.Context, params agreement.TransitionParams) error
	Get(ctx context.Context, id string) (agreement.Agreement, error)
	GetTotalPaid(ctx context.Context, id string) (int64, error)
}

type PaymentService interface {
	PayRent(ctx context.Context, params payment.PayRentParams) (payment.Record, error)
	GetPayment(ctx context.Context, id string) (payment.Record, error)
	ListByAgreement(ctx context.Context, agreementID string) ([]payment.Record, error)
}

type DisputeService interface {
	Open(ctx context.Context, agreementID, openedBy, reason string) (dispute.Record, error)
	List(ctx context.Context, agreementID string) ([]dispute.Record, error)
	Resolve(ctx context.Context, disputeID string) (dispute.Record, error)
}

type ProfileService interface {
	GetByID(ctx context.Context, id string) (profile.Profile, error)
	List(ctx context.Context, limit int) ([]profile.Profile, error)
}

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	authSvc      AuthService
	protocolSvc  ProtocolService
	agreementSvc AgreementService
	paymentSvc   PaymentService
	disputeSvc   DisputeService
	profileSvc   ProfileService
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// writeDomainError maps sentinel errors onto HTTP statuses, preserving the
// one-distinct-kind-per-failure contract for API consumers.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agreement.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, agreement.ErrDuplicate),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, protocol.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, agreement.ErrNotActive),
		errors.Is(err, agreement.ErrInvalidTransition),
		errors.Is(err, dispute.ErrBadStatus):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, payment.ErrNotAuthorized),
		errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, agreement.ErrInvalidRent),
		errors.Is(err, agreement.ErrInvalidDateRange),
		errors.Is(err, agreement.ErrInvalidCommissionRate),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, protocol.ErrNotInitialized):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrTransferFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("[api] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- auth ---

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authSvc.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      user.Role,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.authSvc.Login(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user": map[string]any{
			"id":        result.User.ID,
			"full_name": result.User.FullName,
			"role":      result.User.Role,
		},
	})
}

// --- protocol ---

func (h *Handlers) InitializeProtocol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminID string `json:"admin_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.protocolSvc.Initialize(r.Context(), req.AdminID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"admin_id": req.AdminID})
}

func (h *Handlers) ProtocolCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.protocolSvc.Counters(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"agreements": counters.Agreements,
		"payments":   counters.Payments,
		"disputes":   counters.Disputes,
	})
}

func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.protocolSvc.Version()})
}

// --- agreements ---

type createAgreementRequest struct {
	ID              string  `json:"id"`
	LandlordID      string  `json:"landlord_id"`
	TenantID        string  `json:"tenant_id"`
	AgentID         *string `json:"agent_id,omitempty"`
	MonthlyRent     int64   `json:"monthly_rent"`
	SecurityDeposit int64   `json:"security_deposit"`
	StartDate       int64   `json:"start_date"`
	EndDate         int64   `json:"end_date"`
	CommissionBps   uint32  `json:"commission_bps"`
}

func (h *Handlers) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.authSvc.VerifyToken(bearerToken(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	var req createAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.agreementSvc.Create(r.Context(), agreement.CreateParams{
		ID:              req.ID,
		LandlordID:      req.LandlordID,
		TenantID:        req.TenantID,
		AgentID:         req.AgentID,
		MonthlyRent:     req.MonthlyRent,
		SecurityDeposit: req.SecurityDeposit,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		CommissionBps:   req.CommissionBps,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID, "status": string(agreement.StatusDraft)})
}

func (h *Handlers) GetAgreement(w http.ResponseWriter, r *http.Request) {
	ag, err := h.agreementSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agreementJSON(ag))
}

func (h *Handlers) TransitionAgreement(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := h.authSvc.VerifyToken(bearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	var req struct {
		NextStatus string `json:"next_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.agreementSvc.Transition(r.Context(), agreement.TransitionParams{
		AgreementID: chi.URLParam(r, "id"),
		ActorID:     actorID,
		NextStatus:  agreement.Status(req.NextStatus),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     chi.URLParam(r, "id"),
		"status": req.NextStatus,
	})
}

func (h *Handlers) GetTotalPaid(w http.ResponseWriter, r *http.Request) {
	total, err := h.agreementSvc.GetTotalPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agreement_id": chi.URLParam(r, "id"),
		"total_paid":   total,
	})
}

// --- payments ---

func (h *Handlers) PayRent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Asset  string `json:"asset"`
		Amount int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.paymentSvc.PayRent(r.Context(), payment.PayRentParams{
		AgreementID: chi.URLParam(r, "id"),
		Asset:       req.Asset,
		Amount:      req.Amount,
		BearerToken: bearerToken(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, paymentJSON(rec))
}

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	rec, err := h.paymentSvc.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentJSON(rec))
}

func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	records, err := h.paymentSvc.ListByAgreement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, paymentJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out, "count": len(out)})
}

// --- disputes ---

func (h *Handlers) OpenDispute(w http.ResponseWriter, r *http.Request) {
	openedBy, _, err := h.authSvc.VerifyToken(bearerToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.disputeSvc.Open(r.Context(), chi.URLParam(r, "id"), openedBy, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, disputeJSON(rec))
}

func (h *Handlers) ListDisputes(w http.ResponseWriter, r *http.Request) {
	records, err := h.disputeSvc.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, disputeJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"disputes": out, "count": len(out)})
}

func (h *Handlers) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.authSvc.VerifyToken(bearerToken(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	rec, err := h.disputeSvc.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, disputeJSON(rec))
}

// --- profiles ---

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profileSvc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}

	profiles, err := h.profileSvc.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles, "count": len(profiles)})
}

// --- response shaping ---

func agreementJSON(ag agreement.Agreement) map[string]any {
	out := map[string]any{
		"id":               ag.ID,
		"landlord_id":      ag.LandlordID,
		"tenant_id":        ag.TenantID,
		"monthly_rent":     ag.MonthlyRent,
		"security_deposit": ag.SecurityDeposit,
		"start_date":       ag.StartDate,
		"end_date":         ag.EndDate,
		"commission_bps":   ag.CommissionBps,
		"status":           ag.Status,
		"total_rent_paid":  ag.TotalRentPaid,
		"payment_count":    ag.PaymentCount,
	}
	if ag.AgentID != nil {
		out["agent_id"] = *ag.AgentID
	}
	return out
}

func paymentJSON(rec payment.Record) map[string]any {
	return map[string]any{
		"id":              rec.ID,
		"agreement_id":    rec.AgreementID,
		"seq":             rec.Seq,
		"amount":          rec.Amount,
		"landlord_amount": rec.LandlordAmount,
		"agent_amount":    rec.AgentAmount,
		"asset":           rec.Asset,
		"payer_id":        rec.PayerID,
		"paid_at":         rec.PaidAt,
	}
}

func disputeJSON(rec dispute.Record) map[string]any {
	return map[string]any{
		"id":           rec.ID,
		"agreement_id": rec.AgreementID,
		"opened_by":    rec.OpenedBy,
		"reason":       rec.Reason,
		"status":       rec.Status,
		"created_at":   rec.CreatedAt,
	}
}
