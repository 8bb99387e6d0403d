package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	authSvc AuthService,
	protocolSvc ProtocolService,
	agreementSvc AgreementService,
	paymentSvc PaymentService,
	disputeSvc DisputeService,
	profileSvc ProfileService,
) http.Handler {
	h := &Handlers{
		authSvc:      authSvc,
		protocolSvc:  protocolSvc,
		agreementSvc: agreementSvc,
		paymentSvc:   paymentSvc,
		disputeSvc:   disputeSvc,
		profileSvc:   profileSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Auth.
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Protocol.
		r.Post("/protocol/initialize", h.InitializeProtocol)
		r.Get("/protocol/counters", h.ProtocolCounters)
		r.Get("/version", h.Version)

		// Agreements.
		r.Post("/agreements", h.CreateAgreement)
		r.Get("/agreements/{id}", h.GetAgreement)
		r.Post("/agreements/{id}/status", h.TransitionAgreement)
		r.Get("/agreements/{id}/total-paid", h.GetTotalPaid)

		// Payments.
		r.Post("/agreements/{id}/payments", h.PayRent)
		r.Get("/agreements/{id}/payments", h.ListPayments)
		r.Get("/payments/{id}", h.GetPayment)

		// Disputes.
		r.Post("/agreements/{id}/disputes", h.OpenDispute)
		r.Get("/agreements/{id}/disputes", h.ListDisputes)
		r.Post("/disputes/{id}/resolve", h.ResolveDispute)

		// Profiles.
		r.Get("/profiles", h.ListProfiles)
		r.Get("/profiles/{id}", h.GetProfile)
	})

	return r
}
