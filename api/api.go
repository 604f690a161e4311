// Package api exposes the ledger over a JSON HTTP interface.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/billbatista/acasinha-events/currency"
	"github.com/billbatista/acasinha-events/eventlogger"
	"github.com/billbatista/acasinha-events/ledger"
	"github.com/billbatista/acasinha-events/middleware"
	"github.com/billbatista/acasinha-events/session"
	"github.com/billbatista/acasinha-events/user"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	ledger     *ledger.Service
	users      user.Repository
	sessions   session.Repository
	currencies currency.Registry
	audit      eventlogger.Logger

	// registryAdmin is the only username allowed to edit the currency
	// registry. Empty disables registry edits.
	registryAdmin string
}

func New(svc *ledger.Service, users user.Repository, sessions session.Repository, currencies currency.Registry, audit eventlogger.Logger, registryAdmin string) *Handler {
	return &Handler{
		ledger:        svc,
		users:         users,
		sessions:      sessions,
		currencies:    currencies,
		audit:         audit,
		registryAdmin: registryAdmin,
	}
}

// Routes returns the API router. Mount it under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.AuthMiddleware(h.sessions, h.users))

	r.Post("/users", h.register)
	r.Post("/tokens", h.login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Delete("/tokens", h.logout)
		r.Get("/currencies", h.listCurrencies)
		r.Put("/currencies/{code}", h.putCurrency)

		r.Get("/events", h.listEvents)
		r.Post("/events", h.createEvent)
		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Get("/", h.getEvent)
			r.Put("/", h.updateEvent)
			r.Post("/close", h.eventCommand(h.ledger.CloseEvent))
			r.Post("/reopen", h.eventCommand(h.ledger.ReopenEvent))
			r.Post("/convert", h.eventCommand(h.ledger.ConvertEventToBaseCurrency))
			r.Get("/balance", h.balance)
			r.Post("/reminders", h.reminders)

			r.Post("/currencies", h.addCurrency)
			r.Delete("/currencies/{code}", h.removeCurrency)

			r.Post("/participants", h.addParticipant)
			r.Put("/participants/{userID}", h.setWeighting)
			r.Delete("/participants/{userID}", h.removeParticipant)

			r.Get("/expenses", h.listExpenses)
			r.Post("/expenses", h.addExpense)
			r.Get("/settlements", h.listSettlements)
			r.Post("/settlements", h.addSettlement)
		})

		r.Put("/expenses/{expenseID}", h.updateExpense)
		r.Delete("/expenses/{expenseID}", h.removeExpense)
		r.Put("/settlements/{settlementID}", h.updateSettlement)
		r.Delete("/settlements/{settlementID}", h.removeSettlement)
		r.Post("/settlements/{settlementID}/confirm", h.confirmSettlement)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func statusFor(err error) int {
	switch {
	case ledger.IsInvariant(err):
		return http.StatusInternalServerError
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, currency.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrEventClosed),
		errors.Is(err, ledger.ErrOpenDrafts),
		errors.Is(err, ledger.ErrAlreadyConfirmed),
		errors.Is(err, ledger.ErrDraftSettlement),
		errors.Is(err, ledger.ErrParticipantInUse),
		errors.Is(err, ledger.ErrCurrencyInUse),
		errors.Is(err, ledger.ErrAlreadyParticipant),
		errors.Is(err, user.ErrUsernameExists),
		errors.Is(err, user.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrEmptyName),
		errors.Is(err, ledger.ErrEmptyCurrency),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidFee),
		errors.Is(err, ledger.ErrInvalidWeighting),
		errors.Is(err, ledger.ErrNoAffected),
		errors.Is(err, ledger.ErrSelfSettlement),
		errors.Is(err, ledger.ErrMissingParticipant),
		errors.Is(err, ledger.ErrCurrencyNotAllowed),
		errors.Is(err, ledger.ErrAmountPrecision),
		errors.Is(err, ledger.ErrNotParticipant),
		errors.Is(err, currency.ErrInvalidCode),
		errors.Is(err, currency.ErrInvalidExponent),
		errors.Is(err, currency.ErrInvalidRate),
		errors.Is(err, currency.ErrInvalidSource),
		errors.Is(err, user.ErrInvalidUsername),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrBlankPassword):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		writeMessage(w, status, "internal server error")
		return
	}
	writeMessage(w, status, err.Error())
}

func actor(r *http.Request) (ledger.Actor, *user.User) {
	u, _ := middleware.GetUser(r.Context())
	return ledger.Actor{ID: u.ID, Name: u.Username}, u
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// readableBook loads an event for a user who participates in it or administers it.
func (h *Handler) readableBook(w http.ResponseWriter, r *http.Request) (*ledger.Book, bool) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return nil, false
	}

	book, err := h.ledger.Book(r.Context(), eventID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}

	a, _ := actor(r)
	if !book.IsParticipant(a.ID) && book.Event.AdminID != a.ID {
		writeError(w, r, ledger.ErrForbidden)
		return nil, false
	}
	return book, true
}
