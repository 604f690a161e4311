package api

import (
	"context"
	"net/http"
	"time"

	"github.com/billbatista/acasinha-events/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type eventRequest struct {
	Name         string          `json:"name"`
	Date         time.Time       `json:"date"`
	AdminID      uuid.UUID       `json:"admin_id"`
	AccountantID uuid.UUID       `json:"accountant_id"`
	BaseCurrency string          `json:"base_currency"`
	ExchangeFee  decimal.Decimal `json:"exchange_fee"`
	Description  string          `json:"description"`
}

func (req eventRequest) params() ledger.EventParams {
	return ledger.EventParams{
		Name:         req.Name,
		Date:         req.Date,
		AdminID:      req.AdminID,
		AccountantID: req.AccountantID,
		BaseCurrency: req.BaseCurrency,
		ExchangeFee:  req.ExchangeFee,
		Description:  req.Description,
	}
}

type eventView struct {
	ledger.Event
	Currencies   []ledger.EventCurrency `json:"currencies"`
	Participants []ledger.Participant   `json:"participants"`
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	events, err := h.ledger.ListEvents(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// createEvent makes the caller the admin; the accountant defaults to the caller too.
func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	var req eventRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := req.params()
	p.AdminID = a.ID
	if p.AccountantID == uuid.Nil {
		p.AccountantID = a.ID
	} else if !h.userExists(w, r, p.AccountantID) {
		return
	}

	event, err := h.ledger.CreateEvent(r.Context(), p, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) userExists(w http.ResponseWriter, r *http.Request, id uuid.UUID) bool {
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return false
	}
	if u == nil {
		writeMessage(w, http.StatusNotFound, "user not found")
		return false
	}
	return true
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	book, ok := h.readableBook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, eventView{
		Event:        book.Event,
		Currencies:   book.Currencies(),
		Participants: book.Participants(),
	})
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req eventRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, _ := actor(r)
	event, err := h.ledger.UpdateEvent(r.Context(), eventID, req.params(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// eventCommand adapts a ledger command on one event to a 204 handler.
func (h *Handler) eventCommand(cmd func(ctx context.Context, eventID uuid.UUID, a ledger.Actor) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := pathID(w, r, "eventID")
		if !ok {
			return
		}
		a, _ := actor(r)
		if err := cmd(r.Context(), eventID, a); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type balanceRow struct {
	ledger.Balance
	Formatted string `json:"formatted"`
}

type balanceView struct {
	Event                  ledger.Event        `json:"event"`
	Balances               []balanceRow        `json:"balances"`
	Drafts                 []ledger.Settlement `json:"drafts"`
	TotalExpenses          decimal.Decimal     `json:"total_expenses"`
	TotalExpensesFormatted string              `json:"total_expenses_formatted"`
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	book, ok := h.readableBook(w, r)
	if !ok {
		return
	}

	report, err := h.ledger.GetBalance(r.Context(), book.Event.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view := balanceView{
		Event:                  report.Event,
		Balances:               make([]balanceRow, 0, len(report.Balances)),
		Drafts:                 report.Drafts,
		TotalExpenses:          report.TotalExpenses,
		TotalExpensesFormatted: report.TotalExpensesFormatted,
	}
	for _, b := range report.Balances {
		view.Balances = append(view.Balances, balanceRow{Balance: b, Formatted: report.Base.Format(b.Balance)})
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) reminders(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	a, _ := actor(r)
	reminders, err := h.ledger.Reminders(r.Context(), eventID, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

type currencyAttachRequest struct {
	Code string `json:"code"`
}

func (h *Handler) addCurrency(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req currencyAttachRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, _ := actor(r)
	ec, err := h.ledger.AddCurrency(r.Context(), eventID, req.Code, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ec)
}

func (h *Handler) removeCurrency(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	h.eventCommand(func(ctx context.Context, eventID uuid.UUID, a ledger.Actor) error {
		return h.ledger.RemoveCurrency(ctx, eventID, code, a)
	})(w, r)
}

type participantRequest struct {
	UserID    uuid.UUID       `json:"user_id"`
	Username  string          `json:"username"`
	Weighting decimal.Decimal `json:"weighting"`
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req participantRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := req.UserID
	if req.Username != "" {
		u, err := h.users.GetByUsername(r.Context(), req.Username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if u == nil {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		userID = u.ID
	} else if !h.userExists(w, r, userID) {
		return
	}

	a, _ := actor(r)
	p, err := h.ledger.AddParticipant(r.Context(), eventID, userID, req.Weighting, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) setWeighting(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	var req participantRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, _ := actor(r)
	p, err := h.ledger.SetWeighting(r.Context(), eventID, userID, req.Weighting, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) removeParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	h.eventCommand(func(ctx context.Context, eventID uuid.UUID, a ledger.Actor) error {
		return h.ledger.RemoveParticipant(ctx, eventID, userID, a)
	})(w, r)
}
