package api

import (
	"net/http"
	"time"

	"github.com/billbatista/acasinha-events/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type expenseRequest struct {
	PayerID     uuid.UUID       `json:"payer_id"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	AffectedIDs []uuid.UUID     `json:"affected_ids"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

func (req expenseRequest) params() ledger.ExpenseParams {
	return ledger.ExpenseParams{
		PayerID:     req.PayerID,
		Currency:    req.Currency,
		Amount:      req.Amount,
		AffectedIDs: req.AffectedIDs,
		Date:        req.Date,
		Description: req.Description,
	}
}

type expenseView struct {
	ledger.Expense
	Formatted string `json:"formatted"`
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	book, ok := h.readableBook(w, r)
	if !ok {
		return
	}

	conv := book.Converter()
	expenses := book.Expenses()
	views := make([]expenseView, 0, len(expenses))
	for i := len(expenses) - 1; i >= 0; i-- {
		e := expenses[i]
		formatted, err := conv.FormatWithBase(e.Amount, e.Currency)
		if err != nil {
			writeError(w, r, err)
			return
		}
		views = append(views, expenseView{Expense: e, Formatted: formatted})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) addExpense(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req expenseRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, _ := actor(r)
	expense, err := h.ledger.AddExpense(r.Context(), eventID, req.params(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := pathID(w, r, "expenseID")
	if !ok {
		return
	}
	var req expenseRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, _ := actor(r)
	expense, err := h.ledger.UpdateExpense(r.Context(), expenseID, req.params(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (h *Handler) removeExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := pathID(w, r, "expenseID")
	if !ok {
		return
	}
	a, _ := actor(r)
	if err := h.ledger.RemoveExpense(r.Context(), expenseID, a); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settlementRequest struct {
	SenderID    uuid.UUID       `json:"sender_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

func (req settlementRequest) params() ledger.SettlementParams {
	return ledger.SettlementParams{
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		Currency:    req.Currency,
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
	}
}

type settlementView struct {
	ledger.Settlement
	Formatted string `json:"formatted"`
}

// listSettlements returns confirmed settlements, newest first. Drafts are
// part of the balance view.
func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	book, ok := h.readableBook(w, r)
	if !ok {
		return
	}

	conv := book.Converter()
	settlements := book.Settlements()
	views := make([]settlementView, 0, len(settlements))
	for i := len(settlements) - 1; i >= 0; i-- {
		s := settlements[i]
		if s.Draft {
			continue
		}
		formatted, err := conv.FormatWithBase(s.Amount, s.Currency)
		if err != nil {
			writeError(w, r, err)
			return
		}
		views = append(views, settlementView{Settlement: s, Formatted: formatted})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) addSettlement(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req settlementRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, _ := actor(r)
	st, err := h.ledger.AddSettlement(r.Context(), eventID, req.params(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) updateSettlement(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := pathID(w, r, "settlementID")
	if !ok {
		return
	}
	var req settlementRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, _ := actor(r)
	st, err := h.ledger.UpdateSettlement(r.Context(), settlementID, req.params(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) removeSettlement(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := pathID(w, r, "settlementID")
	if !ok {
		return
	}
	a, _ := actor(r)
	if err := h.ledger.RemoveSettlement(r.Context(), settlementID, a); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirmSettlement(w http.ResponseWriter, r *http.Request) {
	settlementID, ok := pathID(w, r, "settlementID")
	if !ok {
		return
	}
	a, _ := actor(r)
	st, err := h.ledger.ConfirmSettlement(r.Context(), settlementID, a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
