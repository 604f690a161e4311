package api

import (
	"net/http"

	"github.com/billbatista/acasinha-events/currency"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) listCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.currencies.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, currencies)
}

type currencyRequest struct {
	Name        string          `json:"name"`
	Number      int             `json:"number"`
	Exponent    int32           `json:"exponent"`
	Rate        decimal.Decimal `json:"rate"`
	Source      currency.Source `json:"source"`
	Description string          `json:"description"`
}

// putCurrency creates or replaces a registry entry. Event snapshots keep
// their pinned rates.
func (h *Handler) putCurrency(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	if h.registryAdmin == "" || a.Name != h.registryAdmin {
		writeMessage(w, http.StatusForbidden, "only the administrator can edit currencies")
		return
	}

	var req currencyRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := currency.New(chi.URLParam(r, "code"), req.Name, req.Number, req.Exponent, req.Rate, req.Source, a.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c.Description = req.Description

	if existing, err := h.currencies.Get(r.Context(), c.Code); err == nil {
		c.CreatedAt = existing.CreatedAt
		c.CreatedBy = existing.CreatedBy
	}
	if err := h.currencies.Upsert(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
