package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/billbatista/acasinha-events/currency"
	"github.com/billbatista/acasinha-events/eventlogger"
	"github.com/billbatista/acasinha-events/ledger"
	"github.com/billbatista/acasinha-events/lock"
	"github.com/billbatista/acasinha-events/session"
	"github.com/billbatista/acasinha-events/user"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router http.Handler
	audit  *eventlogger.MemoryLogger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithRegistryAdmin(t, "admin")
}

func newTestServerWithRegistryAdmin(t *testing.T, registryAdmin string) *testServer {
	t.Helper()

	registry := currency.NewMemoryRegistry(currency.Defaults()...)
	audit := eventlogger.NewMemoryLogger()
	svc := ledger.NewService(ledger.NewMemoryStore(), registry, lock.NewKeyedMutex(), audit)
	h := New(svc, user.NewMemoryRepository(), session.NewMemoryRepository(time.Hour), registry, audit, registryAdmin)

	router := chi.NewRouter()
	router.Mount("/api", h.Routes())
	return &testServer{router: router, audit: audit}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type account struct {
	ID    string
	Token string
}

func (s *testServer) signup(t *testing.T, username string) account {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var u struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))

	rec = s.do(t, http.MethodPost, "/api/tokens", "", map[string]string{"username": username, "password": "secret"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	return account{ID: u.ID, Token: tok.Token}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/tokens", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")

	rec := s.do(t, http.MethodDelete, "/api/tokens", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/events", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEventLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")
	carol := s.signup(t, "carol")

	rec := s.do(t, http.MethodPost, "/api/events", alice.Token, map[string]any{
		"name":          "Ski weekend",
		"base_currency": "CHF",
		"exchange_fee":  "2",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	event := decodeBody[struct {
		ID string `json:"id"`
	}](t, rec)
	base := "/api/events/" + event.ID

	rec = s.do(t, http.MethodPost, base+"/participants", alice.Token, map[string]any{"username": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, base+"/participants", bob.Token, map[string]any{"username": "carol"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/participants", alice.Token, map[string]any{"username": "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, base, carol.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "outsiders can't read the event")

	rec = s.do(t, http.MethodPost, base+"/currencies", alice.Token, map[string]any{"code": "usd"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/expenses", alice.Token, map[string]any{
		"currency":     "USD",
		"amount":       "100",
		"affected_ids": []string{bob.ID},
		"description":  "lift passes",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, base+"/expenses", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	expenses := decodeBody[[]struct {
		Formatted string `json:"formatted"`
	}](t, rec)
	require.Len(t, expenses, 1)
	assert.Equal(t, "USD 100.00 (CHF 113.33)", expenses[0].Formatted)

	rec = s.do(t, http.MethodGet, base+"/balance", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	balance := decodeBody[struct {
		Balances []struct {
			ParticipantID string `json:"participant_id"`
			Formatted     string `json:"formatted"`
		} `json:"balances"`
		Drafts []struct {
			ID       string `json:"id"`
			SenderID string `json:"sender_id"`
			Amount   string `json:"amount"`
		} `json:"drafts"`
		TotalExpensesFormatted string `json:"total_expenses_formatted"`
	}](t, rec)
	assert.Equal(t, "CHF 113.33", balance.TotalExpensesFormatted)
	require.Len(t, balance.Balances, 2)
	assert.Equal(t, "CHF -113.33", balance.Balances[1].Formatted)
	require.Len(t, balance.Drafts, 1)
	assert.Equal(t, bob.ID, balance.Drafts[0].SenderID)
	assert.Equal(t, "113.33", balance.Drafts[0].Amount)
	draft := "/api/settlements/" + balance.Drafts[0].ID

	rec = s.do(t, http.MethodPost, base+"/close", alice.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "open drafts block closing")

	rec = s.do(t, http.MethodDelete, draft, alice.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, draft+"/confirm", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPost, draft+"/confirm", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, draft+"/confirm", alice.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/settlements", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	rec = s.do(t, http.MethodPost, base+"/close", alice.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/expenses", bob.Token, map[string]any{
		"currency": "CHF", "amount": "5", "affected_ids": []string{bob.ID},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/reopen", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/convert", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, base+"/currencies/USD", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/events", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	recorded, err := s.audit.GetByType(context.Background(), ledger.SettlementConfirmed)
	require.NoError(t, err)
	assert.Len(t, recorded, 1)
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/events", alice.Token, map[string]any{"name": "", "base_currency": "CHF"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/events", alice.Token, map[string]any{"name": "x", "base_currency": "XXX"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/events/not-a-uuid", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/events", alice.Token, map[string]any{"unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrencyRegistry(t *testing.T) {
	s := newTestServer(t)
	admin := s.signup(t, "admin")
	bob := s.signup(t, "bob")

	body := map[string]any{"name": "Pound Sterling", "number": 826, "exponent": 2, "rate": "0.85", "source": "feed"}

	rec := s.do(t, http.MethodPut, "/api/currencies/gbp", bob.Token, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/currencies/gbp", admin.Token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body["rate"] = "-1"
	rec = s.do(t, http.MethodPut, "/api/currencies/gbp", admin.Token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/currencies", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 4)
}

func TestCurrencyRegistryAdminIsConfigurable(t *testing.T) {
	body := map[string]any{"name": "Pound Sterling", "number": 826, "exponent": 2, "rate": "0.85"}

	t.Run("configured user edits, admin does not", func(t *testing.T) {
		s := newTestServerWithRegistryAdmin(t, "treasurer")
		admin := s.signup(t, "admin")
		treasurer := s.signup(t, "treasurer")

		rec := s.do(t, http.MethodPut, "/api/currencies/GBP", admin.Token, body)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(t, http.MethodPut, "/api/currencies/GBP", treasurer.Token, body)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("empty disables edits", func(t *testing.T) {
		s := newTestServerWithRegistryAdmin(t, "")
		admin := s.signup(t, "admin")

		rec := s.do(t, http.MethodPut, "/api/currencies/GBP", admin.Token, body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrNotFound, http.StatusNotFound},
		{ledger.ErrForbidden, http.StatusForbidden},
		{ledger.ErrOpenDrafts, http.StatusConflict},
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{ledger.ErrAmountPrecision, http.StatusBadRequest},
		{ledger.ErrCurrencyNotInEvent, http.StatusInternalServerError},
		{ledger.ErrUnknownParticipant, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
