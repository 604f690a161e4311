package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/billbatista/acasinha-events/eventlogger"
	"github.com/billbatista/acasinha-events/middleware"
	"github.com/billbatista/acasinha-events/session"
	"github.com/billbatista/acasinha-events/user"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Locale   string `json:"locale"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	registered, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password, req.Locale)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.audit.Log(eventlogger.NewEvent(
		eventlogger.WithType("user.registered"),
		eventlogger.WithData(map[string]string{
			"user_id":  registered.ID.String(),
			"username": registered.Username,
		}),
	))

	writeJSON(w, http.StatusCreated, registered)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userdb, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if userdb == nil || user.CheckPassword(userdb.PasswordHash, req.Password) != nil {
		writeMessage(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	sess, err := h.sessions.Create(ctx, userdb.ID)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.audit.Log(eventlogger.NewEvent(
		eventlogger.WithType("user.logged_in"),
		eventlogger.WithData(map[string]string{
			"user_id":    userdb.ID.String(),
			"session_id": sess.ID.String(),
		}),
	))

	writeJSON(w, http.StatusCreated, tokenResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionToken(r.Context()); ok {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   session.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
