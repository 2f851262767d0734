package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/guardwatch/guardwatch/internal/countdown"
	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/guard"
	apimw "github.com/guardwatch/guardwatch/internal/httpapi/middleware"
	"github.com/guardwatch/guardwatch/internal/protocol"
	"github.com/guardwatch/guardwatch/internal/repo"
)

type Server struct {
	Logger  *zap.Logger
	Alerts  repo.AlertStore
	Users   repo.UserStore
	Machine *protocol.Machine
	Engine  *countdown.Engine
}

func NewServer(l *zap.Logger, alerts repo.AlertStore, users repo.UserStore, m *protocol.Machine, e *countdown.Engine) *Server {
	return &Server{Logger: l, Alerts: alerts, Users: users, Machine: m, Engine: e}
}

func (s *Server) Router(keys apimw.Keys, deviceRPM, deviceBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(deviceRPM, deviceBurst))
		r.Use(apimw.RequireDevice(keys))

		r.Post("/api/alerts", s.handleCreateAlert)
		r.Get("/api/alerts/{id}", s.handleGetAlert)
		r.Post("/api/alerts/{id}/confirm", s.handleConfirm)
		r.Post("/api/alerts/{id}/cancel", s.handleCancel)
		r.Post("/api/alerts/{id}/expire", s.handleExpire)
		r.Get("/api/alerts/{id}/confirmation/{guardianEmail}", s.handleGetConfirmation)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Use(apimw.RequireAdmin(keys))

		r.Put("/api/users/{id}/cancel-password", s.handleSetCancelPassword)
	})

	return r
}

// ---- payloads ----

type createAlertPayload struct {
	UserID    string         `json:"user_id"`
	Trigger   domain.Trigger `json:"trigger"`
	Latitude  *float64       `json:"latitude,omitempty"`
	Longitude *float64       `json:"longitude,omitempty"`
	Accuracy  *float64       `json:"accuracy,omitempty"`
}

type confirmPayload struct {
	GuardianEmail string `json:"guardian_email"`
}

type cancelPayload struct {
	GuardianEmail string `json:"guardian_email"`
	Password      string `json:"password"`
}

type passwordPayload struct {
	Password string `json:"password"`
}

// confirmationView is what devices render: the record plus the server's own
// recomputation of the window, so clients never do deadline math from a
// local timer origin.
type confirmationView struct {
	Confirmation *domain.Confirmation `json:"confirmation"`
	RemainingMS  int64                `json:"remaining_ms"`
	Tier         countdown.Tier       `json:"tier"`
}

func (s *Server) view(c *domain.Confirmation) confirmationView {
	v := confirmationView{Confirmation: c}
	if c.Status == domain.StatusConfirmed {
		snap := s.Engine.Snapshot(c.CreatedAt)
		v.RemainingMS = snap.Remaining.Milliseconds()
		v.Tier = snap.Tier
	}
	return v
}

// ---- handlers ----

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var p createAlertPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.UserID == "" {
		badRequest(w)
		return
	}
	if p.Trigger != domain.TriggerManual && p.Trigger != domain.TriggerVoice {
		badRequest(w)
		return
	}

	a := &domain.Alert{
		UserID:    p.UserID,
		Trigger:   p.Trigger,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Accuracy:  p.Accuracy,
	}
	if err := s.Alerts.Add(r.Context(), a); err != nil {
		s.writeErr(w, err)
		return
	}

	s.Logger.Info("alert_created",
		zap.String("alert_id", string(a.ID)),
		zap.String("user_id", a.UserID),
		zap.String("trigger", string(a.Trigger)),
	)
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := domain.AlertID(chi.URLParam(r, "id"))
	a, err := s.Alerts.Get(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if a == nil {
		s.writeErr(w, domain.ErrAlertNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := domain.AlertID(chi.URLParam(r, "id"))
	var p confirmPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.GuardianEmail == "" {
		badRequest(w)
		return
	}

	c, err := s.Machine.Confirm(r.Context(), id, p.GuardianEmail)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(c))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := domain.AlertID(chi.URLParam(r, "id"))
	var p cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.GuardianEmail == "" {
		badRequest(w)
		return
	}

	c, err := s.Machine.Cancel(r.Context(), id, p.GuardianEmail, p.Password)
	if err != nil {
		s.writeErrWith(w, err, c)
		return
	}
	writeJSON(w, http.StatusOK, s.view(c))
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	id := domain.AlertID(chi.URLParam(r, "id"))
	var p confirmPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.GuardianEmail == "" {
		badRequest(w)
		return
	}

	c, err := s.Machine.Expire(r.Context(), id, p.GuardianEmail)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(c))
}

func (s *Server) handleGetConfirmation(w http.ResponseWriter, r *http.Request) {
	id := domain.AlertID(chi.URLParam(r, "id"))
	email := chi.URLParam(r, "guardianEmail")

	c, err := s.Machine.Status(r.Context(), id, email)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(c))
}

func (s *Server) handleSetCancelPassword(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	var p passwordPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Password == "" {
		badRequest(w)
		return
	}

	hash, err := guard.Hash(p.Password)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.Users.SetCancelPassword(r.Context(), userID, hash); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- error mapping ----

// kindOf maps protocol errors onto the wire taxonomy. Each rejection keeps
// its specific reason: a user retyping a password needs a different hint
// than one whose window already closed.
func kindOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAlertNotFound):
		return http.StatusNotFound, "alert_not_found"
	case errors.Is(err, domain.ErrBadPassword):
		return http.StatusForbidden, "bad_password"
	case errors.Is(err, domain.ErrNoPasswordConfigured):
		return http.StatusForbidden, "no_password_configured"
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return http.StatusConflict, "already_terminal"
	case errors.Is(err, domain.ErrWindowExpired):
		return http.StatusConflict, "window_expired"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	s.writeErrWith(w, err, nil)
}

func (s *Server) writeErrWith(w http.ResponseWriter, err error, c *domain.Confirmation) {
	code, kind := kindOf(err)
	if code == http.StatusInternalServerError {
		s.Logger.Error("request_failed", zap.Error(err))
	}
	body := map[string]any{"error": kind}
	if c != nil {
		body["confirmation"] = c
	}
	writeJSON(w, code, body)
}

func badRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_payload"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
