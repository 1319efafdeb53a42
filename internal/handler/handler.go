package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/Dan9191/card-ledger/internal/middleware"
	"github.com/Dan9191/card-ledger/internal/service"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type Handler struct {
	gw        *service.Gateway
	log       *logrus.Logger
	startedAt time.Time
	now       func() time.Time
}

func NewHandler(gw *service.Gateway, log *logrus.Logger) *Handler {
	return &Handler{gw: gw, log: log, startedAt: time.Now(), now: time.Now}
}

// Health reports liveness; it is the only unauthenticated route.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

// respondError maps err to a status and a client-safe message. Causes of
// server-side failures are logged and never sent.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := code.HTTPStatus()
	fields := logrus.Fields{
		"request_id": r.Header.Get(middleware.RequestIDHeader),
		"code":       code,
		"path":       r.URL.Path,
	}
	switch {
	case status >= http.StatusInternalServerError:
		h.log.WithError(err).WithFields(fields).Error("Request failed")
	case errors.Is(err, errs.ErrForbidden), errors.Is(err, errs.ErrUnauthorized):
		h.log.WithFields(fields).Warn("Access denied")
	}
	h.respondJSON(w, status, map[string]string{"error": errs.MessageOf(err)})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		h.respondError(w, r, errs.New(errs.CodeUnauthorized, "authentication required"))
	}
	return p, ok
}
