package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/clinicagenda/agenda/libs/httpx"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/model"
	"github.com/clinicagenda/agenda/services/agenda-service/internal/readstate"
)

type FeedSource interface {
	Notifications(ctx context.Context, professionalID string) ([]model.DerivedNotification, error)
	MarkAllRead(ctx context.Context, professionalID string) (int, error)
}

// PresenceTracker records that a client is looking at a professional's feed.
type PresenceTracker interface {
	Touch(professionalID string)
}

type NotificationHandler struct {
	feed     FeedSource
	read     readstate.Store
	presence PresenceTracker
	logger   *slog.Logger
}

func NewNotificationHandler(feed FeedSource, read readstate.Store, presence PresenceTracker, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{feed: feed, read: read, presence: presence, logger: logger}
}

type feedResponse struct {
	Notifications []model.DerivedNotification `json:"notifications"`
	Unread        int                         `json:"unread"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	if h.presence != nil {
		h.presence.Touch(professionalID)
	}

	ns, err := h.feed.Notifications(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("notification feed failed", "professional_id", professionalID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to derive notifications", nil)
		return
	}
	resp := feedResponse{Notifications: ns}
	if resp.Notifications == nil {
		resp.Notifications = []model.DerivedNotification{}
	}
	for _, n := range ns {
		if !n.Read {
			resp.Unread++
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type markReadRequest struct {
	IDs []model.NotificationID `json:"ids"`
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	var req markReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "ids required", nil)
		return
	}

	n, err := h.read.MarkManyRead(r.Context(), professionalID, req.IDs)
	if err != nil {
		h.logger.Error("mark read failed", "professional_id", professionalID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to mark read", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	n, err := h.feed.MarkAllRead(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("mark all read failed", "professional_id", professionalID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to mark read", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	professionalID, ok := requireProfessional(w, r)
	if !ok {
		return
	}
	n, err := h.read.Clear(r.Context(), professionalID)
	if err != nil {
		h.logger.Error("clear read-state failed", "professional_id", professionalID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to clear", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"cleared": n})
}
