package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepshare/prepshare-go/internal/engine"
	"github.com/prepshare/prepshare-go/internal/store"
)

// NotificationsHandler exposes the caller's notification feed.
type NotificationsHandler struct {
	notifications *engine.Notifications
}

func NewNotificationsHandler(notifications *engine.Notifications) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List handles GET /api/notifications, newest first.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	notifications, err := h.notifications.List(r.Context(), user.ID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]*store.Notification{"notifications": notifications})
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// MarkRead handles POST /api/notifications/{notificationID}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), user.ID, chi.URLParam(r, "notificationID")); err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	marked, err := h.notifications.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"marked": marked})
}

// Delete handles DELETE /api/notifications/{notificationID}.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := RequireUser(w, r)
	if !ok {
		return
	}
	if err := h.notifications.Delete(r.Context(), user.ID, chi.URLParam(r, "notificationID")); err != nil {
		WriteEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
