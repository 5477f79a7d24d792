package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	log           *zap.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: logger}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	list, err := h.notifications.List(r.Context(), actor.ID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	n, err := h.notifications.MarkRead(r.Context(), actor.ID, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	changed, err := h.notifications.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": changed})
}
