package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type UserHandler struct {
	users *services.UserService
	log   *zap.Logger
}

func NewUserHandler(users *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: logger}
}

// Profile serves both /api/profile and /api/user. The user is re-read by
// the auth middleware, so the unread count is current.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var in services.ProfileUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.users.UpdateProfile(r.Context(), user.ID, in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Create is the admin variant of registration: the role can be chosen.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateUserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Profile())
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	id := mux.Vars(r)["id"]
	if err := h.users.Delete(r.Context(), actor, id); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted", "id": id})
}
