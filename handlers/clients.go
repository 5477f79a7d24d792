package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ClientHandler struct {
	clients *services.ClientService
	log     *zap.Logger
}

func NewClientHandler(clients *services.ClientService, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{clients: clients, log: logger}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.clients.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var in services.CreateClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.clients.Create(r.Context(), actor, in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.clients.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// Delete is only routed under /api/admin.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	id := mux.Vars(r)["id"]
	if err := h.clients.Delete(r.Context(), actor, id); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "client deleted", "id": id})
}
