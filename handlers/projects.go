package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projects *services.ProjectService
	log      *zap.Logger
}

func NewProjectHandler(projects *services.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, log: logger}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var in services.CreateProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Create(r.Context(), actor, in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var in services.UpdateProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Update(r.Context(), actor, mux.Vars(r)["id"], in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	id := mux.Vars(r)["id"]
	if err := h.projects.Delete(r.Context(), actor, id); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "project deleted", "id": id})
}

func (h *ProjectHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var req assignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projects.Assign(r.Context(), actor, mux.Vars(r)["id"], req.UserIDs)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}
