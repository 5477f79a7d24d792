package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type TaskHandler struct {
	tasks *services.TaskService
	log   *zap.Logger
}

func NewTaskHandler(tasks *services.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, log: logger}
}

type assignRequest struct {
	UserIDs []string `json:"userIds"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.List(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var in services.CreateTaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Create(r.Context(), actor, in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var in services.UpdateTaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Update(r.Context(), actor, mux.Vars(r)["id"], in)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	id := mux.Vars(r)["id"]
	if err := h.tasks.Delete(r.Context(), actor, id); err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted", "id": id})
}

// Move handles PATCH /api/tasks/{id}/status from the kanban board
func (h *TaskHandler) Move(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var req struct {
		Status database.TaskStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.MoveTask(r.Context(), actor, mux.Vars(r)["id"], req.Status)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var req assignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Assign(r.Context(), actor, mux.Vars(r)["id"], req.UserIDs)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentActor(r)

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.tasks.AddComment(r.Context(), actor, mux.Vars(r)["id"], req.Text)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *TaskHandler) Enhanced(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.Enhanced(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.tasks.Analytics(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.tasks.Calendar(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
