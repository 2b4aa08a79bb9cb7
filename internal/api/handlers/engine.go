package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/go-chi/chi/v5"
)

type EngineHandler struct {
	engine *service.Engine
}

func NewEngineHandler(engine *service.Engine) *EngineHandler {
	return &EngineHandler{engine: engine}
}

type stepResponse struct {
	Dispatched int                   `json:"dispatched"`
	Status     service.EngineStatus `json:"status"`
}

type respondRequest struct {
	Text string `json:"text"`
}

func (h *EngineHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(); err != nil {
		writeServiceError(w, err, "failed to start engine")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Status())
}

func (h *EngineHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.engine.Pause()
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// Step runs one scheduling step and waits for it. The step is detached from
// the request so a disconnecting client does not requeue its attempts.
func (h *EngineHandler) Step(w http.ResponseWriter, r *http.Request) {
	n := h.engine.Step(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, stepResponse{Dispatched: n, Status: h.engine.Status()})
}

func (h *EngineHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

func (h *EngineHandler) PauseTask(w http.ResponseWriter, r *http.Request) {
	h.setTask(w, r, h.engine.PauseTask)
}

func (h *EngineHandler) ResumeTask(w http.ResponseWriter, r *http.Request) {
	h.setTask(w, r, h.engine.ResumeTask)
}

func (h *EngineHandler) setTask(w http.ResponseWriter, r *http.Request, fn func(string) (domain.Thought, error)) {
	root, err := fn(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, root)
}

// Respond answers a pending USER_PROMPT thought.
func (h *EngineHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if !h.engine.HandlePromptResponse(chi.URLParam(r, "id"), req.Text) {
		writeError(w, http.StatusNotFound, "no pending prompt with that id")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
