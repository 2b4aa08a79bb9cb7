package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/service"
)

type MemoryHandler struct {
	svc service.MemoryBackend
}

// NewMemoryHandler accepts a nil backend; every request then reports that
// long-term memory is not configured.
func NewMemoryHandler(svc service.MemoryBackend) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

type createMemoryRequest struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type searchResponse struct {
	Results []domain.MemorySearchResult `json:"results"`
	Query   string                      `json:"query"`
	Count   int                         `json:"count"`
}

func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeServiceError(w, service.ErrMemoryUnavailable, "")
		return
	}

	var req createMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.Add(r.Context(), domain.MemoryEntry{Content: req.Content, Metadata: req.Metadata})
	if err != nil {
		writeServiceError(w, err, "failed to store memory")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "stored"})
}

func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeServiceError(w, service.ErrMemoryUnavailable, "")
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "k must be between 1 and 100")
			return
		}
		k = n
	}

	results, err := h.svc.Search(r.Context(), query, k)
	if err != nil {
		writeServiceError(w, err, "failed to search memory")
		return
	}
	if results == nil {
		results = []domain.MemorySearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Query: query, Count: len(results)})
}
