package handlers

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/go-chi/chi/v5"
)

type RuleHandler struct {
	engine *service.Engine
}

func NewRuleHandler(engine *service.Engine) *RuleHandler {
	return &RuleHandler{engine: engine}
}

type ruleListResponse struct {
	Rules []domain.Rule `json:"rules"`
	Count int           `json:"count"`
}

// Create accepts a rule in the same shape as a rules file entry.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.RuleSpec
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Pattern == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "pattern and action are required")
		return
	}

	rule, err := req.Rule()
	if err != nil {
		writeServiceError(w, err, "failed to parse rule")
		return
	}
	created, err := h.engine.AddRule(rule)
	if err != nil {
		writeServiceError(w, err, "failed to create rule")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	rules := h.engine.Rules().Filter(func(rule domain.Rule) bool {
		return source == "" || rule.Metadata.Source == source
	})
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Metadata.Priority != rules[j].Metadata.Priority {
			return rules[i].Metadata.Priority > rules[j].Metadata.Priority
		}
		return rules[i].ID < rules[j].ID
	})
	writeJSON(w, http.StatusOK, ruleListResponse{Rules: rules, Count: len(rules)})
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteRule(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
