package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/go-chi/chi/v5"
)

var errTextOrContent = errors.New("text or content is required")

type ThoughtHandler struct {
	engine *service.Engine
}

func NewThoughtHandler(engine *service.Engine) *ThoughtHandler {
	return &ThoughtHandler{engine: engine}
}

// createThoughtRequest carries the content either as term syntax in Text
// ("greet(alice)"; anything that does not parse becomes a single atom) or
// as tagged JSON in Content.
type createThoughtRequest struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Content  *term.Value       `json:"content,omitempty"`
	Priority float64           `json:"priority,omitempty"`
	ParentID string            `json:"parent_id,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type thoughtListResponse struct {
	Thoughts []domain.Thought `json:"thoughts"`
	Count    int              `json:"count"`
}

type matchesResponse struct {
	Thought domain.Thought `json:"thought"`
	Matches []matchInfo    `json:"matches"`
	Action  string         `json:"action,omitempty"`
}

type matchInfo struct {
	Rule     domain.Rule       `json:"rule"`
	Bindings map[string]string `json:"bindings"`
	Action   string            `json:"action"`
}

func (h *ThoughtHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createThoughtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content, err := thoughtContent(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	typ := domain.ThoughtInput
	if req.Type != "" {
		typ = domain.ThoughtType(strings.ToUpper(req.Type))
	}

	th := domain.NewThought(typ, content)
	th.Metadata.ParentID = req.ParentID
	if req.Priority > 0 {
		th.Metadata.Priority = req.Priority
	}
	for k, v := range req.Tags {
		th.SetTag(k, v)
	}

	created, err := h.engine.AddThought(th)
	if err != nil {
		writeServiceError(w, err, "failed to create thought")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func thoughtContent(req createThoughtRequest) (term.Term, error) {
	if req.Content != nil && req.Content.Term != nil {
		return req.Content.Term, nil
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errTextOrContent
	}
	if t, err := term.Parse(text); err == nil {
		return t, nil
	}
	return term.NewAtom(text), nil
}

func (h *ThoughtHandler) List(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(r.URL.Query().Get("status"))
	typ := strings.ToUpper(r.URL.Query().Get("type"))
	root := r.URL.Query().Get("root")

	if status != "" && !domain.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	thoughts := h.engine.Thoughts().Filter(func(th domain.Thought) bool {
		if status != "" && string(th.Status) != status {
			return false
		}
		if typ != "" && string(th.Type) != typ {
			return false
		}
		return root == "" || th.Root() == root
	})

	writeJSON(w, http.StatusOK, thoughtListResponse{Thoughts: thoughts, Count: len(thoughts)})
}

func (h *ThoughtHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	th, err := h.engine.GetThought(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to get thought")
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (h *ThoughtHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.DeleteThought(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "failed to delete thought")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Matches lists every rule that would fire for the thought, best first.
func (h *ThoughtHandler) Matches(w http.ResponseWriter, r *http.Request) {
	th, matches, err := h.engine.Explain(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to explain thought")
		return
	}

	resp := matchesResponse{Thought: th, Matches: make([]matchInfo, 0, len(matches))}
	for _, m := range matches {
		bindings := make(map[string]string, len(m.Bindings))
		for name := range m.Bindings {
			bindings[name] = term.Substitute(term.NewVar(name), m.Bindings).String()
		}
		resp.Matches = append(resp.Matches, matchInfo{
			Rule:     m.Rule,
			Bindings: bindings,
			Action:   term.Substitute(m.Rule.Action, m.Bindings).String(),
		})
	}
	if len(resp.Matches) > 0 {
		resp.Action = resp.Matches[0].Action
	}
	writeJSON(w, http.StatusOK, resp)
}
