package domain

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/google/uuid"
)

type ThoughtType string

const (
	ThoughtInput      ThoughtType = "INPUT"
	ThoughtGoal       ThoughtType = "GOAL"
	ThoughtStrategy   ThoughtType = "STRATEGY"
	ThoughtOutcome    ThoughtType = "OUTCOME"
	ThoughtQuery      ThoughtType = "QUERY"
	ThoughtUserPrompt ThoughtType = "USER_PROMPT"
	ThoughtSystem     ThoughtType = "SYSTEM"
	ThoughtFact       ThoughtType = "FACT"
	ThoughtLog        ThoughtType = "LOG"
)

// KnownThoughtTypes lists the types with built-in fallback behavior.
// Other type names are accepted and handled by the generic fallback.
func KnownThoughtTypes() []ThoughtType {
	return []ThoughtType{
		ThoughtInput, ThoughtGoal, ThoughtStrategy, ThoughtOutcome, ThoughtQuery,
		ThoughtUserPrompt, ThoughtSystem, ThoughtFact, ThoughtLog,
	}
}

type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusWaiting Status = "WAITING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusActive, StatusWaiting, StatusDone, StatusFailed:
		return true
	}
	return false
}

// TaskStatus is only meaningful on root thoughts.
type TaskStatus string

const (
	TaskRunning TaskStatus = "RUNNING"
	TaskPaused  TaskStatus = "PAUSED"
)

// WaitCondition describes what a WAITING thought is suspended on: either the
// answer to a prompt thought or a wake-up time.
type WaitCondition struct {
	PromptID string     `json:"prompt_id,omitempty"`
	Until    *time.Time `json:"until,omitempty"`
}

// Elapsed reports whether a time-based condition has passed.
func (w *WaitCondition) Elapsed(now time.Time) bool {
	return w != nil && w.Until != nil && !now.Before(*w.Until)
}

type ThoughtMetadata struct {
	RootID     string            `json:"root_id,omitempty"`
	ParentID   string            `json:"parent_id,omitempty"`
	RuleID     string            `json:"rule_id,omitempty"`
	Created    time.Time         `json:"created"`
	Modified   time.Time         `json:"modified"`
	Priority   float64           `json:"priority"`
	Error      string            `json:"error,omitempty"`
	Retries    int               `json:"retries"`
	WaitingFor *WaitCondition    `json:"waiting_for,omitempty"`
	TaskStatus TaskStatus        `json:"task_status,omitempty"`
	Agent      string            `json:"agent,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// Thought is a unit of work: a term payload moving through the
// PENDING/ACTIVE/WAITING/DONE/FAILED lifecycle.
type Thought struct {
	ID       string          `json:"id"`
	Type     ThoughtType     `json:"type"`
	Content  term.Term       `json:"-"`
	Belief   Belief          `json:"belief"`
	Status   Status          `json:"status"`
	Metadata ThoughtMetadata `json:"metadata"`
}

// NewThought creates a pending root thought.
func NewThought(t ThoughtType, content term.Term) Thought {
	id := uuid.NewString()
	return Thought{
		ID:      id,
		Type:    t,
		Content: content,
		Status:  StatusPending,
		Metadata: ThoughtMetadata{
			RootID:   id,
			Priority: 1,
		},
	}
}

// NewChildThought creates a pending thought parented to parent and sharing
// its task root.
func NewChildThought(parent Thought, t ThoughtType, content term.Term) Thought {
	th := NewThought(t, content)
	th.Metadata.ParentID = parent.ID
	th.Metadata.RootID = parent.Root()
	th.Metadata.Priority = parent.Metadata.Priority
	if th.Metadata.Priority == 0 {
		th.Metadata.Priority = 1
	}
	return th
}

// IsRoot reports whether the thought is the root of its own task tree.
func (t Thought) IsRoot() bool {
	return t.Metadata.RootID == "" || t.Metadata.RootID == t.ID
}

// Root returns the id of the thought's task root.
func (t Thought) Root() string {
	if t.IsRoot() {
		return t.ID
	}
	return t.Metadata.RootID
}

// SetTag records a free-form tag, allocating the tag table on first use.
func (t *Thought) SetTag(key, value string) {
	if t.Metadata.Tags == nil {
		t.Metadata.Tags = make(map[string]string)
	}
	t.Metadata.Tags[key] = value
}

func (t Thought) EntityID() string     { return t.ID }
func (t Thought) CreatedAt() time.Time { return t.Metadata.Created }

func (t Thought) WithTimestamps(created, modified time.Time) Thought {
	t.Metadata.Created = created
	t.Metadata.Modified = modified
	return t
}

// Clone returns a copy that shares no mutable state with t.
func (t Thought) Clone() Thought {
	if t.Metadata.Tags != nil {
		t.Metadata.Tags = maps.Clone(t.Metadata.Tags)
	}
	if t.Metadata.WaitingFor != nil {
		w := *t.Metadata.WaitingFor
		if w.Until != nil {
			until := *w.Until
			w.Until = &until
		}
		t.Metadata.WaitingFor = &w
	}
	return t
}

type thoughtJSON struct {
	ID       string          `json:"id"`
	Type     ThoughtType     `json:"type"`
	Content  term.Value      `json:"content"`
	Text     string          `json:"text,omitempty"`
	Belief   Belief          `json:"belief"`
	Score    float64         `json:"score"`
	Status   Status          `json:"status"`
	Metadata ThoughtMetadata `json:"metadata"`
}

func (t Thought) MarshalJSON() ([]byte, error) {
	return json.Marshal(thoughtJSON{
		ID:       t.ID,
		Type:     t.Type,
		Content:  term.Value{Term: t.Content},
		Text:     term.Text(t.Content),
		Belief:   t.Belief,
		Score:    t.Belief.Score(),
		Status:   t.Status,
		Metadata: t.Metadata,
	})
}

func (t *Thought) UnmarshalJSON(data []byte) error {
	var w thoughtJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Thought{
		ID:       w.ID,
		Type:     w.Type,
		Content:  w.Content.Term,
		Belief:   w.Belief,
		Status:   w.Status,
		Metadata: w.Metadata,
	}
	return nil
}
