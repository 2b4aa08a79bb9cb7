package domain

import (
	"encoding/json"
	"time"

	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/google/uuid"
)

// Rule sources.
const (
	RuleSourceBootstrap = "bootstrap"
	RuleSourceAPI       = "api"
	RuleSourceTool      = "tool"
	RuleSourceFile      = "file"
)

type RuleMetadata struct {
	Priority    float64   `json:"priority"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// Rule is a pattern/action pair. When the pattern unifies with a thought's
// content, the action is instantiated with the resulting bindings and run.
type Rule struct {
	ID       string       `json:"id"`
	Pattern  term.Term    `json:"-"`
	Action   term.Term    `json:"-"`
	Belief   Belief       `json:"belief"`
	Metadata RuleMetadata `json:"metadata"`
}

func NewRule(pattern, action term.Term, priority float64, description string) Rule {
	return Rule{
		ID:      uuid.NewString(),
		Pattern: pattern,
		Action:  action,
		Metadata: RuleMetadata{
			Priority:    priority,
			Description: description,
		},
	}
}

func (r Rule) EntityID() string     { return r.ID }
func (r Rule) CreatedAt() time.Time { return r.Metadata.Created }

func (r Rule) WithTimestamps(created, modified time.Time) Rule {
	r.Metadata.Created = created
	r.Metadata.Modified = modified
	return r
}

// Clone returns r unchanged: rules hold no mutable reference types.
func (r Rule) Clone() Rule { return r }

type ruleJSON struct {
	ID       string       `json:"id"`
	Pattern  term.Value   `json:"pattern"`
	Action   term.Value   `json:"action"`
	Text     string       `json:"text,omitempty"`
	Belief   Belief       `json:"belief"`
	Score    float64      `json:"score"`
	Metadata RuleMetadata `json:"metadata"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	text := ""
	if r.Pattern != nil && r.Action != nil {
		text = r.Pattern.String() + " -> " + r.Action.String()
	}
	return json.Marshal(ruleJSON{
		ID:       r.ID,
		Pattern:  term.Value{Term: r.Pattern},
		Action:   term.Value{Term: r.Action},
		Text:     text,
		Belief:   r.Belief,
		Score:    r.Belief.Score(),
		Metadata: r.Metadata,
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Rule{
		ID:       w.ID,
		Pattern:  w.Pattern.Term,
		Action:   w.Action.Term,
		Belief:   w.Belief,
		Metadata: w.Metadata,
	}
	return nil
}
