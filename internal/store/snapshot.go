package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
)

const snapshotVersion = 1

type snapshot struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"saved_at"`
	Thoughts []domain.Thought `json:"thoughts"`
	Rules    []domain.Rule    `json:"rules"`
}

// EncodeSnapshot serializes the full engine state.
func EncodeSnapshot(thoughts []domain.Thought, rules []domain.Rule) ([]byte, error) {
	data, err := json.Marshal(snapshot{
		Version:  snapshotVersion,
		SavedAt:  time.Now().UTC(),
		Thoughts: thoughts,
		Rules:    rules,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot and normalizes it for a fresh process:
// ACTIVE thoughts return to PENDING, and thoughts WAITING on a prompt that no
// longer exists or is no longer pending return to PENDING.
func DecodeSnapshot(data []byte) ([]domain.Thought, []domain.Rule, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version > snapshotVersion {
		return nil, nil, fmt.Errorf("decode snapshot: unsupported version %d", snap.Version)
	}

	for _, th := range snap.Thoughts {
		if th.Content == nil {
			return nil, nil, fmt.Errorf("decode snapshot: thought %s has no content", th.ID)
		}
	}
	for _, r := range snap.Rules {
		if r.Pattern == nil || r.Action == nil {
			return nil, nil, fmt.Errorf("decode snapshot: rule %s is incomplete", r.ID)
		}
	}

	return NormalizeLoaded(snap.Thoughts), snap.Rules, nil
}

// NormalizeLoaded applies the restart rules to freshly loaded thoughts.
func NormalizeLoaded(thoughts []domain.Thought) []domain.Thought {
	pendingPrompts := make(map[string]bool)
	for _, th := range thoughts {
		if th.Type == domain.ThoughtUserPrompt && th.Status == domain.StatusPending {
			pendingPrompts[th.ID] = true
		}
	}

	out := make([]domain.Thought, len(thoughts))
	for i, th := range thoughts {
		switch th.Status {
		case domain.StatusActive:
			th.Status = domain.StatusPending
		case domain.StatusWaiting:
			w := th.Metadata.WaitingFor
			if w == nil || (w.PromptID != "" && !pendingPrompts[w.PromptID]) {
				th.Status = domain.StatusPending
				th.Metadata.WaitingFor = nil
			}
		}
		out[i] = th
	}
	return out
}
