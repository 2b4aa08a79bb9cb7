package service

import (
	"sort"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/term"
)

// Match is a rule whose pattern unified with a thought, together with the
// bindings the unification produced.
type Match struct {
	Rule     domain.Rule   `json:"rule"`
	Bindings term.Bindings `json:"-"`
}

// RuleMatcher selects the rule to run for a thought. It is stateless; the
// candidate set is recomputed on every attempt so belief changes apply
// immediately.
type RuleMatcher struct{}

func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{}
}

// MatchAll returns every rule whose pattern unifies with the thought's
// content, best first: higher priority, then higher belief score, then the
// more recently created rule. Ties on all three fall back to id order so the
// result is deterministic.
func (m *RuleMatcher) MatchAll(th domain.Thought, rules []domain.Rule) []Match {
	if th.Content == nil {
		return nil
	}

	var matches []Match
	for _, r := range rules {
		if r.Pattern == nil {
			continue
		}
		b, ok := term.Unify(r.Pattern, th.Content, nil)
		if !ok {
			continue
		}
		matches = append(matches, Match{Rule: r, Bindings: b})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Rule, matches[j].Rule
		if a.Metadata.Priority != b.Metadata.Priority {
			return a.Metadata.Priority > b.Metadata.Priority
		}
		if sa, sb := a.Belief.Score(), b.Belief.Score(); sa != sb {
			return sa > sb
		}
		if !a.Metadata.Created.Equal(b.Metadata.Created) {
			return a.Metadata.Created.After(b.Metadata.Created)
		}
		return a.ID < b.ID
	})
	return matches
}

// Match returns the single best rule for th, or false when none applies.
func (m *RuleMatcher) Match(th domain.Thought, rules []domain.Rule) (Match, bool) {
	all := m.MatchAll(th, rules)
	if len(all) == 0 {
		return Match{}, false
	}
	return all[0], true
}
