package service

import (
	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
)

// BootstrapRules is the rule set installed at startup. The rules cover the
// structured commands users most often submit; anything else falls through
// to the type-based fallback.
func BootstrapRules() []domain.Rule {
	specs := []RuleSpec{
		{
			Pattern:     "remember(Text)",
			Action:      "memory(add, Text)",
			Priority:    5,
			Description: "store text in long-term memory",
		},
		{
			Pattern:     "recall(Query)",
			Action:      "memory(search, Query)",
			Priority:    5,
			Description: "search long-term memory",
		},
		{
			Pattern:     "ask(Question)",
			Action:      "ask_user(Question)",
			Priority:    5,
			Description: "ask the user a question",
		},
		{
			Pattern:     "sleep(Millis)",
			Action:      "wait(Millis)",
			Priority:    5,
			Description: "pause this thought for a while",
		},
		{
			Pattern:     "goal(Text)",
			Action:      "add_thought(goal, Text)",
			Priority:    3,
			Description: "promote an input to a goal",
		},
		{
			Pattern:     "note(Message)",
			Action:      "log(Message)",
			Priority:    3,
			Description: "record a log entry",
		},
		{
			Pattern:     "when(Pattern, Action)",
			Action:      "add_rule(Pattern, Action)",
			Priority:    3,
			Description: "teach a new rule",
		},
	}

	rules := make([]domain.Rule, 0, len(specs))
	for _, s := range specs {
		pattern := term.MustParse(s.Pattern)
		action := term.MustParse(s.Action)
		r := domain.NewRule(pattern, action, s.Priority, s.Description)
		r.Metadata.Source = domain.RuleSourceBootstrap
		rules = append(rules, r)
	}
	return rules
}

// InstallBootstrapRules syncs the bootstrap set into rules, keeping the
// beliefs of bootstrap rules restored from a snapshot.
func InstallBootstrapRules(rules *store.RuleStore) (added int) {
	added, _, _ = SyncRules(rules, domain.RuleSourceBootstrap, BootstrapRules())
	return added
}
