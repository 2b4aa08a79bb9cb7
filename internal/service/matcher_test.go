package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(id, pattern, action string, priority float64, belief domain.Belief, created time.Time) domain.Rule {
	r := domain.NewRule(term.MustParse(pattern), term.MustParse(action), priority, "")
	r.ID = id
	r.Belief = belief
	r.Metadata.Created = created
	return r
}

func TestRuleMatcher_Selection(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th := domain.NewThought(domain.ThoughtInput, term.MustParse("greet(alice)"))

	tests := []struct {
		name  string
		rules []domain.Rule
		want  string
		ok    bool
	}{
		{
			name:  "no rules",
			rules: nil,
			ok:    false,
		},
		{
			name: "no unifying rule",
			rules: []domain.Rule{
				rule("r1", "farewell(X)", "log(X)", 1, domain.Belief{}, base),
			},
			ok: false,
		},
		{
			name: "single match",
			rules: []domain.Rule{
				rule("r1", "farewell(X)", "log(X)", 9, domain.Belief{}, base),
				rule("r2", "greet(X)", "log(X)", 1, domain.Belief{}, base),
			},
			want: "r2",
			ok:   true,
		},
		{
			name: "priority wins",
			rules: []domain.Rule{
				rule("low", "greet(X)", "log(X)", 1, domain.Belief{Pos: 50}, base),
				rule("high", "greet(alice)", "log(hi)", 2, domain.Belief{Neg: 50}, base),
			},
			want: "high",
			ok:   true,
		},
		{
			name: "belief breaks priority tie",
			rules: []domain.Rule{
				rule("weak", "greet(X)", "log(X)", 1, domain.Belief{Neg: 2}, base),
				rule("strong", "greet(Y)", "log(Y)", 1, domain.Belief{Pos: 2}, base),
			},
			want: "strong",
			ok:   true,
		},
		{
			name: "recency breaks remaining tie",
			rules: []domain.Rule{
				rule("old", "greet(X)", "log(X)", 1, domain.Belief{}, base),
				rule("new", "greet(X)", "log(X)", 1, domain.Belief{}, base.Add(time.Minute)),
			},
			want: "new",
			ok:   true,
		},
	}

	m := NewRuleMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(th, tt.rules)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Rule.ID)
			}
		})
	}
}

func TestRuleMatcher_Deterministic(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th := domain.NewThought(domain.ThoughtInput, term.MustParse("greet(bob)"))
	rules := []domain.Rule{
		rule("b", "greet(X)", "log(X)", 1, domain.Belief{}, base),
		rule("a", "greet(X)", "log(X)", 1, domain.Belief{}, base),
		rule("c", "greet(bob)", "log(X)", 1, domain.Belief{}, base),
	}
	reversed := []domain.Rule{rules[2], rules[1], rules[0]}

	m := NewRuleMatcher()
	first, _ := m.Match(th, rules)
	second, _ := m.Match(th, reversed)
	assert.Equal(t, first.Rule.ID, second.Rule.ID)
	assert.Equal(t, "a", first.Rule.ID)
}

func TestRuleMatcher_BindingsFeedAction(t *testing.T) {
	th := domain.NewThought(domain.ThoughtInput, term.MustParse("move(box, [kitchen, hall])"))
	r := domain.NewRule(term.MustParse("move(Obj, [From, To])"), term.MustParse("log(moved(Obj, From, To))"), 1, "")

	got, ok := NewRuleMatcher().Match(th, []domain.Rule{r})
	require.True(t, ok)

	action := term.Substitute(got.Rule.Action, got.Bindings)
	assert.Equal(t, "log(moved(box, kitchen, hall))", action.String())
}

func TestRuleMatcher_MatchAllOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th := domain.NewThought(domain.ThoughtInput, term.MustParse("ping"))
	all := NewRuleMatcher().MatchAll(th, []domain.Rule{
		rule("one", "ping", "log(one)", 1, domain.Belief{}, base),
		rule("three", "ping", "log(three)", 3, domain.Belief{}, base),
		rule("none", "pong", "log(none)", 9, domain.Belief{}, base),
		rule("two", "P", "log(two)", 2, domain.Belief{}, base),
	})

	ids := make([]string, 0, len(all))
	for _, m := range all {
		ids = append(ids, m.Rule.ID)
	}
	assert.Equal(t, []string{"three", "two", "one"}, ids)
}
