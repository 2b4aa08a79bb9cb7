package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/embedding"
	"github.com/Harshitk-cp/reflex/internal/llm"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type toolFixture struct {
	tc       *ToolContext
	registry *ToolRegistry
	exec     *ActionExecutor
	llm      *llm.MockClient
	vectors  *store.InMemoryVectorStore
	trigger  domain.Thought
}

func newToolFixture(t *testing.T) *toolFixture {
	t.Helper()
	mockLLM := llm.NewMockClient()
	vectors := store.NewInMemoryVectorStore()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tc := &ToolContext{
		Thoughts: store.NewThoughtStore(),
		Rules:    store.NewRuleStore(),
		LLM:      mockLLM,
		Memory:   NewMemoryService(embedding.NewMockClient(), vectors, zap.NewNop()),
		Now:      func() time.Time { return now },
		Logger:   zap.NewNop(),
	}
	registry := NewToolRegistry()
	RegisterBuiltinTools(registry)

	trigger := tc.Thoughts.Add(domain.NewThought(domain.ThoughtInput, term.NewAtom("trigger")))
	return &toolFixture{
		tc:       tc,
		registry: registry,
		exec:     NewActionExecutor(registry, tc, zap.NewNop()),
		llm:      mockLLM,
		vectors:  vectors,
		trigger:  trigger,
	}
}

func (f *toolFixture) run(action string) ExecResult {
	return f.exec.Execute(context.Background(), term.MustParse(action), f.trigger)
}

func (f *toolFixture) children(typ domain.ThoughtType) []domain.Thought {
	return f.tc.Thoughts.Filter(func(th domain.Thought) bool {
		return th.Metadata.ParentID == f.trigger.ID && th.Type == typ
	})
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "one\ntwo", want: []string{"one", "two"}},
		{in: "- one\n* two\n• three", want: []string{"one", "two", "three"}},
		{in: "1. first\n2) second\n\n  ", want: []string{"first", "second"}},
		{in: "3.5 percent growth", want: []string{"3.5 percent growth"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitLines(tt.in), tt.in)
	}
}

func TestToolRegistry(t *testing.T) {
	r := NewToolRegistry()
	RegisterBuiltinTools(r)
	assert.Equal(t, []string{
		ToolAddRule, ToolAddThought, ToolAskUser, ToolDeleteThought, ToolFail,
		ToolGenerate, ToolLog, ToolMemory, ToolSetStatus, ToolSuggestGoal, ToolWait,
	}, r.Names())

	_, ok := r.Get("missing")
	assert.False(t, ok)

	replacement := NewTool(ToolLog, func(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
		return ToolResult{Output: term.NewAtom("custom")}, nil
	})
	r.Register(replacement)
	got, ok := r.Get(ToolLog)
	require.True(t, ok)
	res, err := got.Execute(context.Background(), term.Struct{Name: ToolLog}, nil, domain.Thought{})
	require.NoError(t, err)
	assert.Equal(t, "custom", term.Text(res.Output))
}

func TestExecutor_ActionErrors(t *testing.T) {
	f := newToolFixture(t)

	res := f.exec.Execute(context.Background(), term.NewAtom("log"), f.trigger)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrInvalidAction)

	res = f.run("teleport(home)")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrToolNotFound)

	res = f.run("log(a, b)")
	assert.ErrorIs(t, res.Err, ErrInvalidAction)
	assert.Equal(t, domain.StatusFailed, res.FinalStatus)
}

func TestExecutor_WrapsPlainToolErrors(t *testing.T) {
	f := newToolFixture(t)
	f.registry.Register(NewTool("flaky", func(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
		return ToolResult{}, errors.New("connection reset")
	}))

	res := f.run("flaky(x)")
	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrToolFailed)
	assert.Contains(t, res.ErrorMessage(), "connection reset")
}

func TestExecutor_TriggerStatusReconciliation(t *testing.T) {
	t.Run("marked failed", func(t *testing.T) {
		f := newToolFixture(t)
		res := f.run("set_status('" + f.trigger.ID + "', failed)")
		require.False(t, res.Success)
		assert.ErrorIs(t, res.Err, ErrToolFailed)
		assert.Contains(t, res.ErrorMessage(), "marked failed by thought")
	})

	t.Run("marked waiting", func(t *testing.T) {
		f := newToolFixture(t)
		res := f.run("set_status('" + f.trigger.ID + "', waiting)")
		require.True(t, res.Success)
		assert.Equal(t, domain.StatusWaiting, res.FinalStatus)
	})

	t.Run("other thought", func(t *testing.T) {
		f := newToolFixture(t)
		other := f.tc.Thoughts.Add(domain.NewThought(domain.ThoughtGoal, term.NewAtom("other")))
		res := f.run("set_status('" + other.ID[:8] + "', done)")
		require.True(t, res.Success)
		assert.Equal(t, domain.StatusDone, res.FinalStatus)
		got, _ := f.tc.Thoughts.Get(other.ID)
		assert.Equal(t, domain.StatusDone, got.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newToolFixture(t)
		res := f.run("set_status('" + f.trigger.ID + "', sideways)")
		assert.ErrorIs(t, res.Err, ErrInvalidAction)
	})

	t.Run("deleted trigger", func(t *testing.T) {
		f := newToolFixture(t)
		res := f.run("delete_thought('" + f.trigger.ID + "')")
		require.True(t, res.Success)
		assert.Equal(t, domain.StatusDone, res.FinalStatus)
	})
}

func TestGenerateTool(t *testing.T) {
	f := newToolFixture(t)
	f.llm.Response = "1. Draft outline\n2. Write intro"

	res := f.run("generate('plan the essay', strategy)")
	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, "1. Draft outline\n2. Write intro", term.Text(res.Output))
	assert.Equal(t, []string{"plan the essay"}, f.llm.GenerateCalls())

	children := f.children(domain.ThoughtStrategy)
	require.Len(t, children, 2)

	f.llm.Error = errors.New("rate limited")
	res = f.run("generate(again)")
	assert.ErrorIs(t, res.Err, ErrToolFailed)

	f.tc.LLM = nil
	res = f.run("generate(again)")
	assert.ErrorIs(t, res.Err, ErrToolFailed)
}

func TestAddThoughtTool(t *testing.T) {
	f := newToolFixture(t)

	res := f.run("add_thought(goal, finish(report), 2.5)")
	require.True(t, res.Success, res.ErrorMessage())

	goals := f.children(domain.ThoughtGoal)
	require.Len(t, goals, 1)
	assert.Equal(t, term.Text(res.Output), goals[0].ID)
	assert.Equal(t, "finish(report)", goals[0].Content.String())
	assert.Equal(t, 2.5, goals[0].Metadata.Priority)
	assert.Equal(t, f.trigger.ID, goals[0].Root())

	res = f.run("add_thought(goal, x, high)")
	assert.ErrorIs(t, res.Err, ErrInvalidAction)
}

func TestAddRuleTool(t *testing.T) {
	f := newToolFixture(t)

	res := f.run("add_rule(hello(X), log(X), 4)")
	require.True(t, res.Success, res.ErrorMessage())

	r, ok := f.tc.Rules.Get(term.Text(res.Output))
	require.True(t, ok)
	assert.Equal(t, "hello(X)", r.Pattern.String())
	assert.Equal(t, 4.0, r.Metadata.Priority)
	assert.Equal(t, domain.RuleSourceTool, r.Metadata.Source)

	res = f.run("add_rule(hello(X), X)")
	assert.ErrorIs(t, res.Err, ErrInvalidAction)
}

func TestMemoryTool(t *testing.T) {
	f := newToolFixture(t)

	res := f.run("memory(add, 'the cat sleeps on the mat')")
	require.True(t, res.Success, res.ErrorMessage())
	res = f.run("memory(add, 'stock prices rose today')")
	require.True(t, res.Success, res.ErrorMessage())

	res = f.run("memory(search, 'where does the cat sleep', 1)")
	require.True(t, res.Success, res.ErrorMessage())

	items, ok := res.Output.(term.List)
	require.True(t, ok)
	require.Len(t, items.Elements, 1)
	assert.Contains(t, items.Elements[0].String(), "cat sleeps")

	facts := f.children(domain.ThoughtFact)
	require.Len(t, facts, 1)
	assert.Equal(t, ToolMemory, facts[0].Metadata.Tags[TagSource])

	res = f.run("memory(forget, x)")
	assert.ErrorIs(t, res.Err, ErrInvalidAction)

	res = f.run("memory(search, x, many)")
	assert.ErrorIs(t, res.Err, ErrInvalidAction)

	f.tc.Memory = nil
	res = f.run("memory(add, x)")
	assert.ErrorIs(t, res.Err, ErrMemoryUnavailable)
}

func TestWaitTool(t *testing.T) {
	f := newToolFixture(t)

	res := f.run("wait(1500)")
	require.True(t, res.Success)
	assert.Equal(t, domain.StatusWaiting, res.FinalStatus)
	require.NotNil(t, res.Wait)
	require.NotNil(t, res.Wait.Until)
	assert.Equal(t, 1500*time.Millisecond, res.Wait.Until.Sub(f.tc.Now()))

	res = f.run("wait(soon)")
	assert.ErrorIs(t, res.Err, ErrInvalidAction)
}

func TestAskUserTool(t *testing.T) {
	f := newToolFixture(t)

	res := f.run("ask_user('which colour?')")
	require.True(t, res.Success)
	assert.Equal(t, domain.StatusWaiting, res.FinalStatus)

	prompts := f.children(domain.ThoughtUserPrompt)
	require.Len(t, prompts, 1)
	assert.Equal(t, prompts[0].ID, res.Wait.PromptID)
	assert.Equal(t, domain.StatusPending, prompts[0].Status)
}

func TestSuggestGoalTool(t *testing.T) {
	f := newToolFixture(t)
	f.llm.Response = "\n- Learn Portuguese\n- Something else"

	res := f.run("suggest_goal('trip booked')")
	require.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, "suggestion('Learn Portuguese')", res.Output.String())

	sys := f.children(domain.ThoughtSystem)
	require.Len(t, sys, 1)
	assert.Equal(t, "true", sys[0].Metadata.Tags[TagSuggestion])

	f.llm.Response = "  \n "
	res = f.run("suggest_goal(x)")
	assert.ErrorIs(t, res.Err, ErrToolFailed)
}

func TestLogAndFailTools(t *testing.T) {
	f := newToolFixture(t)

	res := f.run("log(done(step1))")
	require.True(t, res.Success)
	logs := f.children(domain.ThoughtLog)
	require.Len(t, logs, 1)
	assert.Equal(t, "done(step1)", logs[0].Content.String())

	res = f.run("fail")
	assert.ErrorIs(t, res.Err, ErrInvalidAction, "a bare atom is not an action")

	res = f.run("fail()")
	assert.ErrorIs(t, res.Err, ErrToolFailed)
	assert.Contains(t, res.ErrorMessage(), "explicit failure")

	res = f.run("fail(disk_full)")
	assert.Equal(t, "tool failed: disk_full", res.ErrorMessage())
}
