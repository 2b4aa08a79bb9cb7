package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/llm"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
	"go.uber.org/zap"
)

// Built-in tool names.
const (
	ToolGenerate      = "generate"
	ToolAddThought    = "add_thought"
	ToolSetStatus     = "set_status"
	ToolDeleteThought = "delete_thought"
	ToolAddRule       = "add_rule"
	ToolMemory        = "memory"
	ToolAskUser       = "ask_user"
	ToolWait          = "wait"
	ToolSuggestGoal   = "suggest_goal"
	ToolLog           = "log"
	ToolFail          = "fail"
)

// Tags set on generated thoughts.
const (
	TagSuggestion    = "suggestion"
	TagSource        = "source"
	TagFailedThought = "failed_thought"
	TagFailure       = "failure"
)

// ToolResult is what a tool hands back to the executor. Suspension is
// explicit: a tool that wants its trigger parked sets Suspend and, when it
// knows one, the condition to wait on.
type ToolResult struct {
	Output  term.Term
	Suspend bool
	Wait    *domain.WaitCondition
}

// MemoryBackend is the long-term memory capability tools use.
type MemoryBackend interface {
	Add(ctx context.Context, entry domain.MemoryEntry) error
	Search(ctx context.Context, query string, k int) ([]domain.MemorySearchResult, error)
}

// ToolContext is the engine state a tool may read and modify.
type ToolContext struct {
	Thoughts *store.ThoughtStore
	Rules    *store.RuleStore
	LLM      domain.LLMClient
	Memory   MemoryBackend
	Now      func() time.Time
	Logger   *zap.Logger
}

// Tool is a named capability invoked by a rule action of the same name.
type Tool interface {
	Name() string
	Execute(ctx context.Context, action term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error)
}

// ToolFunc is the signature of a function-backed tool.
type ToolFunc func(ctx context.Context, action term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error)

type funcTool struct {
	name string
	fn   ToolFunc
}

// NewTool wraps fn as a Tool.
func NewTool(name string, fn ToolFunc) Tool {
	return funcTool{name: name, fn: fn}
}

func (t funcTool) Name() string { return t.name }

func (t funcTool) Execute(ctx context.Context, action term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	return t.fn(ctx, action, tc, trigger)
}

// ToolRegistry maps action names to tools. Each engine owns one.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds t, replacing any tool already registered under its name.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// RegisterBuiltinTools installs the standard tool set.
func RegisterBuiltinTools(r *ToolRegistry) {
	r.Register(NewTool(ToolGenerate, generateTool))
	r.Register(NewTool(ToolAddThought, addThoughtTool))
	r.Register(NewTool(ToolSetStatus, setStatusTool))
	r.Register(NewTool(ToolDeleteThought, deleteThoughtTool))
	r.Register(NewTool(ToolAddRule, addRuleTool))
	r.Register(NewTool(ToolMemory, memoryTool))
	r.Register(NewTool(ToolAskUser, askUserTool))
	r.Register(NewTool(ToolWait, waitTool))
	r.Register(NewTool(ToolSuggestGoal, suggestGoalTool))
	r.Register(NewTool(ToolLog, logTool))
	r.Register(NewTool(ToolFail, failTool))
}

func checkArity(a term.Struct, min, max int) error {
	if n := len(a.Args); n < min || n > max {
		if min == max {
			return fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrInvalidAction, a.Name, min, n)
		}
		return fmt.Errorf("%w: %s expects %d to %d arguments, got %d", ErrInvalidAction, a.Name, min, max, n)
	}
	return nil
}

func thoughtTypeArg(t term.Term) domain.ThoughtType {
	return domain.ThoughtType(strings.ToUpper(term.Text(t)))
}

func floatArg(a term.Struct, i int) (float64, error) {
	f, err := strconv.ParseFloat(term.Text(a.Args[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s argument %d must be a number, got %s", ErrInvalidAction, a.Name, i+1, a.Args[i])
	}
	return f, nil
}

func intArg(a term.Struct, i int) (int, error) {
	n, err := strconv.Atoi(term.Text(a.Args[i]))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s argument %d must be a non-negative integer, got %s", ErrInvalidAction, a.Name, i+1, a.Args[i])
	}
	return n, nil
}

// spawnChild stores a new pending thought parented to parent.
func spawnChild(tc *ToolContext, parent domain.Thought, t domain.ThoughtType, content term.Term) domain.Thought {
	return tc.Thoughts.Add(domain.NewChildThought(parent, t, content))
}

// splitLines breaks generated text into non-empty lines, dropping list
// markers such as "- ", "* " and "1. ".
func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if i := strings.IndexAny(line, ".)"); i > 0 && i <= 3 && strings.HasPrefix(line[i+1:], " ") {
			if _, err := strconv.Atoi(line[:i]); err == nil {
				line = line[i+1:]
			}
		}
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func generate(ctx context.Context, tc *ToolContext, prompt string) (string, error) {
	if tc.LLM == nil {
		return "", fmt.Errorf("%w: no generation client configured", ErrToolFailed)
	}
	out, err := tc.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: generate: %w", ErrToolFailed, err)
	}
	return out, nil
}

func generateTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 1, 2); err != nil {
		return ToolResult{}, err
	}
	out, err := generate(ctx, tc, term.Text(a.Args[0]))
	if err != nil {
		return ToolResult{}, err
	}
	if len(a.Args) == 2 {
		t := thoughtTypeArg(a.Args[1])
		for _, line := range splitLines(out) {
			spawnChild(tc, trigger, t, term.NewAtom(line))
		}
	}
	return ToolResult{Output: term.NewAtom(out)}, nil
}

func addThoughtTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 2, 3); err != nil {
		return ToolResult{}, err
	}
	child := domain.NewChildThought(trigger, thoughtTypeArg(a.Args[0]), a.Args[1])
	if len(a.Args) == 3 {
		p, err := floatArg(a, 2)
		if err != nil {
			return ToolResult{}, err
		}
		child.Metadata.Priority = p
	}
	child = tc.Thoughts.Add(child)
	return ToolResult{Output: term.NewAtom(child.ID)}, nil
}

func setStatusTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 2, 2); err != nil {
		return ToolResult{}, err
	}
	status := strings.ToUpper(term.Text(a.Args[1]))
	if !domain.ValidStatus(status) {
		return ToolResult{}, fmt.Errorf("%w: unknown status %s", ErrInvalidAction, status)
	}
	target, err := tc.Thoughts.FindByPrefix(term.Text(a.Args[0]))
	if err != nil {
		return ToolResult{}, fmt.Errorf("%w: set_status %s: %w", ErrToolFailed, a.Args[0], err)
	}

	_, err = tc.Thoughts.Mutate(target.ID, func(th domain.Thought) (domain.Thought, error) {
		th.Status = domain.Status(status)
		if th.Status != domain.StatusWaiting {
			th.Metadata.WaitingFor = nil
		}
		if th.Status == domain.StatusFailed && th.Metadata.Error == "" {
			th.Metadata.Error = "marked failed by thought " + trigger.ID
		}
		return th, nil
	})
	if err != nil {
		return ToolResult{}, fmt.Errorf("%w: set_status %s: %w", ErrToolFailed, target.ID, err)
	}
	return ToolResult{Output: term.NewAtom(target.ID)}, nil
}

func deleteThoughtTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 1, 1); err != nil {
		return ToolResult{}, err
	}
	target, err := tc.Thoughts.FindByPrefix(term.Text(a.Args[0]))
	if err != nil {
		return ToolResult{}, fmt.Errorf("%w: delete_thought %s: %w", ErrToolFailed, a.Args[0], err)
	}
	tc.Thoughts.Delete(target.ID)
	return ToolResult{Output: term.NewAtom(target.ID)}, nil
}

func addRuleTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 2, 3); err != nil {
		return ToolResult{}, err
	}
	if _, ok := a.Args[1].(term.Struct); !ok {
		return ToolResult{}, fmt.Errorf("%w: add_rule action must be a struct, got %s", ErrInvalidAction, a.Args[1])
	}
	priority := 1.0
	if len(a.Args) == 3 {
		p, err := floatArg(a, 2)
		if err != nil {
			return ToolResult{}, err
		}
		priority = p
	}

	r := domain.NewRule(a.Args[0], a.Args[1], priority, "added by thought "+trigger.ID)
	r.Metadata.Source = domain.RuleSourceTool
	r = tc.Rules.Add(r)
	return ToolResult{Output: term.NewAtom(r.ID)}, nil
}

func memoryTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 2, 3); err != nil {
		return ToolResult{}, err
	}
	if tc.Memory == nil {
		return ToolResult{}, fmt.Errorf("%w: %w", ErrToolFailed, ErrMemoryUnavailable)
	}

	switch op := term.Text(a.Args[0]); op {
	case "add":
		if len(a.Args) != 2 {
			return ToolResult{}, fmt.Errorf("%w: memory(add, Content) takes one content argument", ErrInvalidAction)
		}
		entry := domain.MemoryEntry{
			Content:  term.Text(a.Args[1]),
			Metadata: map[string]string{"thought_id": trigger.ID, "root_id": trigger.Root()},
		}
		if err := tc.Memory.Add(ctx, entry); err != nil {
			return ToolResult{}, fmt.Errorf("%w: memory add: %w", ErrToolFailed, err)
		}
		return ToolResult{Output: term.NewAtom("ok")}, nil

	case "search":
		k := defaultSearchK
		if len(a.Args) == 3 {
			n, err := intArg(a, 2)
			if err != nil {
				return ToolResult{}, err
			}
			k = n
		}
		results, err := tc.Memory.Search(ctx, term.Text(a.Args[1]), k)
		if err != nil {
			return ToolResult{}, fmt.Errorf("%w: memory search: %w", ErrToolFailed, err)
		}

		items := make([]term.Term, 0, len(results))
		for _, r := range results {
			score := strconv.FormatFloat(float64(r.Score), 'f', 4, 32)
			items = append(items, term.NewStruct("result", term.NewAtom(r.Content), term.NewAtom(score)))

			fact := domain.NewChildThought(trigger, domain.ThoughtFact, term.NewAtom(r.Content))
			fact.SetTag(TagSource, ToolMemory)
			tc.Thoughts.Add(fact)
		}
		return ToolResult{Output: term.NewList(items...)}, nil

	default:
		return ToolResult{}, fmt.Errorf("%w: unknown memory operation %s", ErrInvalidAction, op)
	}
}

func askUserTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 1, 1); err != nil {
		return ToolResult{}, err
	}
	prompt := spawnChild(tc, trigger, domain.ThoughtUserPrompt, a.Args[0])
	return ToolResult{
		Output:  term.NewAtom(prompt.ID),
		Suspend: true,
		Wait:    &domain.WaitCondition{PromptID: prompt.ID},
	}, nil
}

func waitTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 1, 1); err != nil {
		return ToolResult{}, err
	}
	ms, err := intArg(a, 0)
	if err != nil {
		return ToolResult{}, err
	}
	until := tc.Now().Add(time.Duration(ms) * time.Millisecond)
	return ToolResult{
		Output:  term.NewAtom(until.UTC().Format(time.RFC3339Nano)),
		Suspend: true,
		Wait:    &domain.WaitCondition{Until: &until},
	}, nil
}

// suggestGoal asks for one follow-up goal and records it as a SYSTEM
// thought so it is visible without being acted on automatically.
func suggestGoal(ctx context.Context, tc *ToolContext, parent domain.Thought, about string) (domain.Thought, error) {
	out, err := generate(ctx, tc, llm.SuggestionPrompt(about))
	if err != nil {
		return domain.Thought{}, err
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return domain.Thought{}, fmt.Errorf("%w: empty suggestion", ErrToolFailed)
	}

	th := domain.NewChildThought(parent, domain.ThoughtSystem, term.NewStruct(TagSuggestion, term.NewAtom(lines[0])))
	th.SetTag(TagSuggestion, "true")
	return tc.Thoughts.Add(th), nil
}

func suggestGoalTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 1, 1); err != nil {
		return ToolResult{}, err
	}
	th, err := suggestGoal(ctx, tc, trigger, term.Text(a.Args[0]))
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Output: th.Content}, nil
}

func logTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 1, 1); err != nil {
		return ToolResult{}, err
	}
	th := spawnChild(tc, trigger, domain.ThoughtLog, a.Args[0])
	tc.Logger.Info("rule log", zap.String("thought_id", trigger.ID), zap.String("message", term.Text(a.Args[0])))
	return ToolResult{Output: term.NewAtom(th.ID)}, nil
}

func failTool(ctx context.Context, a term.Struct, tc *ToolContext, trigger domain.Thought) (ToolResult, error) {
	if err := checkArity(a, 0, 1); err != nil {
		return ToolResult{}, err
	}
	reason := "explicit failure"
	if len(a.Args) == 1 {
		reason = term.Text(a.Args[0])
	}
	return ToolResult{}, fmt.Errorf("%w: %s", ErrToolFailed, reason)
}
