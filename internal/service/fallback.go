package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/llm"
	"github.com/Harshitk-cp/reflex/internal/term"
	"go.uber.org/zap"
)

// FallbackHandler advances a thought no rule matched, based on its type.
type FallbackHandler struct {
	tc     *ToolContext
	logger *zap.Logger
}

func NewFallbackHandler(tc *ToolContext, logger *zap.Logger) *FallbackHandler {
	return &FallbackHandler{tc: tc, logger: logger}
}

func (f *FallbackHandler) Handle(ctx context.Context, th domain.Thought) ExecResult {
	text := term.Text(th.Content)

	switch th.Type {
	case domain.ThoughtInput:
		return f.generateChildren(ctx, th, llm.GoalPrompt(text), domain.ThoughtGoal, 1)
	case domain.ThoughtGoal:
		return f.generateChildren(ctx, th, llm.StrategiesPrompt(text), domain.ThoughtStrategy, 0)
	case domain.ThoughtStrategy:
		return f.generateChildren(ctx, th, llm.OutcomePrompt(text), domain.ThoughtOutcome, 1)
	case domain.ThoughtOutcome, domain.ThoughtFact:
		return f.remember(ctx, th, text)
	case domain.ThoughtLog, domain.ThoughtSystem:
		return succeeded(domain.StatusDone, nil)
	default:
		return f.askHowToProceed(th, text)
	}
}

// generateChildren creates one child of type t per generated line, keeping
// at most limit lines when limit > 0.
func (f *FallbackHandler) generateChildren(ctx context.Context, th domain.Thought, prompt string, t domain.ThoughtType, limit int) ExecResult {
	out, err := generate(ctx, f.tc, prompt)
	if err != nil {
		return failed(err)
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return failed(fmt.Errorf("%w: generation returned no %s", ErrProcessing, t))
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}

	items := make([]term.Term, 0, len(lines))
	for _, line := range lines {
		child := spawnChild(f.tc, th, t, term.NewAtom(line))
		items = append(items, term.NewAtom(child.ID))
	}
	return succeeded(domain.StatusDone, term.NewList(items...))
}

// remember stores the thought in long-term memory and, once stored, asks for
// a follow-up goal. Facts that came out of a memory search are already
// stored and are only acknowledged.
func (f *FallbackHandler) remember(ctx context.Context, th domain.Thought, text string) ExecResult {
	if th.Metadata.Tags[TagSource] == ToolMemory {
		return succeeded(domain.StatusDone, nil)
	}
	if f.tc.Memory == nil {
		return failed(fmt.Errorf("%w: %w", ErrProcessing, ErrMemoryUnavailable))
	}

	entry := domain.MemoryEntry{
		Content: text,
		Metadata: map[string]string{
			"thought_id": th.ID,
			"root_id":    th.Root(),
			"type":       string(th.Type),
		},
	}
	if err := f.tc.Memory.Add(ctx, entry); err != nil {
		return failed(fmt.Errorf("%w: remember: %w", ErrProcessing, err))
	}

	if _, err := suggestGoal(ctx, f.tc, th, text); err != nil {
		f.logger.Warn("goal suggestion failed", zap.String("thought_id", th.ID), zap.Error(err))
	}
	return succeeded(domain.StatusDone, nil)
}

func (f *FallbackHandler) askHowToProceed(th domain.Thought, text string) ExecResult {
	prompt := spawnChild(f.tc, th, domain.ThoughtUserPrompt, term.NewAtom(llm.HowToProceed(text)))
	return suspended(&domain.WaitCondition{PromptID: prompt.ID}, term.NewAtom(prompt.ID))
}
