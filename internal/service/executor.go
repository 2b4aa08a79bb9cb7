package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/term"
	"go.uber.org/zap"
)

// ExecResult is the outcome of one rule action or fallback attempt.
type ExecResult struct {
	Success     bool
	FinalStatus domain.Status
	Wait        *domain.WaitCondition
	Output      term.Term
	Err         error
}

func succeeded(status domain.Status, output term.Term) ExecResult {
	return ExecResult{Success: true, FinalStatus: status, Output: output}
}

func failed(err error) ExecResult {
	return ExecResult{FinalStatus: domain.StatusFailed, Err: err}
}

func suspended(wait *domain.WaitCondition, output term.Term) ExecResult {
	return ExecResult{Success: true, FinalStatus: domain.StatusWaiting, Wait: wait, Output: output}
}

// ErrorMessage returns the failure text, or "" on success.
func (r ExecResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ActionExecutor runs an instantiated rule action through the tool registry
// and reconciles the tool's answer with what the tool did to the trigger.
type ActionExecutor struct {
	registry *ToolRegistry
	tc       *ToolContext
	logger   *zap.Logger
}

func NewActionExecutor(registry *ToolRegistry, tc *ToolContext, logger *zap.Logger) *ActionExecutor {
	return &ActionExecutor{registry: registry, tc: tc, logger: logger}
}

func (e *ActionExecutor) Execute(ctx context.Context, action term.Term, trigger domain.Thought) ExecResult {
	s, ok := action.(term.Struct)
	if !ok {
		return failed(fmt.Errorf("%w: action must be a struct, got %v", ErrInvalidAction, action))
	}
	tool, ok := e.registry.Get(s.Name)
	if !ok {
		return failed(fmt.Errorf("%w: %s", ErrToolNotFound, s.Name))
	}

	out, err := e.invoke(ctx, tool, s, trigger)
	RecordToolCall(s.Name, err)
	if err != nil {
		e.logger.Debug("tool returned error",
			zap.String("tool", s.Name),
			zap.String("thought_id", trigger.ID),
			zap.Error(err))
	}

	stored, exists := e.tc.Thoughts.Get(trigger.ID)
	switch {
	case !exists:
		// The action removed its own trigger.
		return succeeded(domain.StatusDone, out.Output)
	case out.Suspend || stored.Status == domain.StatusWaiting:
		wait := out.Wait
		if wait == nil {
			wait = stored.Metadata.WaitingFor
		}
		return suspended(wait, out.Output)
	case err != nil:
		return failed(err)
	case stored.Status == domain.StatusFailed:
		msg := stored.Metadata.Error
		if msg == "" {
			msg = "action marked its trigger as failed"
		}
		return failed(fmt.Errorf("%w: %s", ErrToolFailed, msg))
	default:
		return succeeded(domain.StatusDone, out.Output)
	}
}

func (e *ActionExecutor) invoke(ctx context.Context, tool Tool, action term.Struct, trigger domain.Thought) (res ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked",
				zap.String("tool", action.Name),
				zap.String("thought_id", trigger.ID),
				zap.Any("panic", r))
			res = ToolResult{}
			err = fmt.Errorf("%w: tool %s panicked: %v", ErrToolFailed, action.Name, r)
		}
	}()
	res, err = tool.Execute(ctx, action, e.tc, trigger)
	if err != nil && !errors.Is(err, ErrToolFailed) && !errors.Is(err, ErrInvalidAction) {
		err = fmt.Errorf("%w: %s: %w", ErrToolFailed, action.Name, err)
	}
	return res, err
}
