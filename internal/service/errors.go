package service

import "errors"

var (
	ErrToolNotFound   = errors.New("tool not found")
	ErrInvalidAction  = errors.New("invalid action")
	ErrToolFailed     = errors.New("tool failed")
	ErrProcessing     = errors.New("processing failed")
	ErrRetryExhausted = errors.New("retries exhausted")

	ErrInvalidThought     = errors.New("invalid thought")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrMemoryUnavailable  = errors.New("long-term memory is not configured")
	ErrMemoryContentEmpty = errors.New("content is required")
	ErrQueryEmpty         = errors.New("query is required")
	ErrEngineClosed       = errors.New("engine is closed")
)
