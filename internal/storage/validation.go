// Package storage provides the data persistence layer for the sift application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mailsift/sift/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrEmptySlice    = errors.New("slice cannot be empty")
	ErrInvalidThread = errors.New("invalid thread")
	ErrInvalidRule   = errors.New("invalid rule")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRule validates a rule before persistence.
func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// validateThreads validates a slice of threads.
func validateThreads(threads []model.Thread) error {
	if threads == nil {
		return fmt.Errorf("%w: threads", ErrNilParameter)
	}
	if len(threads) == 0 {
		return fmt.Errorf("%w: threads", ErrEmptySlice)
	}

	for i := range threads {
		if err := validateThread(&threads[i]); err != nil {
			return fmt.Errorf("thread at index %d: %w", i, err)
		}
	}
	return nil
}

// validateThread validates a single thread.
func validateThread(thread *model.Thread) error {
	if thread == nil {
		return fmt.Errorf("%w: thread", ErrNilParameter)
	}
	if thread.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidThread)
	}
	if thread.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidThread)
	}
	return nil
}

// validateApplication validates a rule application before persistence.
func validateApplication(app *model.RuleApplication) error {
	if app == nil {
		return fmt.Errorf("%w: application", ErrNilParameter)
	}
	if app.ID == "" {
		return fmt.Errorf("rule application ID is required")
	}
	if app.UserID == "" {
		return fmt.Errorf("rule application user ID is required")
	}
	if app.RuleID == 0 {
		return fmt.Errorf("rule application rule ID is required")
	}
	if app.ThreadID == "" {
		return fmt.Errorf("rule application thread ID is required")
	}
	return nil
}
