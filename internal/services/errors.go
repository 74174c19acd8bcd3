package services

import (
	"errors"
	"fmt"
	"strings"
)

// Taxonomy markers. Every error a workflow returns matches exactly one of these
// kinds through errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrDescriptorLoad     = errors.New("descriptor load error")
	ErrBind               = errors.New("bind error")
	ErrTransport          = errors.New("transport error")
	ErrRejectedExecution  = errors.New("rejected execution")
	ErrMissingEvent       = errors.New("missing event")
	ErrLifecycleViolation = errors.New("lifecycle violation")
	ErrWaitTimeout        = errors.New("wait timeout")
)

// Component errors. Each is also its taxonomy kind.
var (
	ErrBuildIncomplete  = fmt.Errorf("build incomplete: %w", ErrMissingEvent)
	ErrProposalCreation = fmt.Errorf("proposal creation failed: %w", ErrMissingEvent)
	ErrCreation         = fmt.Errorf("creation failed: %w", ErrMissingEvent)
)

// Wrap builds an error message that names the program and method involved while
// tagging it with the provided marker for later classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, program, method, message string, err error) error {
	detail := buildDetail(program, method, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the failure is a transport failure. Only idempotent
// reads may act on this; sends are never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRejectedExecution) || errors.Is(err, ErrMissingEvent) {
		return false
	}
	return errors.Is(err, ErrTransport)
}

// Kind names the taxonomy kind of err for log output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrDescriptorLoad):
		return "descriptor_load"
	case errors.Is(err, ErrBind):
		return "bind"
	case errors.Is(err, ErrRejectedExecution):
		return "rejected_execution"
	case errors.Is(err, ErrBuildIncomplete):
		return "build_incomplete"
	case errors.Is(err, ErrProposalCreation):
		return "proposal_creation"
	case errors.Is(err, ErrCreation):
		return "creation"
	case errors.Is(err, ErrMissingEvent):
		return "missing_event"
	case errors.Is(err, ErrLifecycleViolation):
		return "lifecycle_violation"
	case errors.Is(err, ErrWaitTimeout):
		return "wait_timeout"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

func buildDetail(program, method, message string) string {
	parts := make([]string, 0, 3)
	if program = strings.TrimSpace(program); program != "" {
		parts = append(parts, program)
	}
	if method = strings.TrimSpace(method); method != "" {
		parts = append(parts, method)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "ledger failure"
	}
	return strings.Join(parts, ": ")
}
