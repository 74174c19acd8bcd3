package services

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	workflowKey   contextKey = "workflow"
	proposalIDKey contextKey = "proposal_id"
	programKey    contextKey = "program"
)

// WithRunID annotates context with the correlation identifier of one CLI invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithWorkflow annotates context with the workflow name (vote, create-treasury, ...).
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	if workflow == "" {
		return ctx
	}
	return context.WithValue(ctx, workflowKey, workflow)
}

// WorkflowFromContext returns the workflow name if present.
func WorkflowFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(workflowKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithProposalID annotates context with the proposal under coordination.
func WithProposalID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, proposalIDKey, id)
}

// ProposalIDFromContext extracts the proposal identifier if present.
func ProposalIDFromContext(ctx context.Context) (uint64, bool) {
	v := ctx.Value(proposalIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case int:
		return uint64(val), val >= 0
	default:
		return 0, false
	}
}

// WithProgram annotates context with the descriptor name of the program being driven.
func WithProgram(ctx context.Context, program string) context.Context {
	if program == "" {
		return ctx
	}
	return context.WithValue(ctx, programKey, program)
}

// ProgramFromContext returns the program name if present.
func ProgramFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(programKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
