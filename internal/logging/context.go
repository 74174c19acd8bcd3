package logging

import (
	"context"
	"log/slog"

	"collective/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the per-invocation correlation identifier.
	FieldRunID = "run_id"
	// FieldWorkflow is the standardized key for the workflow a command drives.
	FieldWorkflow = "workflow"
	// FieldProposalID is the standardized key for proposal identifiers.
	FieldProposalID = "proposal_id"
	// FieldProgram is the standardized key for the descriptor name of a bound program.
	FieldProgram = "program"
	// FieldMethod is the standardized key for program method names.
	FieldMethod = "method"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind names the failure taxonomy kind.
	FieldErrorKind = "error_kind"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if wf, ok := services.WorkflowFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorkflow, wf))
	}
	if id, ok := services.ProposalIDFromContext(ctx); ok {
		fields = append(fields, slog.Uint64(FieldProposalID, id))
	}
	if program, ok := services.ProgramFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProgram, program))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
