// Package services defines shared utilities consumed by the ledger client,
// the binder, and the workflow components.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, workflow names, proposal IDs,
//     and program names for logging.
//   - Structured error markers plus the Wrap helper that keep the failure
//     taxonomy (configuration, bind, transport, rejected execution, missing
//     event, lifecycle violation) classifiable with errors.Is.
//   - Retryable and Kind, which decide whether a read may be retried and how a
//     failure is named in the single error line a command logs.
//
// Use these helpers when wiring new workflow logic so error handling and
// observability stay uniform across commands.
package services
