// Package preflight provides readiness checks for the configuration, the
// filesystem paths and the ledger node that collective depends on.
//
// The "collective doctor" command runs RunAll and renders each Result. The
// individual checks are plain functions so a command can run only the ones
// it needs.
package preflight
