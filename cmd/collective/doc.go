// Package main hosts the collective CLI entrypoint and command graph.
//
// Each workflow command validates only the settings it needs, connects the
// signing wallet to the ledger, and hands off to the internal packages:
// builder for governance and treasury builds, voterclass for ERC-721 voter
// classes, governance and lifecycle for proposals. Failures are logged once
// with their error kind and the process exits non-zero.
//
// Keep this package thin. New behavior belongs in an internal package first
// and is surfaced here as a command or flag.
package main
