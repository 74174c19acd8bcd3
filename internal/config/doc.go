// Package config loads, normalizes, and validates Collective CLI configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours the
// environment variables the governance tooling has always used (RPC_URL,
// PRIVATE_KEY, ABI_PATH, CONTRACT_ADDRESS and friends). The Config type
// centralizes every knob the workflows need so ledger endpoints, signing
// material, and program addresses are discovered in one pass at startup.
//
// Always obtain settings through this package so downstream code receives
// sanitized values and configuration errors surface before any ledger
// connection is attempted.
package config
