// Package ledger is the only component that talks to the ledger node.
//
// EthClient wraps go-ethereum's ethclient with the signing identity, a
// per-identity send sequencer, rate-limited reads retried on transport
// failures, and receipt polling that survives cancellation once a transaction
// has been submitted. Receipts are returned as immutable Receipt values whose
// decoded events are the only way a send returns data to the caller.
package ledger
