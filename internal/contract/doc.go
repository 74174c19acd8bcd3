// Package contract binds named interface descriptors to program addresses.
//
// A Loader parses descriptor files once per process. A Binder pairs a
// descriptor with an address and the shared ledger client to produce a
// Program, whose Call performs side-effect-free reads and whose Send submits
// a transaction and returns the receipt with decoded events. No ledger state
// is cached here.
package contract
