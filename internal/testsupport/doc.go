// Package testsupport provides fixtures shared by package tests: a valid
// configuration rooted in a temp directory, interface descriptor files, and a
// scripted in-memory ledger that speaks the real calldata and event encoding.
package testsupport
