// Package voterclass creates voter classes, the programs that decide who may
// vote on a governance instance and with what weight.
package voterclass
