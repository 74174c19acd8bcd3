// Package lifecycle coordinates one governance proposal from creation to
// outcome: propose, configure, wait for the start block, open the vote, wait
// for the vote to end, close it and read the result.
//
// The ledger height is the coordinator's clock. Waits poll a HeightSource and
// sleep in proportion to the remaining block gap; they are the only long
// suspensions and the only steps cancellation interrupts. Sends that have been
// submitted always run to their receipt.
package lifecycle
