// Package builder drives on-chain builder programs through their staging
// sessions: start, any number of attribute steps, then a terminal build that
// yields the created address from the receipt's events.
//
// Steps are separate transactions. A failure partway through leaves the
// program partially staged; the caller retries the step or abandons the
// session, and nothing is rolled back.
package builder
