// Package livy owns signed-request dispatch and remote session concerns.
//
// Ownership boundary:
// - SigV4 request signing
// - retry/backoff dispatch
// - session readiness polling
// - statement submission and result polling
//
// Livy does not acquire credentials and does not provision applications.
package livy
