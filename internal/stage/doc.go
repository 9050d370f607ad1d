// Package stage defines the outcome model shared by every pipeline stage.
//
// Stage functions never let a collaborator error escape: they return an
// Outcome whose Kind tells the scheduler whether the work succeeded (with or
// without a new entity), should be retried after backoff, or was rejected for
// good. Classify turns services error markers into Transient or Terminal.
package stage
