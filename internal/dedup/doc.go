// Package dedup holds the two duplicate gates that sit in front of store
// writes.
//
// The exact gate hashes normalized article text; the near-duplicate gate
// hashes the embedding vector of a canonicalized fact payload. Both checks are
// advisory: workers can race past a pre-check, so the store's unique
// constraints are authoritative and IsDuplicate folds a constraint violation
// into the same Duplicate verdict.
package dedup
