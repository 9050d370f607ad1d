// Package store persists Alchemist's pipeline entities and task runs in
// SQLite.
//
// The Store is the single source of truth for deduplication and lifecycle
// state. Every method runs its own short statement or transaction; no lock is
// held between calls, so stage functions may call slow collaborators between
// a read and the following write. Unique constraints on source URLs, content
// hashes, embedding hashes, external URLs, and (content, platform) pairs are
// the authoritative dedup backstop and surface as ErrDuplicate. Content status
// changes are validated in the UPDATE itself so a regression is rejected with
// ErrInvalidTransition even when two writers race.
//
// The task_runs table doubles as the scheduler queue. ClaimNextTask promotes
// due retryable runs and claims the oldest eligible run in one statement.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt a new schema.
package store
