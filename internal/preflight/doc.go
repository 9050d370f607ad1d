// Package preflight provides readiness checks for the filesystem paths,
// binaries, and external services Alchemist depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting the scheduler. A failed
//     required check aborts start up so the queue does not fill with runs
//     that can only fail.
//   - The CLI "alchemist status" command calls RunAll and the service checks
//     (CheckLLM, CheckWordPress) to display health.
//
// Each optional check is gated by its config toggle; disabled features are
// skipped.
package preflight
