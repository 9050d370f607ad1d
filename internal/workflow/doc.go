// Package workflow schedules pipeline stages as durable task runs.
//
// Every stage invocation is a row in the task_runs table. The Manager owns a
// worker pool that claims due runs oldest-first, heartbeats them while they
// execute, and maps each stage.Outcome onto the run: success finishes it,
// Transient schedules a retry with exponential backoff until the attempt
// ceiling, and Terminal stops it for good. Finished runs may chain
// downstream runs through their Task.Next function.
//
// Periodic triggers (source discovery, unparsed sweeps, generation, publish
// sweeps, metrics collection) are themselves task runs enqueued on their own
// intervals. Fan-out tasks read a bounded batch from the store and enqueue one
// downstream run per item with a cumulative jittered delay; that delay is the
// only rate limiting in the system.
package workflow
