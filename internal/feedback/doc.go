// Package feedback closes the loop: it records performance samples for
// published content and turns the aggregates into directives.
//
// Directives are stored as PENDING for an operator or a later consumer. The
// analyzer never acts on them itself.
package feedback
