// Package main implements the alchemist command line.
//
// The CLI runs the pipeline daemon in the foreground (`alchemist run`) and
// inspects or edits its SQLite store directly for everything else: status,
// the task queue, and analyzer directives. Commands that only touch the
// configuration file skip loading it through the skipConfigLoad annotation.
package main
