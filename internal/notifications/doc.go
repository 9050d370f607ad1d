// Package notifications delivers pipeline events to ntfy.
//
// NewService returns a no-op Service when no topic is configured. Each event
// kind can be switched off in [notifications]; suppressed events return nil
// without touching the network.
package notifications
