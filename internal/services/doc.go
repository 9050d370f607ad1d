// Package services defines shared utilities consumed by pipeline stages and
// the collaborator clients under its subpackages.
//
// Key responsibilities:
//   - Context helpers that stamp task names, task run ids, entity ids, and
//     correlation identifiers for logging.
//   - Structured error markers plus Wrap, Retryable, and Details, which stages
//     use to classify collaborator failures as transient or terminal.
//
// Subpackages hold the HTTP and process clients (LLM, fetcher, feeds, image
// generation, speech, video, WordPress, analytics) that satisfy the narrow
// collaborator interfaces declared by the stage packages.
package services
