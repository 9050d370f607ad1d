// Package distribution optimizes content metadata for search and publishes
// content to external platforms.
//
// Publish is idempotent per platform: the published_content row for a
// (content, platform) pair is checked before the target is called and is
// unique in the store.
package distribution
