// Package config loads, normalizes, and validates Alchemist configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and WORDPRESS_APP_PASSWORD. The Config type centralizes
// every knob the scheduler, stages, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
