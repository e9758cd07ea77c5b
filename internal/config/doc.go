// Package config loads the jam service configuration.
//
// Configuration is a YAML file with ${VAR} environment expansion, layered
// with conventional environment variables (GOOGLE_CLIENT_ID,
// ANTHROPIC_API_KEY, ...) and defaults. All knobs that bound the sync
// pipeline (fetch window, message cap, body truncation, confidence gate)
// live here so they are visible in one place.
package config
