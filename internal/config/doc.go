// Package config loads the panel pipeline configuration.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later sources
// overriding earlier ones:
//
//	1. Built-in defaults (Default)
//	2. A YAML file, given explicitly or found in a standard location
//	3. Environment variables prefixed PANEL_
//
// # Environment Variables
//
// Nested sections map to underscored names:
//
//	PANEL_LOGGING_LEVEL=debug
//	PANEL_PATHS_DATA_DIR=/srv/shards
//	PANEL_PIPELINE_WORKERS=8
//	PANEL_PIPELINE_WIN_PCT=2.5
//	PANEL_PIPELINE_SELECTION_DISABLED=working_age,max_active_accounts
//
// # Validation
//
// The merged configuration is checked with struct tags
// (go-playground/validator) followed by cross-field rules such as
// min_age <= max_age.
package config
