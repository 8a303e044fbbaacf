// Package config loads tool configuration from defaults, an optional
// YAML or TOML file, and HIBP_* environment variables, in that order.
// Command-line flags are applied on top by each tool's main.
package config
