// Package config loads and validates the meshwatch server configuration from
// YAML. Secrets (API keys, webhook URLs) are referenced by environment
// variable name and resolved at use time, never stored in the file. Watch
// provides fsnotify-based hot reload; a failed reload keeps the previous
// configuration.
package config
