// Package config loads and validates the bot configuration.
// Tunables come from a YAML file; the Discord token and language-model
// API key are read from the environment (with .env support).
package config
