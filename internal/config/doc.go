// Package config loads and validates application configuration from the
// environment and an optional config file.
package config
