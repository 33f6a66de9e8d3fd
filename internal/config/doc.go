// Package config provides environment-based configuration.
//
// Loads env vars into a Config struct, validates required fields and the
// registry/score backend selection.
package config
