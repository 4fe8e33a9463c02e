// Package config loads, normalizes, and validates showrunner's TOML
// configuration. Load applies defaults, expands paths, and fails fast on
// unusable values so every other component can assume a coherent config.
package config
