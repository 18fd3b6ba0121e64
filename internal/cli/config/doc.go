// Package config provides CLI configuration for credgate-cli.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: CLIConfig struct (~/.credgate/cli.yaml)
//   - loader.go: Configuration loading and saving
//
// Configuration includes:
//
//   - Default server endpoint
//   - Output format preferences
//   - Request timeout
package config
