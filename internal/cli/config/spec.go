// Package config defines the CLI configuration structure.
package config

import (
	"strconv"
	"time"
)

// CLIConfig is the configuration for credgate-cli, read from
// ~/.credgate/cli.yaml. Flags and CREDGATE_* environment variables
// override these values.
type CLIConfig struct {
	// DefaultServer is used when no --server flag is given.
	DefaultServer string `yaml:"default_server"`

	// DefaultOutput selects the output format: table, json, yaml.
	DefaultOutput string `yaml:"default_output"`

	// Timeout bounds every request issued by the CLI.
	Timeout time.Duration `yaml:"timeout"`

	// CAFile adds a PEM bundle to the trusted roots for HTTPS servers
	// with private CAs. Preferred over Insecure.
	CAFile string `yaml:"ca_file,omitempty"`

	// Insecure skips TLS certificate verification.
	Insecure bool `yaml:"insecure"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultServer: "http://localhost:5080",
		DefaultOutput: "table",
		Timeout:       30 * time.Second,
	}
}

// Set assigns a value to a configuration field by its yaml key.
func (c *CLIConfig) Set(key, value string) error {
	switch key {
	case "default_server":
		c.DefaultServer = value
	case "default_output":
		c.DefaultOutput = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return &ValidationError{Field: key, Value: value}
		}
		c.Timeout = d
	case "ca_file":
		c.CAFile = value
	case "insecure":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &ValidationError{Field: key, Value: value}
		}
		c.Insecure = b
	default:
		return &ValidationError{Field: key, Value: value}
	}
	return nil
}

// Validate checks the configuration for unusable values.
func (c *CLIConfig) Validate() error {
	switch c.DefaultOutput {
	case "", "table", "json", "yaml":
	default:
		return &ValidationError{Field: "default_output", Value: c.DefaultOutput}
	}
	if c.Timeout < 0 {
		return &ValidationError{Field: "timeout", Value: c.Timeout.String()}
	}
	return nil
}

// ValidationError reports a rejected configuration value.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return "invalid cli config: " + e.Field + " = " + e.Value
}
