// Package output provides output formatting for credgate-cli.
package output

import (
	"io"

	"github.com/goccy/go-yaml"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format formats data as YAML.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w, yaml.Indent(2))
	defer enc.Close()
	return enc.Encode(data)
}
