// Package print provides helpers to print objects in CLI output
package print

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// JSON prints value to out
func JSON(w io.Writer, value any) error {
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.WithMessage(err, "unable to encode JSON")
	}
	_, err = fmt.Fprintln(w, string(b))
	return errors.WithStack(err)
}

// Yaml prints value to out
func Yaml(w io.Writer, value any) error {
	b, err := yaml.Marshal(value)
	if err != nil {
		return errors.WithMessage(err, "unable to encode YAML")
	}
	_, err = fmt.Fprint(w, string(b))
	return errors.WithStack(err)
}

// Object prints value in the specified format, json or yaml
func Object(w io.Writer, format string, value any) error {
	switch format {
	case "yaml":
		return Yaml(w, value)
	default:
		return JSON(w, value)
	}
}
