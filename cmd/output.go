package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/josephgoksu/deepagent/internal/ui"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput() error {
	switch outputFormat {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("invalid --output %q: use text, json or yaml", outputFormat)
	}
}

func isStructured() bool {
	return outputFormat == outputJSON || outputFormat == outputYAML
}

// styled reports whether text output should use lipgloss styling.
func styled() bool {
	return outputFormat == outputText && ui.IsInteractive()
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// render writes v as JSON or YAML when requested, else calls text.
func render(w io.Writer, v any, text func(io.Writer) error) error {
	switch outputFormat {
	case outputJSON:
		return printJSON(w, v)
	case outputYAML:
		return printYAML(w, v)
	default:
		return text(w)
	}
}
