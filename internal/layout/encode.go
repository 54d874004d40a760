package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/triggersim/internal/ir"
)

// Encode serializes a layout. JSON output is an indented array in the
// interchange shape (whenTriggered is null for silent triggers).
func Encode(layout []ir.TriggerSnapshot, format Format) ([]byte, error) {
	if layout == nil {
		layout = []ir.TriggerSnapshot{}
	}
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(layout); err != nil {
			return nil, fmt.Errorf("encode layout: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(layout); err != nil {
			return nil, fmt.Errorf("encode layout: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode layout: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("cannot encode layouts as %q", format)
}

// SaveFile writes a layout, picking the format from the extension.
func SaveFile(path string, layout []ir.TriggerSnapshot) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(layout, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}
