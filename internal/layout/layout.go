package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/triggersim/internal/channel"
	"github.com/roach88/triggersim/internal/compiler"
	"github.com/roach88/triggersim/internal/ir"
)

// Format identifies a layout encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", fmt.Errorf("unsupported layout extension %q (want .json, .yaml, .yml or .cue)", filepath.Ext(path))
}

// FormatError rejects a whole layout document.
type FormatError struct {
	Format  Format
	Index   int    // element index, or -1 for the document itself
	Field   string // offending field, if any
	Message string
}

func (e *FormatError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("malformed %s layout: %s", e.Format, e.Message)
	case e.Field != "":
		return fmt.Sprintf("malformed %s layout: entry %d: %s: %s", e.Format, e.Index, e.Field, e.Message)
	}
	return fmt.Sprintf("malformed %s layout: entry %d: %s", e.Format, e.Index, e.Message)
}

// IsFormatError returns true if err is a FormatError.
// Uses errors.As to handle wrapped errors.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// Decode parses a JSON or YAML layout document. CUE source goes through
// compiler.CompileString; see LoadFile.
func Decode(data []byte, format Format) ([]ir.TriggerSnapshot, error) {
	var doc any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, &FormatError{Format: format, Index: -1, Message: err.Error()}
		}
		if dec.More() {
			return nil, &FormatError{Format: format, Index: -1, Message: "trailing data after layout array"}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &FormatError{Format: format, Index: -1, Message: err.Error()}
		}
	case FormatCUE:
		return compiler.CompileString("layout.cue", string(data))
	default:
		return nil, fmt.Errorf("unsupported layout format %q", format)
	}
	return fromDocument(doc, format)
}

// LoadFile reads and decodes a layout file, picking the format from its
// extension.
func LoadFile(path string) ([]ir.TriggerSnapshot, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatCUE {
		return compiler.CompileFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return Decode(data, format)
}

// FromDocument converts a document already decoded into generic values
// (as encoding/json or yaml.v3 produce for an any target), applying the same
// checks as Decode.
func FromDocument(doc any, format Format) ([]ir.TriggerSnapshot, error) {
	return fromDocument(doc, format)
}

// fromDocument validates the decoded document as a whole and converts it.
func fromDocument(doc any, format Format) ([]ir.TriggerSnapshot, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, &FormatError{
			Format:  format,
			Index:   -1,
			Message: fmt.Sprintf("expected an array of triggers, got %s", describe(doc)),
		}
	}

	out := make([]ir.TriggerSnapshot, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, &FormatError{
				Format:  format,
				Index:   i,
				Message: fmt.Sprintf("expected an object, got %s", describe(item)),
			}
		}
		snap, err := snapshotFromFields(fields)
		if err != nil {
			err.Format = format
			err.Index = i
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func snapshotFromFields(fields map[string]any) (ir.TriggerSnapshot, *FormatError) {
	var snap ir.TriggerSnapshot

	switch id := fields["id"].(type) {
	case nil:
	case string:
		snap.ID = id
	default:
		return snap, &FormatError{Field: "id", Message: fmt.Sprintf("expected a string, got %s", describe(id))}
	}

	var ferr *FormatError
	if snap.Delay, ferr = numberField(fields, "delay"); ferr != nil {
		return snap, ferr
	}
	if snap.X, ferr = numberField(fields, "x"); ferr != nil {
		return snap, ferr
	}
	if snap.Y, ferr = numberField(fields, "y"); ferr != nil {
		return snap, ferr
	}

	// Channel lists never fail: non-strings collapse to no channels.
	snap.ActivateOn = channel.Join(channel.ParseValue(fields["activateOn"]))
	snap.DeactivateOn = channel.Join(channel.ParseValue(fields["deactivateOn"]))
	snap.TriggerOn = channel.Join(channel.ParseValue(fields["triggerOn"]))

	switch w := fields["whenTriggered"].(type) {
	case nil:
	case string:
		snap.WhenTriggered = ir.StringPtr(strings.TrimSpace(w))
	default:
		return snap, &FormatError{Field: "whenTriggered", Message: fmt.Sprintf("expected a string or null, got %s", describe(w))}
	}

	switch b := fields["initialState"].(type) {
	case nil:
	case bool:
		snap.InitialState = b
	default:
		return snap, &FormatError{Field: "initialState", Message: fmt.Sprintf("expected a boolean, got %s", describe(b))}
	}

	return snap, nil
}

// numberField reads an optional number. JSON numbers arrive as
// json.Number, YAML numbers as int or float64.
func numberField(fields map[string]any, name string) (float64, *FormatError) {
	var f float64
	switch v := fields[name].(type) {
	case nil:
		return 0, nil
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, &FormatError{Field: name, Message: err.Error()}
		}
		f = n
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float64:
		f = v
	default:
		return 0, &FormatError{Field: name, Message: fmt.Sprintf("expected a number, got %s", describe(v))}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &FormatError{Field: name, Message: "expected a finite number"}
	}
	return f, nil
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, int, int64, uint64, float64:
		return "a number"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	}
	return fmt.Sprintf("%T", v)
}
