package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/triggersim/internal/ir"
)

// marshalLayout converts a layout to canonical JSON TEXT for storage and
// returns its hash. The hash is computed over the same canonical form, so
// identical layouts always share one row.
func marshalLayout(layout []ir.TriggerSnapshot) (body string, hash string, err error) {
	if layout == nil {
		layout = []ir.TriggerSnapshot{}
	}
	data, err := ir.MarshalCanonical(layout)
	if err != nil {
		return "", "", fmt.Errorf("marshal layout: %w", err)
	}
	hash, err = ir.LayoutHash(layout)
	if err != nil {
		return "", "", fmt.Errorf("hash layout: %w", err)
	}
	return string(data), hash, nil
}

// unmarshalLayout parses a stored layout body.
func unmarshalLayout(body string) ([]ir.TriggerSnapshot, error) {
	layout := []ir.TriggerSnapshot{}
	if err := json.Unmarshal([]byte(body), &layout); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	return layout, nil
}
