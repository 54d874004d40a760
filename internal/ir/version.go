package ir

// Version constants for the layout format and engine.
const (
	// FormatVersion is the layout snapshot format version.
	FormatVersion = "1"

	// EngineVersion is the triggersim engine version.
	EngineVersion = "0.1.0"
)
