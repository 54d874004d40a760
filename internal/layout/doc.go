// Package layout reads and writes trigger layouts: the ordered list of
// trigger snapshots that a network is saved as.
//
// JSON is the interchange format (one array, one object per trigger). YAML
// carries the same shape for hand-written layouts, and .cue files are
// compiled through package compiler.
//
// Decoding validates the whole document before returning anything, so a
// malformed file never reaches the engine and never clears the current
// network. Id problems (empty, duplicate) are not format errors: they are
// reported per entry by the registry when the layout is loaded.
package layout
