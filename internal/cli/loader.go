package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/triggersim/internal/compiler"
	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/layout"
)

// LoadError represents an error that occurred during layout loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadLayout loads a layout from a JSON, YAML or CUE file, or from a
// directory holding a CUE package.
func LoadLayout(path string) ([]ir.TriggerSnapshot, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("layout not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing layout: %v", err)}
	}

	if info.IsDir() {
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		snaps, err := compiler.CompileDir(path)
		if err != nil {
			return nil, convertLoadError(err, path)
		}
		return snaps, nil
	}

	if _, err := layout.FormatFromPath(path); err != nil {
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: err.Error()}
	}
	snaps, err := layout.LoadFile(path)
	if err != nil {
		return nil, convertLoadError(err, path)
	}
	return snaps, nil
}

// convertLoadError converts a compiler or decoder error to a LoadError,
// keeping the CUE position when there is one.
func convertLoadError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	if layout.IsFormatError(err) {
		return &LoadError{Code: ErrCodeMalformed, Message: err.Error()}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Layout load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeMalformed   = "E008" // JSON/YAML document is not a layout
	ErrCodeUnsupported = "E009" // Unknown file extension
)
