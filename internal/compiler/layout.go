package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/triggersim/internal/channel"
	"github.com/roach88/triggersim/internal/ir"
)

// schemaSource constrains one trigger declaration. The definition is
// closed, so misspelled fields are rejected with a position.
const schemaSource = `
#Trigger: {
	delay?:         number & >=0
	activateOn?:    string | [...string]
	deactivateOn?:  string | [...string]
	triggerOn?:     string | [...string]
	whenTriggered?: null | string
	initialState?:  bool
	x?:             number
	y?:             number
}
`

// CompileLayout compiles the `trigger` struct of a CUE value into an ordered
// layout. Triggers keep their declaration order, which becomes the
// registry (and broadcast) order.
//
//	trigger: gate: {
//		activateOn:    "arm"
//		triggerOn:     ["b", "c"]
//		whenTriggered: "out"
//		delay:         1.5
//	}
func CompileLayout(v cue.Value) ([]ir.TriggerSnapshot, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	triggersVal := v.LookupPath(cue.ParsePath("trigger"))
	if !triggersVal.Exists() {
		return nil, &CompileError{
			Field:   "trigger",
			Message: "no trigger declarations found",
			Pos:     v.Pos(),
		}
	}

	schema := v.Context().CompileString(schemaSource).LookupPath(cue.ParsePath("#Trigger"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile trigger schema: %w", err)
	}

	iter, err := triggersVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	layout := []ir.TriggerSnapshot{}
	for iter.Next() {
		snap, err := compileTrigger(iter.Label(), iter.Value(), schema)
		if err != nil {
			return nil, err
		}
		layout = append(layout, *snap)
	}
	return layout, nil
}

// CompileTrigger compiles one trigger declaration. The id is the value's
// struct label.
func CompileTrigger(v cue.Value) (*ir.TriggerSnapshot, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	var id string
	if sels := v.Path().Selectors(); len(sels) > 0 {
		id = sels[len(sels)-1].Unquoted()
	}
	schema := v.Context().CompileString(schemaSource).LookupPath(cue.ParsePath("#Trigger"))
	return compileTrigger(id, v, schema)
}

func compileTrigger(id string, v cue.Value, schema cue.Value) (*ir.TriggerSnapshot, error) {
	if err := v.Unify(schema).Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	snap := &ir.TriggerSnapshot{ID: id}
	var err error

	if snap.Delay, err = numberField(v, "delay"); err != nil {
		return nil, err
	}
	if snap.ActivateOn, err = channelField(v, "activateOn"); err != nil {
		return nil, err
	}
	if snap.DeactivateOn, err = channelField(v, "deactivateOn"); err != nil {
		return nil, err
	}
	if snap.TriggerOn, err = channelField(v, "triggerOn"); err != nil {
		return nil, err
	}

	whenVal := v.LookupPath(cue.ParsePath("whenTriggered"))
	if whenVal.Exists() && whenVal.Kind() == cue.StringKind {
		s, err := whenVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		snap.WhenTriggered = ir.StringPtr(strings.TrimSpace(s))
	}

	initVal := v.LookupPath(cue.ParsePath("initialState"))
	if initVal.Exists() {
		if snap.InitialState, err = initVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if snap.X, err = numberField(v, "x"); err != nil {
		return nil, err
	}
	if snap.Y, err = numberField(v, "y"); err != nil {
		return nil, err
	}
	return snap, nil
}

// numberField reads an optional numeric field, defaulting to 0.
func numberField(v cue.Value, name string) (float64, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return 0, nil
	}
	n, err := f.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// channelField reads an optional channel set written either as the
// comma-joined string of the snapshot format or as a list of names.
func channelField(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}

	if f.Kind() == cue.ListKind {
		iter, err := f.List()
		if err != nil {
			return "", formatCUEError(err)
		}
		var names []string
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return "", formatCUEError(err)
			}
			names = append(names, channel.Parse(s)...)
		}
		return channel.Join(names), nil
	}

	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return channel.Join(channel.Parse(s)), nil
}

// CompileString compiles CUE source text into a layout. filename is used
// for error positions only.
func CompileString(filename, src string) ([]ir.TriggerSnapshot, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileLayout(v)
}

// CompileFile compiles a single .cue file into a layout.
func CompileFile(path string) ([]ir.TriggerSnapshot, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	return CompileLayout(v)
}

// CompileDir loads the CUE package in dir (every .cue file, unified) and
// compiles it into a layout.
func CompileDir(dir string) ([]ir.TriggerSnapshot, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	return CompileLayout(ctx.BuildInstance(inst))
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
