// Package config loads batch configuration files. A batch file is YAML
// naming one or more web maps and, per web map, the layer filter and form
// default sections to apply. Files are validated against an embedded CUE
// schema before they are decoded, so typos and type mistakes surface with
// file positions instead of as silent no-ops at mutation time.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/fieldmaps/webmapctl/internal/engine"
)

//go:embed schema.cue
var schemaSource string

// Batch is one parsed configuration file.
type Batch struct {
	Webmaps []Webmap `yaml:"webmaps"`
}

// Webmap holds the mutation sections for a single web map, keyed by
// feature layer address. A section left empty means the corresponding
// operation is not run for this map.
type Webmap struct {
	ID      string                              `yaml:"id"`
	Filters map[string]engine.LayerFilterConfig `yaml:"filters,omitempty"`
	Forms   map[string]engine.LayerFormConfig   `yaml:"forms,omitempty"`
}

// ConfigError reports a problem with a configuration file. Line and Column
// are set when the validator produced a position inside that file.
type ConfigError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Load reads and parses the batch file at path.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}
	return Parse(path, data)
}

// Parse validates data against the embedded schema and decodes it. The
// filename is only used to label error positions.
func Parse(filename string, data []byte) (*Batch, error) {
	if err := validate(filename, data); err != nil {
		return nil, err
	}

	var batch Batch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&batch); err != nil {
		return nil, &ConfigError{Path: filename, Message: err.Error()}
	}
	if len(batch.Webmaps) == 0 {
		return nil, &ConfigError{Path: filename, Message: "no webmaps defined"}
	}
	return &batch, nil
}

func validate(filename string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling embedded config schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return newConfigError(filename, err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return newConfigError(filename, err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return newConfigError(filename, err)
	}
	return nil
}

// newConfigError extracts the first CUE error and, when it points into the
// user's file rather than the embedded schema, its position.
func newConfigError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Path: path, Message: err.Error()}
	}
	first := errs[0]
	cfgErr := &ConfigError{Path: path, Message: first.Error()}
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() == path {
			cfgErr.Line = pos.Line()
			cfgErr.Column = pos.Column()
			break
		}
	}
	return cfgErr
}
