package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNoSteps is returned when a pipeline definition contains no steps.
// This is the only structural requirement enforced at load time; everything
// else is surfaced as lint issues by ValidateDefinition.
var ErrNoSteps = errors.New("pipeline definition must contain a non-empty 'steps' section")

// Load reads and parses a pipeline definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a pipeline definition from YAML bytes. It decodes twice: once
// into the typed Definition and once into a raw document map kept for
// canonical content hashing.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if len(def.Steps) == 0 {
		return nil, ErrNoSteps
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	def.doc = doc
	return &def, nil
}
