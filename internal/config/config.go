// Package config defines the canonical, YAML-serializable model for a
// devlake pipeline definition. It is intentionally small and explicit so that
// definitions can be loaded from disk and passed through the program without
// additional glue code.
//
// A pipeline file looks like:
//
//	name: user_cleanup
//	version: "1.0"
//	triggers:
//	  schedule: "0 9 * * 1"
//	steps:
//	  - load:
//	      csv: https://example.com/users.csv
//	      alias: raw_users
//	  - transform:
//	      sql: SELECT * FROM raw_users WHERE user_id IS NOT NULL
//	      output_alias: clean_users
//	  - save:
//	      parquet: output/users.parquet
//	tests:
//	  - assert_no_null: user_id
//	  - assert_unique: user_id
//
// Steps and tests are lists of single-key maps; the key selects the step or
// assertion kind and the value carries kind-specific options.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is the top-level object decoded from a pipeline file.
type Definition struct {
	// Name identifies the pipeline; it is used for metrics labeling and in
	// run reports.
	Name string `yaml:"name"`

	// Version is a free-form, user-facing version string. It participates in
	// the content hash (unlike Triggers).
	Version string `yaml:"version"`

	// Triggers is opaque scheduling metadata (map or list, depending on the
	// authoring style). It is excluded from the content hash: changing when a
	// pipeline runs does not change what data it produces.
	Triggers any `yaml:"triggers"`

	// Steps is the ordered list of pipeline steps. Must be non-empty.
	Steps []Step `yaml:"steps"`

	// Tests is the ordered list of data-quality assertions applied to the
	// final output table.
	Tests []Assertion `yaml:"tests"`

	// doc is the raw decoded document, kept for canonical hashing.
	doc map[string]any
}

// Document returns the raw decoded YAML document. The version package
// canonicalizes and hashes this map rather than the typed struct so the hash
// is insensitive to fields the struct does not model.
func (d *Definition) Document() map[string]any { return d.doc }

// Step is one pipeline step: a kind ("load", "transform", "save") plus a
// kind-specific options bag.
type Step struct {
	Kind    string
	Options Options
}

// UnmarshalYAML decodes the single-key map form used in pipeline files,
// e.g. `- load: {csv: ..., alias: ...}`.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]Options
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("step must be a single-key map: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("step must have exactly one kind key, got %d", len(m))
	}
	for kind, opts := range m {
		s.Kind = kind
		s.Options = opts
	}
	if s.Options == nil {
		s.Options = Options{}
	}
	return nil
}

// Target returns the execution target for the step, defaulting to "local"
// when the step does not declare one. Target names are case-insensitive in
// pipeline files; the factory registry is keyed by the lowercase form.
func (s Step) Target() string {
	return strings.ToLower(s.Options.String("target", "local"))
}

// Assertion is one data-quality check: a kind ("assert_no_null",
// "assert_unique") applied to a single column.
type Assertion struct {
	Kind   string
	Column string
}

// UnmarshalYAML decodes the single-key map form used in pipeline files,
// e.g. `- assert_no_null: user_id`.
func (a *Assertion) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]string
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("test must be a single-key map of kind to column: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("test must have exactly one kind key, got %d", len(m))
	}
	for kind, col := range m {
		a.Kind = kind
		a.Column = col
	}
	return nil
}

// Options is a small helper to fetch typed values from arbitrary YAML maps
// without introducing a configuration library. It performs only minimal type
// coercion and returns the provided default when a key is absent or of an
// unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. yaml.v3 decodes integers as int
// and unmarked numbers occasionally as float64; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

// Float64 returns the float64 value for key or def, accepting ints as well.
func (o Options) Float64(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return def
}

// Has reports whether key is present at all.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}
