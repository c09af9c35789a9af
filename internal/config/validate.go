// This file adds a lightweight linter for Definition values. It performs
// static checks over a decoded Definition and returns a list of issues
// (errors and warnings) that callers can surface in the CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a definition issue.
type IssueSeverity string

const (
	// SeverityError indicates a definition error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Definition.
//
// Path is a dotted path into the definition (e.g. "steps[1].output_alias").
// Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateDefinition performs static validation of a pipeline definition.
// It does not mutate the definition; callers decide whether warnings are
// fatal. Structural well-formedness (non-empty steps) is already enforced by
// Parse, so this focuses on per-step and per-test shape.
func ValidateDefinition(d *Definition) []Issue {
	var issues []Issue

	if strings.TrimSpace(d.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "name",
			Message:  "name must not be empty; it is used for metrics labeling and run reports",
		})
	}

	for i, s := range d.Steps {
		issues = append(issues, validateStep(i, s)...)
	}
	for i, a := range d.Tests {
		issues = append(issues, validateAssertion(i, a)...)
	}
	return issues
}

func validateStep(i int, s Step) []Issue {
	var issues []Issue
	path := func(key string) string { return fmt.Sprintf("steps[%d].%s", i, key) }

	switch s.Kind {
	case "load":
		if !s.Options.Has("csv") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("csv"),
				Message:  "load step requires a 'csv' source URI",
			})
		}
		if s.Options.String("alias", "") == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("alias"),
				Message:  "load step requires a non-empty 'alias'",
			})
		}
	case "transform":
		hasSQL := s.Options.Has("sql")
		hasFn := s.Options.Has("fn")
		if !hasSQL && !hasFn {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("sql"),
				Message:  "transform step requires either 'sql' text or a registered 'fn' name",
			})
		}
		if hasSQL && s.Options.String("output_alias", "") == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("output_alias"),
				Message:  "sql transform requires a non-empty 'output_alias'",
			})
		}
	case "save":
		if !s.Options.Has("parquet") && !s.Options.Has("csv") && !s.Options.Has("json") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("parquet"),
				Message:  "save step requires a destination: one of 'parquet', 'csv', or 'json'",
			})
		}
	default:
		// Unknown kinds are warnings: the runner skips them at execution time.
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     fmt.Sprintf("steps[%d]", i),
			Message:  fmt.Sprintf("unknown step kind %q; the step will be skipped at run time", s.Kind),
		})
	}
	return issues
}

func validateAssertion(i int, a Assertion) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"assert_no_null": {},
		"assert_unique":  {},
	}
	if _, ok := known[a.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     fmt.Sprintf("tests[%d]", i),
			Message:  fmt.Sprintf("unknown test kind %q; it will be ignored", a.Kind),
		})
		return issues
	}
	if strings.TrimSpace(a.Column) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     fmt.Sprintf("tests[%d].column", i),
			Message:  fmt.Sprintf("%s requires a non-empty column name", a.Kind),
		})
	}
	return issues
}
