package config

import (
	"errors"
	"testing"
)

const sampleYAML = `
name: user_cleanup
version: "1.0"
triggers:
  schedule: "0 9 * * 1"
steps:
  - load:
      csv: https://example.com/users.csv
      alias: raw_users
  - transform:
      sql: SELECT * FROM raw_users WHERE user_id IS NOT NULL
      output_alias: clean_users
      target: aws
  - save:
      parquet: output/users.parquet
tests:
  - assert_no_null: user_id
  - assert_unique: user_id
`

func TestParse_DecodesStepsAndTests(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if def.Name != "user_cleanup" {
		t.Errorf("Name = %q, want user_cleanup", def.Name)
	}
	if len(def.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(def.Steps))
	}

	load := def.Steps[0]
	if load.Kind != "load" {
		t.Errorf("Steps[0].Kind = %q, want load", load.Kind)
	}
	if got := load.Options.String("alias", ""); got != "raw_users" {
		t.Errorf("Steps[0].alias = %q, want raw_users", got)
	}
	if got := load.Target(); got != "local" {
		t.Errorf("Steps[0].Target() = %q, want local (default)", got)
	}

	tr := def.Steps[1]
	if tr.Kind != "transform" {
		t.Errorf("Steps[1].Kind = %q, want transform", tr.Kind)
	}
	if got := tr.Target(); got != "aws" {
		t.Errorf("Steps[1].Target() = %q, want aws", got)
	}

	if len(def.Tests) != 2 {
		t.Fatalf("len(Tests) = %d, want 2", len(def.Tests))
	}
	if def.Tests[0].Kind != "assert_no_null" || def.Tests[0].Column != "user_id" {
		t.Errorf("Tests[0] = %+v, want assert_no_null on user_id", def.Tests[0])
	}

	if def.Document()["name"] != "user_cleanup" {
		t.Errorf("Document()[name] = %v, want user_cleanup", def.Document()["name"])
	}
}

func TestParse_NoStepsFails(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"name: empty\n",
		"name: empty\nsteps: []\n",
	} {
		if _, err := Parse([]byte(src)); !errors.Is(err, ErrNoSteps) {
			t.Errorf("Parse(%q) error = %v, want ErrNoSteps", src, err)
		}
	}
}

func TestParse_StepMustBeSingleKeyMap(t *testing.T) {
	t.Parallel()

	const src = `
name: bad
steps:
  - load:
      csv: a.csv
      alias: t1
    transform:
      sql: SELECT 1
      output_alias: t2
`
	if _, err := Parse([]byte(src)); err == nil {
		t.Fatalf("Parse() error = nil, want multi-key step error")
	}
}

func TestStep_TargetIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Local": "local",
		"AWS":   "aws",
		"gcp":   "gcp",
	}
	for declared, want := range cases {
		s := Step{Kind: "transform", Options: Options{"target": declared}}
		if got := s.Target(); got != want {
			t.Errorf("Target() with target: %s = %q, want %q", declared, got, want)
		}
	}
}

func TestOptions_TypedAccessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":  "text",
		"b":  true,
		"i":  7,
		"f":  2.5,
		"ig": float64(9),
	}

	if got := o.String("s", "x"); got != "text" {
		t.Errorf("String(s) = %q, want text", got)
	}
	if got := o.String("missing", "x"); got != "x" {
		t.Errorf("String(missing) = %q, want default x", got)
	}
	if got := o.Bool("b", false); !got {
		t.Errorf("Bool(b) = false, want true")
	}
	if got := o.Int("i", 0); got != 7 {
		t.Errorf("Int(i) = %d, want 7", got)
	}
	if got := o.Int("ig", 0); got != 9 {
		t.Errorf("Int(ig) = %d, want 9", got)
	}
	if got := o.Float64("f", 0); got != 2.5 {
		t.Errorf("Float64(f) = %v, want 2.5", got)
	}
	if got := o.Float64("i", 0); got != 7 {
		t.Errorf("Float64(i) = %v, want 7", got)
	}
	if !o.Has("s") || o.Has("missing") {
		t.Errorf("Has() misreported key presence")
	}
}

func TestValidateDefinition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		yaml       string
		wantErrors int
		wantWarns  int
	}{
		{
			name:       "valid pipeline",
			yaml:       sampleYAML,
			wantErrors: 0,
			wantWarns:  0,
		},
		{
			name: "missing name and load alias",
			yaml: `
steps:
  - load:
      csv: a.csv
`,
			wantErrors: 2,
		},
		{
			name: "sql transform without output alias",
			yaml: `
name: p
steps:
  - transform:
      sql: SELECT 1
`,
			wantErrors: 1,
		},
		{
			name: "unknown step and test kinds warn",
			yaml: `
name: p
steps:
  - explode:
      everything: true
tests:
  - assert_positive: amount
`,
			wantWarns: 2,
		},
		{
			name: "save without destination",
			yaml: `
name: p
steps:
  - save:
      target: local
`,
			wantErrors: 1,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			def, err := Parse([]byte(tc.yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			issues := ValidateDefinition(def)

			var gotErrors, gotWarns int
			for _, iss := range issues {
				switch iss.Severity {
				case SeverityError:
					gotErrors++
				case SeverityWarning:
					gotWarns++
				}
			}
			if gotErrors != tc.wantErrors {
				t.Errorf("errors = %d, want %d (issues: %v)", gotErrors, tc.wantErrors, issues)
			}
			if gotWarns != tc.wantWarns {
				t.Errorf("warnings = %d, want %d (issues: %v)", gotWarns, tc.wantWarns, issues)
			}
		})
	}
}
