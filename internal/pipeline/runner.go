// Package pipeline orchestrates the execution of a pipeline definition:
// walking the step list, dispatching each step to the right execution
// backend, tracking the current-output cursor, running data-quality
// assertions, and snapshotting branch state under the definition's content
// hash.
//
// One Runner serves both execution modes through a per-step target-resolution
// strategy: Run pins every step to the run-level target, RunHybrid reads each
// step's own `target` field. Steps execute strictly sequentially; within one
// run exactly one Local backend exists (created lazily on first local step)
// while a fresh Remote backend is built for every remote step.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LOLA0786/Devlake/internal/assert"
	"github.com/LOLA0786/Devlake/internal/backend"
	"github.com/LOLA0786/Devlake/internal/config"
	"github.com/LOLA0786/Devlake/internal/metrics"
	"github.com/LOLA0786/Devlake/internal/snapshot"
	"github.com/LOLA0786/Devlake/internal/table"
	"github.com/LOLA0786/Devlake/internal/version"
)

// newBackend is a test hook that points to backend.New by default. Tests may
// replace it to count constructions or substitute fakes.
var newBackend = backend.New

// Options configures one run.
type Options struct {
	// Project is the project root directory.
	Project string

	// Branch names the data branch the run writes to. Defaults to "main".
	Branch string

	// Target is the run-level execution target used by Run ("local", "aws",
	// "azure", "gcp"). Defaults to "local". RunHybrid ignores it.
	Target string

	// Size is the cloud instance-size hint.
	Size string

	// DataSizeGB is the estimated input volume forwarded to cloud dispatch.
	DataSizeGB float64
}

func (o *Options) normalize() {
	if o.Branch == "" {
		o.Branch = "main"
	}
	o.Target = strings.ToLower(o.Target)
	if o.Target == "" {
		o.Target = "local"
	}
}

// RunContext is the mutable cursor threaded through step execution. It is
// owned exclusively by the runner for the duration of one run and never
// shared across runs.
type RunContext struct {
	// LastOutputAlias is the alias most recently produced by a step; steps
	// that omit an explicit input read it.
	LastOutputAlias string

	// lastTable is the most recently produced table, used for the final
	// data-quality verdict.
	lastTable *table.Table
}

// StepStatus reports the outcome of one step.
type StepStatus struct {
	Index    int // 1-based position in the step list
	Kind     string
	Target   string
	Duration time.Duration
	Err      error // nil on success
}

// Failed reports whether the step was skipped due to a step-local failure.
func (s StepStatus) Failed() bool { return s.Err != nil }

// Report is the final result of a run. Step failures are non-fatal and
// surfaced here; the run itself only errors on definition or infrastructure
// problems (backend construction, snapshotting).
type Report struct {
	Pipeline    string
	Hash        string
	Branch      string
	Steps       []StepStatus
	FailedSteps int

	// TestsRun is false when the run produced no non-empty final table or the
	// definition declares no tests; no vacuous verdict is reported then.
	TestsRun    bool
	TestsPassed bool
	TestResults []assert.Result

	// SnapshotCreated is true when this run wrote a new snapshot.
	SnapshotCreated bool

	// Dispatch is set for whole-pipeline cloud runs.
	Dispatch *backend.DispatchResult
}

// Runner executes one pipeline definition against a project.
type Runner struct {
	def   *config.Definition
	opts  Options
	store *snapshot.Store
}

// NewRunner builds a Runner for the given definition.
func NewRunner(def *config.Definition, opts Options) *Runner {
	opts.normalize()
	return &Runner{
		def:   def,
		opts:  opts,
		store: snapshot.NewStore(opts.Project),
	}
}

// Run executes every step against the run-level target. A non-local target
// dispatches the whole pipeline to the cloud and records a metadata-only
// version; "local" walks the steps against the embedded engine.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.opts.Target != "local" {
		return r.runCloud(ctx)
	}
	return r.run(ctx, func(config.Step) string { return "local" })
}

// RunHybrid executes the pipeline selecting a backend per step from each
// step's `target` field.
func (r *Runner) RunHybrid(ctx context.Context) (*Report, error) {
	return r.run(ctx, func(s config.Step) string { return s.Target() })
}

// run is the shared orchestration loop, parameterized by the target
// resolution strategy.
func (r *Runner) run(ctx context.Context, resolveTarget func(config.Step) string) (*Report, error) {
	hash, err := version.Hash(r.def)
	if err != nil {
		return nil, err
	}
	log.Printf("runner: pipeline=%s version=%s branch=%s", r.def.Name, hash, r.opts.Branch)

	report := &Report{Pipeline: r.def.Name, Hash: hash, Branch: r.opts.Branch}
	rc := &RunContext{}

	// Exactly one Local backend per run, created on first use and released
	// exactly once on every exit path, after the snapshot step.
	var local backend.Local
	defer func() {
		if local != nil {
			if cerr := local.Close(); cerr != nil {
				log.Printf("runner: close local backend: %v", cerr)
			}
		}
	}()

	getLocal := func() (backend.Local, error) {
		if local != nil {
			return local, nil
		}
		b, err := newBackend(ctx, "local", backend.Config{
			Project: r.opts.Project,
			Branch:  r.opts.Branch,
		})
		if err != nil {
			return nil, err
		}
		l, ok := b.(backend.Local)
		if !ok {
			return nil, fmt.Errorf("backend for target \"local\" does not implement the local capability")
		}
		local = l
		return local, nil
	}

	total := len(r.def.Steps)
	for i, step := range r.def.Steps {
		target := resolveTarget(step)
		log.Printf("runner: [%d/%d] %s step target=%s", i+1, total, strings.ToUpper(step.Kind), target)

		start := time.Now()
		var stepErr error
		if target == "local" {
			l, err := getLocal()
			if err != nil {
				return nil, fmt.Errorf("construct local backend: %w", err)
			}
			stepErr = r.executeLocalStep(ctx, l, step, rc)
		} else {
			stepErr = r.executeRemoteStep(ctx, target, step, rc, getLocal)
		}
		dur := time.Since(start)
		metrics.RecordStep(r.def.Name, step.Kind, stepErr, dur)

		report.Steps = append(report.Steps, StepStatus{
			Index:    i + 1,
			Kind:     step.Kind,
			Target:   target,
			Duration: dur,
			Err:      stepErr,
		})
		if stepErr != nil {
			report.FailedSteps++
			log.Printf("runner: step %d/%d failed (continuing): %v", i+1, total, stepErr)
		}
	}

	r.runAssertions(rc, report)

	created, err := r.store.Create(r.opts.Branch, hash)
	if err != nil {
		return report, err
	}
	report.SnapshotCreated = created

	verdict := "completed"
	if report.TestsRun && !report.TestsPassed {
		verdict = "tests_failed"
	}
	metrics.RecordRun(r.def.Name, verdict)
	return report, nil
}

// runAssertions evaluates the definition's tests against the final table.
// Skipped entirely (no vacuous pass) when the run produced no non-empty table
// or the definition declares no tests.
func (r *Runner) runAssertions(rc *RunContext, report *Report) {
	if rc.lastTable.NumRows() == 0 || len(r.def.Tests) == 0 {
		return
	}
	passed, results := assert.Run(rc.lastTable, r.def.Tests)
	report.TestsRun = true
	report.TestsPassed = passed
	report.TestResults = results
	for _, res := range results {
		log.Printf("runner: [%s] %s on column %q (%s)", res.Status(), res.Kind, res.Column, res.Observed)
	}
}

// runCloud dispatches the whole pipeline to the run-level cloud target and
// records a metadata-only version in place of a data snapshot.
func (r *Runner) runCloud(ctx context.Context) (*Report, error) {
	hash, err := version.Hash(r.def)
	if err != nil {
		return nil, err
	}
	report := &Report{Pipeline: r.def.Name, Hash: hash, Branch: r.opts.Branch}

	remote, err := r.newRemote(ctx, r.opts.Target)
	if err != nil {
		return nil, err
	}
	result, err := remote.Dispatch(ctx, r.def, r.opts.DataSizeGB)
	if err != nil {
		return report, fmt.Errorf("cloud dispatch: %w", err)
	}
	report.Dispatch = &result

	meta := snapshot.CloudMetadata{
		Source:       fmt.Sprintf("Cloud Storage (%s)", strings.ToUpper(r.opts.Target)),
		PipelineHash: hash,
		Timestamp:    time.Now().UTC(),
		JobID:        result.JobID,
		OutputURI:    result.OutputURI,
	}
	if err := r.store.WriteCloudMetadata(hash, meta); err != nil {
		return report, err
	}
	report.SnapshotCreated = true

	metrics.RecordRun(r.def.Name, "completed")
	return report, nil
}

// newRemote constructs a fresh remote backend for target.
func (r *Runner) newRemote(ctx context.Context, target string) (backend.Remote, error) {
	b, err := newBackend(ctx, target, backend.Config{
		Project: r.opts.Project,
		Branch:  r.opts.Branch,
		Size:    r.opts.Size,
	})
	if err != nil {
		return nil, err
	}
	remote, ok := b.(backend.Remote)
	if !ok {
		return nil, fmt.Errorf("backend for target %q does not implement the remote capability", target)
	}
	return remote, nil
}
