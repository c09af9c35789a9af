package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/LOLA0786/Devlake/internal/backend"
	"github.com/LOLA0786/Devlake/internal/config"
	"github.com/LOLA0786/Devlake/internal/metrics"
	"github.com/LOLA0786/Devlake/internal/table"
	"github.com/LOLA0786/Devlake/internal/transform"
)

// Test hooks for the tabular I/O collaborator.
var (
	loadTable  = table.Load
	writeTable = table.Write
)

// executeLocalStep interprets one step against the local backend, updating
// the run context's output cursor. Returned errors are step-local.
func (r *Runner) executeLocalStep(ctx context.Context, l backend.Local, step config.Step, rc *RunContext) error {
	switch step.Kind {
	case "load":
		return r.executeLoad(ctx, l, step, rc)
	case "transform":
		if step.Options.Has("sql") {
			return r.executeSQLTransform(ctx, l, step, rc)
		}
		return r.executeFnTransform(ctx, l, step, rc)
	case "save":
		return r.executeSave(l, step, rc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStepKind, step.Kind)
	}
}

// executeLoad fetches tabular data from the step's source URI and registers
// it under the declared alias.
func (r *Runner) executeLoad(ctx context.Context, l backend.Local, step config.Step, rc *RunContext) error {
	uri := step.Options.String("csv", "")
	if uri == "" {
		return fmt.Errorf("load step has no 'csv' source URI")
	}
	alias := step.Options.String("alias", "")
	if alias == "" {
		return fmt.Errorf("load step has no 'alias'")
	}

	log.Printf("runner: loading CSV from %s", uri)
	t, err := loadTable(ctx, uri)
	if err != nil {
		return fmt.Errorf("load %q: %w", uri, err)
	}
	if err := l.RegisterTable(ctx, alias, t); err != nil {
		return err
	}
	rc.LastOutputAlias = alias
	rc.lastTable = t
	metrics.RecordRows(r.def.Name, "loaded", int64(t.NumRows()))
	return nil
}

// executeSQLTransform runs the step's SQL against the engine. Input tables
// are resolved implicitly: the SQL text names its own sources among the
// already-registered aliases.
func (r *Runner) executeSQLTransform(ctx context.Context, l backend.Local, step config.Step, rc *RunContext) error {
	query := step.Options.String("sql", "")
	outputAlias := step.Options.String("output_alias", "")
	if outputAlias == "" {
		return fmt.Errorf("sql transform has no 'output_alias'")
	}

	result, err := l.Query(ctx, query)
	if err != nil {
		return err // already wrapped with backend.ErrQueryFailed
	}
	if err := l.RegisterTable(ctx, outputAlias, result); err != nil {
		return err
	}
	rc.LastOutputAlias = outputAlias
	rc.lastTable = result
	metrics.RecordRows(r.def.Name, "transformed", int64(result.NumRows()))
	return nil
}

// executeFnTransform applies a registered transform function to the table
// named by the run context's output cursor.
func (r *Runner) executeFnTransform(ctx context.Context, l backend.Local, step config.Step, rc *RunContext) error {
	name := step.Options.String("fn", "")
	if name == "" {
		return fmt.Errorf("transform step has neither 'sql' nor 'fn'")
	}

	in, ok := l.TableByAlias(rc.LastOutputAlias)
	if !ok {
		return fmt.Errorf("%w: no table registered under alias %q", ErrMissingInput, rc.LastOutputAlias)
	}

	log.Printf("runner: applying transform %q to %s", name, rc.LastOutputAlias)
	out, err := transform.Apply(name, in)
	if err != nil {
		return fmt.Errorf("transform %q: %w", name, err)
	}
	if out == nil {
		return fmt.Errorf("%w: transform %q", ErrNoOutputProduced, name)
	}

	outputAlias := step.Options.String("output_alias", rc.LastOutputAlias+"_transformed")
	if err := l.RegisterTable(ctx, outputAlias, out); err != nil {
		return err
	}
	rc.LastOutputAlias = outputAlias
	rc.lastTable = out
	metrics.RecordRows(r.def.Name, "transformed", int64(out.NumRows()))
	return nil
}

// executeSave writes the table named by the output cursor to the declared
// destination path, relative to the project root.
func (r *Runner) executeSave(l backend.Local, step config.Step, rc *RunContext) error {
	var path, format string
	for _, f := range []string{"parquet", "csv", "json"} {
		if p := step.Options.String(f, ""); p != "" {
			path, format = p, f
			break
		}
	}
	if path == "" {
		return fmt.Errorf("save step has no destination ('parquet', 'csv', or 'json')")
	}

	t, ok := l.TableByAlias(rc.LastOutputAlias)
	if !ok {
		return fmt.Errorf("%w: no table registered under alias %q", ErrMissingInput, rc.LastOutputAlias)
	}

	dest := filepath.Join(r.opts.Project, filepath.FromSlash(path))
	if err := writeTable(t, dest, format); err != nil {
		return fmt.Errorf("save to %s: %w", dest, err)
	}
	log.Printf("runner: saved %s to %s (%d rows)", format, dest, t.NumRows())
	metrics.RecordRows(r.def.Name, "saved", int64(t.NumRows()))
	return nil
}

// executeRemoteStep handles a step routed to a cloud target. Only transforms
// can run remotely; the dispatch result is bridged back into the local alias
// registry as a pointer table so subsequent local steps can reference it.
func (r *Runner) executeRemoteStep(
	ctx context.Context,
	target string,
	step config.Step,
	rc *RunContext,
	getLocal func() (backend.Local, error),
) error {
	if step.Kind != "transform" {
		return fmt.Errorf("%w: %q on target %q", ErrUnsupportedRemoteStep, step.Kind, target)
	}

	remote, err := r.newRemote(ctx, target)
	if err != nil {
		return err
	}
	result, err := remote.Dispatch(ctx, r.def, r.opts.DataSizeGB)
	if err != nil {
		return fmt.Errorf("dispatch to %s: %w", target, err)
	}

	l, err := getLocal()
	if err != nil {
		return fmt.Errorf("construct local backend for cloud-result bridge: %w", err)
	}

	// Bridge the remote result into the local registry: a pointer table
	// recording where the data lives and how big it is.
	bridged := &table.Table{
		Columns: []string{"cloud_path", "record_count"},
		Rows:    [][]any{{result.OutputURI, result.Records}},
	}
	outputAlias := step.Options.String("output_alias", "cloud_result")
	if err := l.RegisterTable(ctx, outputAlias, bridged); err != nil {
		return err
	}
	rc.LastOutputAlias = outputAlias
	rc.lastTable = bridged
	log.Printf("runner: bridged cloud result job=%s into alias %q", result.JobID, outputAlias)
	return nil
}
