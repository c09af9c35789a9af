// Command devlake executes declarative data pipelines against a local
// embedded engine or a cloud target, versioning the produced data by the
// pipeline definition's content hash.
//
// Usage:
//
//	devlake run      -pipeline pipelines/users.yaml [-project DIR] [-branch NAME] [-target local|aws|azure|gcp] [-hybrid]
//	devlake checkout -hash HASH [-project DIR] [-branch NAME]
//	devlake hash     -pipeline pipelines/users.yaml
//	devlake versions [-project DIR]
//	devlake schema   [-project DIR] [-branch NAME]
//	devlake init     -project DIR
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/LOLA0786/Devlake/internal/config"
	"github.com/LOLA0786/Devlake/internal/metrics"
	"github.com/LOLA0786/Devlake/internal/metrics/prompush"
	"github.com/LOLA0786/Devlake/internal/pipeline"
	"github.com/LOLA0786/Devlake/internal/snapshot"
	"github.com/LOLA0786/Devlake/internal/version"

	// register all execution backends with the backend factory.
	_ "github.com/LOLA0786/Devlake/internal/backend/all"

	"github.com/LOLA0786/Devlake/internal/backend"
	"github.com/LOLA0786/Devlake/internal/backend/local"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "checkout":
		err = cmdCheckout(os.Args[2:])
	case "hash":
		err = cmdHash(os.Args[2:])
	case "versions":
		err = cmdVersions(os.Args[2:])
	case "schema":
		err = cmdSchema(os.Args[2:])
	case "init":
		err = cmdInit(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `devlake: declarative data pipelines with content-addressed versioning

Commands:
  run       execute a pipeline and snapshot the resulting data version
  checkout  restore a branch's data to a stored version
  hash      print the data version hash of a pipeline definition
  versions  list stored data versions for a project
  schema    print the engine catalog for a branch
  init      scaffold a new devlake project`)
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		pipelinePath   = fs.String("pipeline", "", "pipeline definition YAML path")
		project        = fs.String("project", ".", "project root directory")
		branch         = fs.String("branch", "main", "data branch to run against")
		target         = fs.String("target", "local", "run-level execution target (local, aws, azure, gcp)")
		hybrid         = fs.Bool("hybrid", false, "resolve the execution target per step from each step's 'target' field")
		size           = fs.String("size", "medium", "cloud instance size hint")
		dataSizeGB     = fs.Float64("data-size-gb", 1.0, "estimated input volume for cloud dispatch")
		validate       = fs.Bool("validate", false, "validate the definition and exit")
		metricsBackend = fs.String("metrics-backend", "none", "metrics backend to use (pushgateway, none)")
		pushGatewayURL = fs.String("pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pipelinePath == "" {
		return errors.New("run: -pipeline is required")
	}

	def, err := config.Load(*pipelinePath)
	if err != nil {
		return err
	}

	issues := config.ValidateDefinition(def)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		return fmt.Errorf("definition is invalid: %s", *pipelinePath)
	}
	if *validate {
		log.Printf("definition is valid: %s", *pipelinePath)
		return nil
	}

	setupMetrics(*metricsBackend, *pushGatewayURL, def.Name)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	runner := pipeline.NewRunner(def, pipeline.Options{
		Project:    *project,
		Branch:     *branch,
		Target:     *target,
		Size:       *size,
		DataSizeGB: *dataSizeGB,
	})

	ctx := context.Background()
	start := time.Now()

	var report *pipeline.Report
	if *hybrid {
		report, err = runner.RunHybrid(ctx)
	} else {
		report, err = runner.Run(ctx)
	}
	if err != nil {
		return err
	}

	printReport(report, time.Since(start))
	return nil
}

// printReport renders the final per-step status lines and overall verdict.
// Step failures do not affect the exit code; the aggregated count makes them
// visible.
func printReport(r *pipeline.Report, elapsed time.Duration) {
	fmt.Printf("\nPipeline: %s (version %s, branch %s)\n", r.Pipeline, r.Hash, r.Branch)
	for _, s := range r.Steps {
		status := "ok"
		if s.Failed() {
			status = "FAILED: " + s.Err.Error()
		}
		fmt.Printf("  [%d] %-9s target=%-6s %s\n", s.Index, s.Kind, s.Target, status)
	}
	if r.Dispatch != nil {
		fmt.Printf("  dispatched job=%s service=%q output=%s\n",
			r.Dispatch.JobID, r.Dispatch.Service, r.Dispatch.OutputURI)
	}
	if r.FailedSteps > 0 {
		fmt.Printf("  %d of %d steps failed\n", r.FailedSteps, len(r.Steps))
	}
	if r.TestsRun {
		verdict := "PASSED"
		if !r.TestsPassed {
			verdict = "FAILED"
		}
		fmt.Printf("  data quality: %s\n", verdict)
		for _, t := range r.TestResults {
			fmt.Printf("    [%s] %s on column %q (%s)\n", t.Status(), t.Kind, t.Column, t.Observed)
		}
	}
	if r.SnapshotCreated {
		fmt.Printf("  snapshot created for version %s (use `devlake checkout -hash %s` to revert)\n", r.Hash, r.Hash)
	}
	fmt.Printf("completed in %s\n", elapsed.Truncate(time.Millisecond))
}

func cmdCheckout(args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	var (
		project = fs.String("project", ".", "project root directory")
		branch  = fs.String("branch", "main", "data branch to restore into")
		hash    = fs.String("hash", "", "data version hash to check out")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hash == "" {
		return errors.New("checkout: -hash is required")
	}

	store := snapshot.NewStore(*project)
	if err := store.Checkout(*branch, *hash); err != nil {
		return err
	}
	fmt.Printf("branch %q now uses data from version %s\n", *branch, *hash)
	return nil
}

func cmdHash(args []string) error {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	pipelinePath := fs.String("pipeline", "", "pipeline definition YAML path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pipelinePath == "" {
		return errors.New("hash: -pipeline is required")
	}

	def, err := config.Load(*pipelinePath)
	if err != nil {
		return err
	}
	h, err := version.Hash(def)
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}

func cmdVersions(args []string) error {
	fs := flag.NewFlagSet("versions", flag.ExitOnError)
	project := fs.String("project", ".", "project root directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hashes, err := snapshot.NewStore(*project).Versions()
	if err != nil {
		return err
	}
	if len(hashes) == 0 {
		fmt.Println("no stored data versions")
		return nil
	}
	for _, h := range hashes {
		fmt.Println(h)
	}
	return nil
}

func cmdSchema(args []string) error {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	var (
		project = fs.String("project", ".", "project root directory")
		branch  = fs.String("branch", "main", "data branch to inspect")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	eng, err := local.New(ctx, backend.Config{Project: *project, Branch: *branch})
	if err != nil {
		return err
	}
	defer eng.Close()

	schema, err := eng.Schema(ctx)
	if err != nil {
		return err
	}
	if len(schema) == 0 {
		fmt.Println("no tables registered")
		return nil
	}
	for name, cols := range schema {
		fmt.Printf("%s:\n", name)
		for col, typ := range cols {
			fmt.Printf("  %s %s\n", col, typ)
		}
	}
	return nil
}

// setupMetrics decides the metrics backend: flag → env → default.
func setupMetrics(backendName, gatewayURL, jobName string) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		if jobName == "" {
			jobName = "devlake"
		}
		b, err := prompush.NewBackend(jobName, gatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v backend=%v job_name=%v", gatewayURL, backendName, jobName)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
