// Package backend defines the execution-backend capability interfaces and the
// factory through which step targets are resolved to concrete backends.
//
// Two capability families exist:
//
//   - Local: a persistent embedded SQL engine scoped to one (project, branch)
//     pair, holding the alias registry that steps read and write.
//   - Remote: a stateless job-submission client that dispatches the whole
//     pipeline definition to a cloud service and reports the output handle.
//
// Concrete backends register a constructor for their target name in init()
// (see backend/local and backend/remote); importing backend/all wires in all
// built-in targets. Callers obtain backends through New and type-assert the
// capability they need, so new targets can be added without modifying the
// orchestrator.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LOLA0786/Devlake/internal/config"
	"github.com/LOLA0786/Devlake/internal/table"
)

// ErrQueryFailed wraps SQL errors reported by a Local backend so callers can
// classify them without depending on driver error types.
var ErrQueryFailed = errors.New("query failed")

// Config carries the construction parameters shared by all backends.
type Config struct {
	// Project is the project root directory; local state lives under
	// <project>/.devlake/data/<branch>/.
	Project string

	// Branch names the isolated data directory a Local backend operates on.
	Branch string

	// Size is the cloud instance-size hint forwarded to Remote backends.
	Size string
}

// Backend is the minimal surface shared by every execution backend.
type Backend interface {
	// Target returns the target name the backend was constructed for.
	Target() string
}

// Local is the capability interface for embedded-engine backends. Exactly one
// Local instance exists per run and it must not be shared across runs.
type Local interface {
	Backend

	// RegisterTable materializes t in the engine under alias and records it
	// in the alias registry. Re-registering an alias overwrites it.
	RegisterTable(ctx context.Context, alias string, t *table.Table) error

	// Query runs sql against the engine and returns the result. Errors are
	// wrapped with ErrQueryFailed.
	Query(ctx context.Context, sql string) (*table.Table, error)

	// TableByAlias returns the registered table for alias, if any.
	TableByAlias(alias string) (*table.Table, bool)

	// Schema returns the engine catalog: table name -> column name -> type.
	Schema(ctx context.Context) (map[string]map[string]string, error)

	// Close releases the engine handle. Idempotent.
	Close() error
}

// DispatchResult is the completion record of a remote job.
type DispatchResult struct {
	JobID            string
	Service          string
	OutputURI        string
	Records          int64
	EstimatedRuntime time.Duration
}

// Remote is the capability interface for cloud-dispatch backends. Instances
// are stateless between steps; a fresh one is constructed per remote step.
type Remote interface {
	Backend

	// Dispatch submits the pipeline and blocks until completion or failure.
	Dispatch(ctx context.Context, def *config.Definition, dataSizeGB float64) (DispatchResult, error)
}

// Constructor builds a backend for one target.
type Constructor func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu           sync.RWMutex
	constructors = map[string]Constructor{}
)

// Register adds (or replaces) a backend constructor for the given target
// name. It is typically called from backend packages' init() functions.
func Register(target string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	constructors[target] = ctor
}

// New constructs the backend registered for target. Unknown targets are an
// error naming the available targets.
func New(ctx context.Context, target string, cfg Config) (Backend, error) {
	mu.RLock()
	ctor, ok := constructors[target]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported execution target %q (available: %v)", target, ListTargets())
	}
	return ctor(ctx, cfg)
}

// ListTargets returns the sorted names of all registered targets.
func ListTargets() []string {
	mu.RLock()
	defer mu.RUnlock()
	targets := make([]string, 0, len(constructors))
	for t := range constructors {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}
