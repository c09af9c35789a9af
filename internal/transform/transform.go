// Package transform provides the registry of named transform functions that
// `transform: {fn: ...}` pipeline steps invoke.
//
// Transforms are statically defined Go functions with a fixed
// (input table) -> (output table) signature, registered ahead of time. The
// engine never evaluates user-supplied source code at run time; a pipeline
// may only reference transforms by name. Built-in transforms register
// themselves in init(); applications embedding the engine can add their own
// with Register.
package transform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/LOLA0786/Devlake/internal/table"
)

// Func transforms an input table into an output table. Implementations must
// not retain or mutate the input; they return a new table (or the input
// unchanged when there is nothing to do).
type Func func(in *table.Table) (*table.Table, error)

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

// Register adds (or replaces) a named transform. It is typically called from
// init() functions.
func Register(name string, fn Func) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

// Lookup returns the transform registered under name.
func Lookup(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the sorted names of all registered transforms.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply looks up and runs the named transform.
func Apply(name string, in *table.Table) (*table.Table, error) {
	fn, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no transform registered under %q", name)
	}
	return fn(in)
}
