package pipeline

import "errors"

// Step-local failure conditions. These never escalate to run failure: the
// offending step is skipped, the failure is logged and counted, and execution
// continues with the next step. Partial output from a data-preparation run is
// still useful, so the engine is best-effort batch rather than transactional.
// (Query failures surface as backend.ErrQueryFailed.)
var (
	// ErrMissingInput means the step's input alias has no registered table.
	ErrMissingInput = errors.New("missing input")

	// ErrNoOutputProduced means a transform function yielded no table.
	ErrNoOutputProduced = errors.New("transform produced no output")

	// ErrUnknownStepKind means the definition names a step kind the engine
	// does not implement.
	ErrUnknownStepKind = errors.New("unknown step kind")

	// ErrUnsupportedRemoteStep means a step kind was routed to a cloud target
	// that can only execute transforms.
	ErrUnsupportedRemoteStep = errors.New("step kind not supported on cloud targets")
)
