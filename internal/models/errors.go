package models

// FailureCause identifies why a sandboxed run was classified as a failure.
// Causes are only used for diagnostics; every cause maps to StateFailure.
type FailureCause string

const (
	// The harness ran and exited non-zero
	CauseExitCode FailureCause = "exit_code"

	// The harness exceeded its wall-clock budget
	CauseTimeout FailureCause = "timeout"

	// The sandbox could not be created or the command could not be started
	CauseInvocationFault FailureCause = "invocation_fault"
)
