package executor

// Status records how an execution ended.
type Status string

const (
	// StatusCompleted means the command ran and exited; ExitCode is its own.
	StatusCompleted Status = "completed"
	// StatusSpawnFailed means the shell could not be started.
	StatusSpawnFailed Status = "spawn_failed"
	StatusBlocked     Status = "blocked"
	StatusTimeout     Status = "timeout"
	StatusCanceled    Status = "canceled"
	// StatusRateLimited and StatusUnknownSecrets are set by callers that
	// refuse a request before it reaches the executor.
	StatusRateLimited    Status = "rate_limited"
	StatusUnknownSecrets Status = "unknown_secrets"
)

// Rejected reports whether the command was refused or stopped rather than
// run to completion. A spawn failure is the command's own error.
func (s Status) Rejected() bool {
	switch s {
	case StatusBlocked, StatusTimeout, StatusCanceled, StatusRateLimited, StatusUnknownSecrets:
		return true
	}
	return false
}
