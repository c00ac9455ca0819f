package core

// RunStatus is the terminal status of one orchestration run.
type RunStatus string

const (
	// RunStatusDone means the planning loop finished with a final message.
	RunStatusDone RunStatus = "done"
	// RunStatusFailed means an unrecoverable step failure ended the loop; the
	// partial trace is still persisted.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled means the caller cancelled the run; not a failure.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminalSuccess reports whether the run produced a final result.
func (s RunStatus) IsTerminalSuccess() bool { return s == RunStatusDone }
