package app

import "time"

// Operation tracks the CLI command an App was created for. Its ID tags
// every log line written during the command.
type Operation struct {
	ID        string
	Name      string
	Status    string // "success" or "error"
	Err       error  // first failure, if any
	StartedAt time.Time
}

// NewOperation creates an operation started at now. The ID is the UTC
// start time, which sorts and greps well in the log.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405Z"),
		Name:      name,
		Status:    "success",
		StartedAt: now,
	}
}

// Fail marks the operation failed. The first error is kept.
func (op *Operation) Fail(err error) {
	if op.Err == nil {
		op.Err = err
	}
	op.Status = "error"
}

// Failed reports whether any step of the operation failed.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt)
}
