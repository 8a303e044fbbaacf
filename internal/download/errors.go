package download

import (
	"errors"
	"fmt"
)

// ErrCoordinationTimeout reports that the fetch goroutine made no
// progress for the whole handshake wait. It is fatal to the run.
var ErrCoordinationTimeout = errors.New("timed out waiting for the fetch goroutine")

// ErrNothingToResume reports that an existing database already covers
// every range the run was asked for.
var ErrNothingToResume = errors.New("nothing left to download")

// TransferError is a failed range fetch. There are no per-range
// retries in the pipeline: one failed transfer aborts the whole run,
// which can then be resumed.
type TransferError struct {
	Prefix uint32
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

func (e *TransferError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("range %05X: unexpected status %d", e.Prefix, e.Status)
	}
	return fmt.Sprintf("range %05X: %v", e.Prefix, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// AggregateError wraps whatever each goroutine failed with once both
// have stopped and every in-flight transfer has been released.
type AggregateError struct {
	Fetch      error // fetch goroutine's fault, if any
	Coordinate error // coordinating goroutine's fault, if any
}

func (e *AggregateError) Error() string {
	return "download aborted, the errors above were logged per goroutine; you can try rerunning with --resume"
}

func (e *AggregateError) Unwrap() []error {
	var errs []error
	if e.Fetch != nil {
		errs = append(errs, e.Fetch)
	}
	if e.Coordinate != nil {
		errs = append(errs, e.Coordinate)
	}
	return errs
}
