package synthesis

import "errors"

var (
	// ErrSubmission means the backend rejected the job request or
	// returned no job identifier.
	ErrSubmission = errors.New("synthesis submission rejected")

	// ErrSynthesis means the backend accepted the job and later
	// reported it failed.
	ErrSynthesis = errors.New("synthesis job failed")

	// ErrTimeout means the job never reached a terminal status within
	// the polling budget.
	ErrTimeout = errors.New("synthesis job timed out")

	// ErrMissingOutput means the job completed but the result payload
	// carried no audio locator.
	ErrMissingOutput = errors.New("completed synthesis job has no audio url")

	// ErrDownload means fetching the finished audio failed.
	ErrDownload = errors.New("audio download failed")
)
