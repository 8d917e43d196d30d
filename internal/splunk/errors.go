package splunk

import (
	"fmt"
	"strings"
	"time"
)

// AuthAttempt records why one authentication strategy failed.
type AuthAttempt struct {
	Strategy string
	Err      error
}

// AuthError reports that no authentication strategy produced a usable
// session. Deferred is set when a cookie session was accepted at login but
// rejected by the first authenticated call.
type AuthError struct {
	Attempts   []AuthAttempt
	Deferred   bool
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	if e.Deferred {
		return fmt.Sprintf("web session rejected by the API (status %d): %s", e.StatusCode, e.Body)
	}
	if len(e.Attempts) == 0 {
		return "authentication failed: no strategies configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return "all authentication methods failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the reason of the last attempt.
func (e *AuthError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// SubmissionError reports that the platform rejected job creation.
type SubmissionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to create search job (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to create search job (status %d): %s", e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// JobFailedError reports a failed status check or a job the platform
// marked as failed.
type JobFailedError struct {
	SID        string
	StatusCode int
	Body       string
	Err        error
}

func (e *JobFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search job %s failed: %v", e.SID, e.Err)
	}
	return fmt.Sprintf("search job %s failed (status %d): %s", e.SID, e.StatusCode, e.Body)
}

func (e *JobFailedError) Unwrap() error { return e.Err }

// PollTimeoutError reports a job that did not finish within the poll cap.
// The job may still complete on the platform; re-running with a narrower
// window or a larger cap is the operator's call.
type PollTimeoutError struct {
	SID         string
	Polls       int
	Elapsed     time.Duration
	ResultCount int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("search job %s not done after %d polls (%s, %d results so far)",
		e.SID, e.Polls, e.Elapsed.Round(time.Second), e.ResultCount)
}

// ResultFetchError reports a result retrieval that was neither 200 nor 204,
// or a 200 whose body could not be read.
type ResultFetchError struct {
	SID        string
	StatusCode int
	Body       string
	Err        error
}

func (e *ResultFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to get results for job %s (status %d): %v", e.SID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to get results for job %s (status %d): %s", e.SID, e.StatusCode, e.Body)
}

func (e *ResultFetchError) Unwrap() error { return e.Err }
