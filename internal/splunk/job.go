package splunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// JobStatus is the client-side lifecycle state of a search job.
type JobStatus string

const (
	JobSubmitted JobStatus = "submitted"
	JobPolling   JobStatus = "polling"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
)

// SearchJob is an asynchronous search running on the platform.
type SearchJob struct {
	SID      string
	Query    string
	Earliest string
	Latest   string

	Status      JobStatus
	ResultCount int
	Polls       int
}

const bodyLogLimit = 500

// searchText prefixes the generating "search" command unless the query
// already starts with a command.
func searchText(query string) string {
	q := strings.TrimSpace(query)
	if strings.HasPrefix(q, "search ") || strings.HasPrefix(q, "|") {
		return q
	}
	return "search " + q
}

// Submit creates a search job for query over [earliest, latest].
func (c *Client) Submit(ctx context.Context, sess *Session, query, earliest, latest string) (*SearchJob, error) {
	form := url.Values{}
	form.Set("search", searchText(query))
	form.Set("earliest_time", earliest)
	form.Set("latest_time", latest)
	form.Set("output_mode", "json")

	log.Info().Str("earliest", earliest).Str("latest", latest).Msg("Creating search job")
	log.Debug().Str("query", form.Get("search")).Msg("Search job details")

	status, body, err := c.do(ctx, c.cfg.AuthTimeout, http.MethodPost, c.serviceURL("/services/search/jobs", nil), form, sess)
	if err != nil {
		return nil, &SubmissionError{StatusCode: status, Err: err}
	}

	if status != http.StatusCreated {
		if sess != nil && sess.Mode == ModeWebCookie &&
			(status == http.StatusUnauthorized || status == http.StatusForbidden) {
			return nil, &AuthError{Deferred: true, StatusCode: status, Body: truncate(body, bodyLogLimit)}
		}
		log.Error().Int("status", status).Str("body", truncate(body, bodyLogLimit)).Msg("Failed to create search job")
		return nil, &SubmissionError{StatusCode: status, Body: string(body)}
	}

	var resp SubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &SubmissionError{StatusCode: status, Body: string(body), Err: fmt.Errorf("failed to decode job response: %w", err)}
	}
	if resp.SID == "" {
		return nil, &SubmissionError{StatusCode: status, Body: string(body), Err: errors.New("no job ID returned")}
	}

	log.Info().Str("sid", resp.SID).Msg("Search job created")

	return &SearchJob{
		SID:      resp.SID,
		Query:    query,
		Earliest: earliest,
		Latest:   latest,
		Status:   JobSubmitted,
	}, nil
}

// Poll checks the job at the configured interval until it is done, fails,
// or the poll cap is reached. It returns nil once the job is done, a
// *JobFailedError on a failed check or job, and a *PollTimeoutError when
// the cap is exhausted.
func (c *Client) Poll(ctx context.Context, sess *Session, job *SearchJob) error {
	statusURL := c.serviceURL("/services/search/jobs/"+url.PathEscape(job.SID), url.Values{"output_mode": {"json"}})
	start := time.Now()
	job.Status = JobPolling

	for i := 0; i < c.cfg.MaxPolls; i++ {
		job.Polls = i + 1

		status, body, err := c.do(ctx, c.cfg.RequestTimeout, http.MethodGet, statusURL, nil, sess)
		if err != nil {
			job.Status = JobFailed
			return &JobFailedError{SID: job.SID, StatusCode: status, Err: err}
		}
		if status != http.StatusOK {
			job.Status = JobFailed
			log.Error().Int("status", status).Str("sid", job.SID).Msg("Failed to check job status")
			return &JobFailedError{SID: job.SID, StatusCode: status, Body: truncate(body, bodyLogLimit)}
		}

		var resp JobStatusResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			job.Status = JobFailed
			return &JobFailedError{SID: job.SID, StatusCode: status, Err: fmt.Errorf("failed to decode job status: %w", err)}
		}

		content := resp.content()
		job.ResultCount = content.ResultCount

		if content.IsFailed || strings.EqualFold(content.DispatchState, "FAILED") {
			job.Status = JobFailed
			return &JobFailedError{SID: job.SID, StatusCode: status, Body: joinMessages(content.Messages)}
		}

		if content.IsDone {
			job.Status = JobDone
			log.Info().Str("sid", job.SID).Int("results", content.ResultCount).Int("polls", job.Polls).Msg("Search complete")
			return nil
		}

		log.Debug().Str("sid", job.SID).Int("poll", job.Polls).Str("state", content.DispatchState).Msg("Searching...")

		if i == c.cfg.MaxPolls-1 {
			break
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			job.Status = JobFailed
			return &JobFailedError{SID: job.SID, Err: err}
		}
	}

	job.Status = JobTimedOut
	elapsed := time.Since(start)
	log.Error().Str("sid", job.SID).Int("polls", job.Polls).Dur("elapsed", elapsed).Msg("Search job did not complete in time")
	return &PollTimeoutError{SID: job.SID, Polls: job.Polls, Elapsed: elapsed, ResultCount: job.ResultCount}
}

// Fetch retrieves the complete result set of a finished job. A 204 response
// is a valid empty result, not an error.
func (c *Client) Fetch(ctx context.Context, sess *Session, job *SearchJob) ([]Result, error) {
	query := url.Values{}
	query.Set("output_mode", "json")
	query.Set("count", "0") // no page limit
	resultsURL := c.serviceURL("/services/search/jobs/"+url.PathEscape(job.SID)+"/results", query)

	log.Info().Str("sid", job.SID).Msg("Retrieving results from job")

	status, body, err := c.do(ctx, c.cfg.RequestTimeout, http.MethodGet, resultsURL, nil, sess)
	if err != nil {
		return nil, &ResultFetchError{SID: job.SID, StatusCode: status, Err: err}
	}

	switch status {
	case http.StatusOK:
		var resp ResultsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &ResultFetchError{SID: job.SID, StatusCode: status, Body: truncate(body, bodyLogLimit), Err: fmt.Errorf("failed to decode results: %w", err)}
		}
		if resp.Results == nil {
			resp.Results = []Result{}
		}
		log.Info().Int("count", len(resp.Results)).Msg("Retrieved results")
		return resp.Results, nil

	case http.StatusNoContent:
		log.Warn().Str("sid", job.SID).Msg("Search completed but returned no results (204)")
		return []Result{}, nil

	default:
		log.Error().Int("status", status).Str("body", truncate(body, bodyLogLimit)).Msg("Failed to get results")
		return nil, &ResultFetchError{SID: job.SID, StatusCode: status, Body: string(body)}
	}
}

// Search runs the full submit, poll and fetch cycle for one query.
func (c *Client) Search(ctx context.Context, sess *Session, query, earliest, latest string) ([]Result, error) {
	job, err := c.Submit(ctx, sess, query, earliest, latest)
	if err != nil {
		return nil, err
	}
	if err := c.Poll(ctx, sess, job); err != nil {
		return nil, err
	}
	return c.Fetch(ctx, sess, job)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
