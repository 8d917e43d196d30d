package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"splunk-extractor/internal/aggregate"
	"splunk-extractor/internal/splunk"
	"splunk-extractor/internal/tenants"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options parameterize one extraction run.
type Options struct {
	Days   int
	Query  QueryOptions
	Fields aggregate.Fields
	// SnapshotPath is where the dataset is written. Empty skips the write.
	SnapshotPath string
	// TopN limits the tenants listed in the run summary.
	TopN int
}

// DefaultOptions returns the options of the standard 30-day ContentAI run.
func DefaultOptions() Options {
	return Options{
		Days:   30,
		Query:  DefaultQueryOptions,
		Fields: aggregate.DefaultFields,
		TopN:   10,
	}
}

// Searcher is the part of the platform client a run needs.
type Searcher interface {
	Authenticate(ctx context.Context, cred splunk.Credential) (*splunk.Session, error)
	Search(ctx context.Context, sess *splunk.Session, query, earliest, latest string) ([]splunk.Result, error)
}

// Extractor runs authenticate, search, aggregate and persist as one unit.
type Extractor struct {
	client Searcher
	mapper *tenants.Mapper
	now    func() time.Time
	runID  func() string
}

// New creates an Extractor.
func New(client Searcher, mapper *tenants.Mapper) *Extractor {
	return &Extractor{
		client: client,
		mapper: mapper,
		now:    time.Now,
		runID:  newRunID,
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run performs one extraction. Any fatal error aborts the run before a
// snapshot is written; mapping store failures are logged and tolerated.
func (e *Extractor) Run(ctx context.Context, cred splunk.Credential, opts Options) (*aggregate.Dataset, error) {
	if opts.Fields == (aggregate.Fields{}) {
		opts.Fields = aggregate.DefaultFields
	}
	if opts.Query.Index == "" {
		opts.Query.Index = DefaultQueryOptions.Index
	}
	if opts.Query.Sourcetype == "" {
		opts.Query.Sourcetype = DefaultQueryOptions.Sourcetype
	}

	logger := log.With().Str("run", e.runID()).Logger()
	started := e.now()

	if err := e.mapper.Load(); err != nil {
		logger.Warn().Err(err).Msg("Continuing without a readable tenant mapping")
	}

	earliest, latest := Window(opts.Days)
	query := BuildQuery(opts.Query)

	logger.Info().
		Int("days", opts.Days).
		Str("index", opts.Query.Index).
		Str("sourcetype", opts.Query.Sourcetype).
		Str("filter", opts.Query.Describe()).
		Str("earliest", earliest).
		Str("latest", latest).
		Str("mapping", e.mapper.Path()).
		Msg("Querying requests per day per tenant")

	sess, err := e.client.Authenticate(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	rows, err := e.client.Search(ctx, sess, query, earliest, latest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	records, err := aggregate.ParseRecords(rows, opts.Fields)
	if err != nil {
		return nil, fmt.Errorf("malformed search results: %w", err)
	}

	ds := aggregate.Build(records, e.mapper, e.now())

	if opts.SnapshotPath != "" {
		if err := aggregate.WriteSnapshot(opts.SnapshotPath, ds); err != nil {
			return nil, err
		}
	}

	logSummary(logger, ds, opts.TopN)
	logger.Info().Dur("elapsed", e.now().Sub(started)).Msg("Extraction complete")
	return ds, nil
}

func logSummary(logger zerolog.Logger, ds *aggregate.Dataset, topN int) {
	if len(ds.Raw) == 0 {
		logger.Warn().Msg("Search returned no data for the requested window")
		return
	}

	logger.Info().
		Int("tenants", len(ds.ByTenant)).
		Int("days", len(ds.ByDayTotal)).
		Int64("total_requests", ds.GrandTotal()).
		Msg("Summary: total requests by tenant")

	for _, info := range ds.TopTenants(topN) {
		logger.Info().
			Str("tenant", info.TenantID).
			Str("program", info.ProgramName).
			Int64("requests", info.TotalRequests).
			Msg("Tenant total")
	}

	for _, day := range ds.Days() {
		logger.Debug().Str("day", day).Int64("requests", ds.ByDayTotal[day]).Msg("Daily total")
	}
}

// IsEmptyResult reports whether the run succeeded with no matching data.
func IsEmptyResult(ds *aggregate.Dataset) bool {
	return ds != nil && len(ds.Raw) == 0
}

// ExitReason classifies a run error for operators.
func ExitReason(err error) string {
	var (
		authErr    *splunk.AuthError
		subErr     *splunk.SubmissionError
		failedErr  *splunk.JobFailedError
		timeoutErr *splunk.PollTimeoutError
		fetchErr   *splunk.ResultFetchError
		shapeErr   *aggregate.ShapeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &subErr):
		return "submission"
	case errors.As(err, &timeoutErr):
		return "poll_timeout"
	case errors.As(err, &failedErr):
		return "job_failed"
	case errors.As(err, &fetchErr):
		return "result_fetch"
	case errors.As(err, &shapeErr):
		return "data_shape"
	default:
		return "other"
	}
}
