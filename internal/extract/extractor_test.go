package extract

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"splunk-extractor/internal/aggregate"
	"splunk-extractor/internal/splunk"
	"splunk-extractor/internal/splunk/splunktest"
	"splunk-extractor/internal/tenants"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cred = splunk.Credential{Username: splunktest.Username, Password: splunktest.Password}

func scenarioRows() []map[string]any {
	return []map[string]any{
		{"day": "2025-01-01", "aem_tenant": "t1", "requests": "5"},
		{"day": "2025-01-01", "aem_tenant": "t2", "requests": "3"},
		{"day": "2025-01-02", "aem_tenant": "t1", "requests": "2"},
	}
}

type harness struct {
	srv          *splunktest.Server
	extractor    *Extractor
	mappingPath  string
	snapshotPath string
}

func newHarness(t *testing.T, opts splunktest.Options, mapping string) *harness {
	t.Helper()
	srv := splunktest.NewServer(opts)
	t.Cleanup(srv.Close)

	client, err := splunk.NewClient(splunk.Config{
		BaseURL:        srv.URL,
		AuthTimeout:    2 * time.Second,
		RequestTimeout: 2 * time.Second,
		PollInterval:   time.Millisecond,
		MaxPolls:       20,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	mappingPath := filepath.Join(dir, tenants.DefaultFileName)
	if mapping != "" {
		require.NoError(t, os.WriteFile(mappingPath, []byte(mapping), 0644))
	}

	e := New(client, tenants.NewMapper(mappingPath))
	e.now = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	e.runID = func() string { return "run-test" }

	return &harness{
		srv:          srv,
		extractor:    e,
		mappingPath:  mappingPath,
		snapshotPath: filepath.Join(dir, aggregate.DefaultSnapshotName),
	}
}

// captureLog redirects the global logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func (h *harness) options() Options {
	opts := DefaultOptions()
	opts.SnapshotPath = h.snapshotPath
	return opts
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t, splunktest.Options{PollsUntilDone: 2, Rows: scenarioRows()}, `{"tenant_mapping": {"t1": "Alpha"}}`)
	logs := captureLog(t)

	ds, err := h.extractor.Run(context.Background(), cred, h.options())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"mapping":"`+h.mappingPath+`"`)

	assert.Equal(t, map[string]int64{"2025-01-01": 8, "2025-01-02": 2}, ds.ByDayTotal)
	assert.Equal(t, map[string]int64{"t1": 7, "t2": 3}, ds.ByTenant)
	assert.Equal(t, "Alpha", ds.TenantInfo["t1"].ProgramName)
	assert.Equal(t, "Program for t2", ds.TenantInfo["t2"].ProgramName)

	snap, err := aggregate.ReadSnapshot(h.snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, ds.ByDay, snap.ByDay)
	assert.Len(t, snap.Raw, 3)

	reloaded := tenants.NewMapper(h.mappingPath)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, "Alpha", reloaded.LabelOf("t1"))
	assert.Equal(t, "Program for t2", reloaded.LabelOf("t2"))

	var submit splunktest.Request
	for _, r := range h.srv.Requests() {
		if r.Path == "/services/search/jobs" {
			submit = r
		}
	}
	assert.True(t, strings.HasPrefix(submit.Form["search"], `search index="dx_aem_edge_prod"`))
	assert.Equal(t, "-30d@d", submit.Form["earliest_time"])
	assert.Equal(t, "now", submit.Form["latest_time"])
}

func TestRun_EmptyResultIsNotAnError(t *testing.T) {
	h := newHarness(t, splunktest.Options{ResultsStatus: http.StatusNoContent}, "")

	ds, err := h.extractor.Run(context.Background(), cred, h.options())
	require.NoError(t, err)
	assert.True(t, IsEmptyResult(ds))
	assert.Equal(t, int64(0), ds.GrandTotal())
	assert.Empty(t, ds.ByDayTotal)

	_, statErr := os.Stat(h.snapshotPath)
	assert.NoError(t, statErr, "an empty run still writes a snapshot")
}

func TestRun_FatalErrorsWriteNothing(t *testing.T) {
	tests := []struct {
		name   string
		opts   splunktest.Options
		reason string
	}{
		{"auth", splunktest.Options{TokenLoginStatus: http.StatusForbidden, WebLoginDisabled: true}, "authentication"},
		{"submission", splunktest.Options{SubmitStatus: http.StatusBadRequest}, "submission"},
		{"poll timeout", splunktest.Options{PollsUntilDone: -1}, "poll_timeout"},
		{"job failed", splunktest.Options{JobFails: true}, "job_failed"},
		{"result fetch", splunktest.Options{ResultsStatus: http.StatusBadGateway, Rows: scenarioRows()}, "result_fetch"},
		{"bad count", splunktest.Options{Rows: []map[string]any{{"day": "2025-01-01", "aem_tenant": "t1", "requests": "lots"}}}, "data_shape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts, "")

			ds, err := h.extractor.Run(context.Background(), cred, h.options())
			require.Error(t, err)
			assert.Nil(t, ds)
			assert.Equal(t, tt.reason, ExitReason(err))

			_, statErr := os.Stat(h.snapshotPath)
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "no partial snapshot on a fatal error")
		})
	}
}

func TestRun_UnreadableMappingDoesNotAbort(t *testing.T) {
	h := newHarness(t, splunktest.Options{Rows: scenarioRows()}, `not json`)

	ds, err := h.extractor.Run(context.Background(), cred, h.options())
	require.NoError(t, err)
	assert.Equal(t, "Program for t1", ds.TenantInfo["t1"].ProgramName)

	data, err := os.ReadFile(h.mappingPath)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(DefaultQueryOptions)
	assert.Contains(t, q, `index="dx_aem_edge_prod" sourcetype="apirouter"`)
	assert.Contains(t, q, `api="contentAI"`)
	assert.Contains(t, q, `reason!="No tenant provided"`)
	assert.Contains(t, q, "stats count as requests by day, aem_tenant")

	all := BuildQuery(QueryOptions{Index: "idx", Sourcetype: "st"})
	assert.Contains(t, all, `index="idx" sourcetype="st"`)
	assert.Contains(t, all, `aem_tenant="*"`)
	assert.NotContains(t, all, "contentAI")
}

func TestWindow(t *testing.T) {
	earliest, latest := Window(30)
	assert.Equal(t, "-30d@d", earliest)
	assert.Equal(t, "now", latest)

	earliest, _ = Window(0)
	assert.Equal(t, "-1d@d", earliest)
}

func TestExitReason(t *testing.T) {
	assert.Equal(t, "", ExitReason(nil))
	assert.Equal(t, "other", ExitReason(errors.New("boom")))
	assert.Equal(t, "poll_timeout", ExitReason(&splunk.PollTimeoutError{SID: "x"}))
}
