package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"splunk-extractor/internal/aggregate"
	"splunk-extractor/internal/config"
	"splunk-extractor/internal/splunk"
	"splunk-extractor/internal/splunk/splunktest"
	"splunk-extractor/internal/tenants"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, baseURL string) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.AppConfig{
		Splunk: splunk.Config{
			BaseURL:      baseURL,
			Username:     splunktest.Username,
			Password:     splunktest.Password,
			PollInterval: time.Millisecond,
			MaxPolls:     10,
		},
		DataPath:     dir,
		MappingPath:  filepath.Join(dir, tenants.DefaultFileName),
		SnapshotPath: filepath.Join(dir, aggregate.DefaultSnapshotName),
		Days:         30,
		Index:        "dx_aem_edge_prod",
		Sourcetype:   "apirouter",
	}
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	srv := splunktest.NewServer(splunktest.Options{Rows: []map[string]any{
		{"day": "2025-01-01", "aem_tenant": "t1", "requests": "4"},
	}})
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	out := filepath.Join(t.TempDir(), "out.json")

	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = prev })

	err := run(context.Background(), cfg, runFlags{days: 7, allRequests: true, output: out, index: "other_idx"})
	require.NoError(t, err)

	snap, err := aggregate.ReadSnapshot(out)
	require.NoError(t, err)
	assert.Equal(t, int64(4), snap.ByTenant["t1"])
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte(`"message":"Data saved"`)))

	var search, earliest string
	for _, r := range srv.Requests() {
		if r.Path == "/services/search/jobs" {
			search, earliest = r.Form["search"], r.Form["earliest_time"]
		}
	}
	assert.Equal(t, "-7d@d", earliest)
	assert.Contains(t, search, `index="other_idx"`)
	assert.Contains(t, search, `aem_tenant="*"`)
}

func TestRun_RejectsIncompleteConfig(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Splunk.Password = ""

	err := run(context.Background(), cfg, runFlags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPLUNK_URL")
	assert.Contains(t, err.Error(), "SPLUNK_PASSWORD")
}
