package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	dir := t.TempDir()
	unset(t,
		"LOGS_FOLDER", "MAPPING_FILE", "SNAPSHOT_FILE", "EXTRACT_DAYS",
		"SPLUNK_URL", "SPLUNK_WEB_URL", "SPLUNK_USERNAME", "SPLUNK_PASSWORD",
		"SPLUNK_INSECURE_SKIP_VERIFY", "SPLUNK_AUTH_TIMEOUT_SECONDS", "SPLUNK_REQUEST_TIMEOUT_SECONDS",
		"SPLUNK_POLL_INTERVAL_MS", "SPLUNK_MAX_POLLS", "SPLUNK_INDEX", "SPLUNK_SOURCETYPE",
	)
	t.Setenv("DATA_PATH", dir)

	cfg := FromEnv("")

	if cfg.DataPath != dir {
		t.Errorf("DataPath = %q, want %q", cfg.DataPath, dir)
	}
	if want := filepath.Join(dir, "tenant_program_mapping.json"); cfg.MappingPath != want {
		t.Errorf("MappingPath = %q, want %q", cfg.MappingPath, want)
	}
	if want := filepath.Join(dir, "splunk_data.json"); cfg.SnapshotPath != want {
		t.Errorf("SnapshotPath = %q, want %q", cfg.SnapshotPath, want)
	}
	if want := filepath.Join(dir, "logs"); cfg.LogDir != want {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, want)
	}
	if cfg.Days != 30 {
		t.Errorf("Days = %d, want 30", cfg.Days)
	}
	if cfg.Index != "dx_aem_edge_prod" || cfg.Sourcetype != "apirouter" {
		t.Errorf("unexpected query source %q/%q", cfg.Index, cfg.Sourcetype)
	}
	if cfg.Splunk.AuthTimeout != 30*time.Second || cfg.Splunk.RequestTimeout != 60*time.Second {
		t.Errorf("unexpected timeouts %v/%v", cfg.Splunk.AuthTimeout, cfg.Splunk.RequestTimeout)
	}
	if cfg.Splunk.PollInterval != time.Second || cfg.Splunk.MaxPolls != 180 {
		t.Errorf("unexpected polling %v x %d", cfg.Splunk.PollInterval, cfg.Splunk.MaxPolls)
	}
	if cfg.Splunk.InsecureSkipVerify {
		t.Error("InsecureSkipVerify should default to false")
	}
	if err := cfg.Splunk.Validate(); err == nil {
		t.Error("expected Validate to reject a config without URL and credentials")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", dir)
	t.Setenv("SPLUNK_URL", "https://splunk.example.com:8089")
	t.Setenv("SPLUNK_USERNAME", "analyst")
	t.Setenv("SPLUNK_PASSWORD", "pw")
	t.Setenv("SPLUNK_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("SPLUNK_POLL_INTERVAL_MS", "250")
	t.Setenv("SPLUNK_MAX_POLLS", "12")
	t.Setenv("EXTRACT_DAYS", "7")
	t.Setenv("MAPPING_FILE", filepath.Join(dir, "custom.json"))
	t.Setenv("SPLUNK_AUTH_TIMEOUT_SECONDS", "not-a-number")

	cfg := FromEnv("")

	if cfg.Splunk.BaseURL != "https://splunk.example.com:8089" {
		t.Errorf("BaseURL = %q", cfg.Splunk.BaseURL)
	}
	if !cfg.Splunk.InsecureSkipVerify {
		t.Error("InsecureSkipVerify not applied")
	}
	if cfg.Splunk.PollInterval != 250*time.Millisecond || cfg.Splunk.MaxPolls != 12 {
		t.Errorf("unexpected polling %v x %d", cfg.Splunk.PollInterval, cfg.Splunk.MaxPolls)
	}
	if cfg.Splunk.AuthTimeout != 30*time.Second {
		t.Errorf("invalid timeout should fall back to default, got %v", cfg.Splunk.AuthTimeout)
	}
	if cfg.Days != 7 {
		t.Errorf("Days = %d, want 7", cfg.Days)
	}
	if cfg.MappingPath != filepath.Join(dir, "custom.json") {
		t.Errorf("MappingPath = %q", cfg.MappingPath)
	}
	if err := cfg.Splunk.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// unset removes keys for the duration of the test.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
