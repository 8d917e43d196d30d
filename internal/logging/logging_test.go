package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetup_WritesBothSinks(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	if err := Setup(&console, dir, false); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	log.Debug().Msg("hidden")
	log.Info().Str("tenant", "t1").Msg("visible")

	if strings.Contains(console.String(), "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(console.String(), "visible") {
		t.Errorf("console missing info line: %q", console.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("log file: %v", err)
	}
	if !strings.Contains(string(data), `"tenant":"t1"`) {
		t.Errorf("log file missing structured field: %q", string(data))
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write probe left behind")
	}
}

func TestSetup_VerboseEnablesDebug(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var console bytes.Buffer
	if err := Setup(&console, t.TempDir(), true); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Debug().Msg("poll tick")

	if !strings.Contains(console.String(), "poll tick") {
		t.Error("debug line missing in verbose mode")
	}
}

func TestSetup_UnusableDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := Setup(&bytes.Buffer{}, filepath.Join(file, "logs"), false); err == nil {
		t.Error("expected an error for a log directory below a regular file")
	}
}
