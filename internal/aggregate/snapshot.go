package aggregate

import (
	"encoding/json"
	"fmt"
	"os"

	"splunk-extractor/internal/atomicfile"

	"github.com/rs/zerolog/log"
)

// DefaultSnapshotName is the conventional file name of the snapshot.
const DefaultSnapshotName = "splunk_data.json"

// WriteSnapshot serializes the dataset as indented JSON and replaces the
// file at path in one step.
func WriteSnapshot(path string, ds *Dataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("records", len(ds.Raw)).Msg("Data saved")
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &ds, nil
}
