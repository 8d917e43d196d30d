package tenants

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"splunk-extractor/internal/atomicfile"

	"github.com/rs/zerolog/log"
)

const (
	// UnknownProgram is returned for tenant IDs without a stored label.
	UnknownProgram = "Unknown Program"

	// DefaultFileName is the conventional name of the mapping store.
	DefaultFileName = "tenant_program_mapping.json"

	storeVersion     = "1.0"
	storeDescription = "Mapping of Splunk tenant IDs to program names"
)

// PlaceholderLabel is the label assigned to a tenant discovered in search results.
func PlaceholderLabel(tenantID string) string {
	return fmt.Sprintf("Program for %s", tenantID)
}

// MappingIOError reports a failure to read or write the mapping store.
// It degrades durability only and never aborts a run.
type MappingIOError struct {
	Op   string // "read", "decode", "write"
	Path string
	Err  error
}

func (e *MappingIOError) Error() string {
	return fmt.Sprintf("tenant mapping %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MappingIOError) Unwrap() error { return e.Err }

// storeFile is the on-disk layout of the mapping store.
type storeFile struct {
	TenantMapping   map[string]string          `json:"tenant_mapping"`
	ProgramMetadata map[string]json.RawMessage `json:"program_metadata"`
	Metadata        storeMetadata              `json:"metadata"`
}

type storeMetadata struct {
	LastUpdated string `json:"last_updated"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Mapper maps tenant IDs to human-readable program names and persists
// newly discovered tenants back to its store.
type Mapper struct {
	path string

	mu       sync.RWMutex
	mapping  map[string]string
	metadata map[string]json.RawMessage

	// readOnly is set when the store exists but could not be read, so that
	// a save never overwrites curated labels with a partial view.
	readOnly bool

	now func() time.Time
}

// NewMapper creates a Mapper backed by the file at path. Call Load before use.
func NewMapper(path string) *Mapper {
	return &Mapper{
		path:     path,
		mapping:  make(map[string]string),
		metadata: make(map[string]json.RawMessage),
		now:      time.Now,
	}
}

// Path returns the location of the mapping store.
func (m *Mapper) Path() string {
	return m.path
}

// Load reads the mapping store. A missing store is created empty. Any other
// failure is returned as a *MappingIOError, but the mapper stays usable with
// an empty in-memory mapping.
func (m *Mapper) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", m.path).Msg("Mapping file not found, creating default mapping file")
		if err := m.saveLocked(); err != nil {
			return err
		}
		log.Info().Str("path", m.path).Msg("Created default mapping file")
		return nil
	}
	if err != nil {
		m.readOnly = true
		return &MappingIOError{Op: "read", Path: m.path, Err: err}
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		m.readOnly = true
		return &MappingIOError{Op: "decode", Path: m.path, Err: err}
	}

	if f.TenantMapping != nil {
		m.mapping = f.TenantMapping
	}
	if f.ProgramMetadata != nil {
		m.metadata = f.ProgramMetadata
	}
	m.readOnly = false

	log.Info().Int("count", len(m.mapping)).Str("path", m.path).Msg("Loaded tenant mappings")
	return nil
}

// LabelOf returns the program name for a tenant, or UnknownProgram.
func (m *Mapper) LabelOf(tenantID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if label, ok := m.mapping[tenantID]; ok {
		return label
	}
	return UnknownProgram
}

// Add sets the program name for a tenant in memory. Call Save to persist it.
func (m *Mapper) Add(tenantID, programName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapping[tenantID] = programName
}

// RegisterUnseen assigns a placeholder label to every tenant not yet mapped
// and returns the inserted IDs in sorted order. When anything was inserted
// the whole mapping is persisted immediately; a persistence failure is
// returned as a *MappingIOError alongside the inserted IDs.
func (m *Mapper) RegisterUnseen(tenantIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted []string
	for _, id := range tenantIDs {
		if _, ok := m.mapping[id]; ok {
			continue
		}
		m.mapping[id] = PlaceholderLabel(id)
		inserted = append(inserted, id)
	}

	if len(inserted) == 0 {
		return nil, nil
	}
	slices.Sort(inserted)

	log.Info().Int("count", len(inserted)).Strs("tenants", inserted).Msg("Added new tenants to mapping")
	return inserted, m.saveLocked()
}

// Save writes the full mapping back to the store.
func (m *Mapper) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

// Len returns the number of mapped tenants.
func (m *Mapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mapping)
}

// IDs returns the mapped tenant IDs in sorted order.
func (m *Mapper) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.mapping))
	for id := range m.mapping {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *Mapper) saveLocked() error {
	if m.readOnly {
		return &MappingIOError{Op: "write", Path: m.path, Err: errors.New("store could not be loaded, refusing to overwrite it")}
	}

	f := storeFile{
		TenantMapping:   m.mapping,
		ProgramMetadata: m.metadata,
		Metadata: storeMetadata{
			LastUpdated: m.now().Format("2006-01-02"),
			Version:     storeVersion,
			Description: storeDescription,
		},
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return &MappingIOError{Op: "write", Path: m.path, Err: err}
	}

	if err := atomicfile.WriteFile(m.path, data, 0644); err != nil {
		return &MappingIOError{Op: "write", Path: m.path, Err: err}
	}

	log.Debug().Str("path", m.path).Int("count", len(m.mapping)).Msg("Saved tenant mappings")
	return nil
}
