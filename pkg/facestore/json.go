package facestore

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/facewave/pkg/landmark"
)

// JSONStore implements SimilarityStore using a JSON file for persistence.
type JSONStore struct {
	path    string
	records map[string]*Record
	mu      sync.RWMutex
}

var _ SimilarityStore = (*JSONStore)(nil)

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int       `json:"version"`
	UpdatedAt string    `json:"updated_at"`
	Faces     []*Record `json:"faces"`
}

const currentVersion = 1

// NewJSONStore opens or creates a store at path. The file is written on
// first save.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:    path,
		records: make(map[string]*Record),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}

	return store, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	if stored.Version > currentVersion {
		return fmt.Errorf("unsupported store version %d", stored.Version)
	}

	s.records = make(map[string]*Record, len(stored.Faces))
	for _, r := range stored.Faces {
		s.records[r.ID] = r
	}
	return nil
}

// save writes the store to disk. Callers hold the write lock.
func (s *JSONStore) save() error {
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Faces:     s.sorted(),
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to a temp file first, then rename.
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// sorted returns records newest first, ties broken by ID.
func (s *JSONStore) sorted() []*Record {
	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Save creates or replaces a record. The store keeps its own copy; r only
// receives the generated ID and CreatedAt.
func (s *JSONStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	prev, existed := s.records[r.ID]
	s.records[r.ID] = r.Clone()
	if err := s.save(); err != nil {
		if existed {
			s.records[r.ID] = prev
		} else {
			delete(s.records, r.ID)
		}
		return err
	}
	return nil
}

// Get retrieves a record by ID.
func (s *JSONStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// List returns all records, newest first.
func (s *JSONStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.sorted()
	for i, r := range out {
		out[i] = r.Clone()
	}
	return out, nil
}

// Delete removes a record by ID.
func (s *JSONStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	if err := s.save(); err != nil {
		s.records[id] = r
		return err
	}
	return nil
}

// Count returns the number of records.
func (s *JSONStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Similar ranks every record by proportion distance.
func (s *JSONStore) Similar(_ context.Context, m landmark.Measurements, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := Vector(m)
	matches := make([]Match, 0, len(s.records))
	for _, r := range s.records {
		matches = append(matches, Match{Record: r, Distance: Distance(q, Vector(r.Measurements))})
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return strings.Compare(a.Record.ID, b.Record.ID)
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	for i := range matches {
		matches[i].Record = matches[i].Record.Clone()
	}
	return matches, nil
}

// Path returns the file path of the store.
func (s *JSONStore) Path() string {
	return s.path
}

// Close is a no-op; every write is already on disk.
func (s *JSONStore) Close() error {
	return nil
}
