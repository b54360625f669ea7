package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"districtfinder/internal/nces"
)

// SetupTestDB creates a DuckDB store in a temp dir with the mock directory
// CSV loaded.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	tmpDir := t.TempDir()

	src := filepath.Join("testdata", DirectoryFile.Filename)
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read %s: %v", src, err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, DirectoryFile.Filename), data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", DirectoryFile.Filename, err)
	}

	db, err := NewDB(tmpDir)
	if err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.EnsureDirectory(); err != nil {
		t.Fatalf("failed to load directory: %v", err)
	}
	return db
}

// mockService is an in-memory nces.Service that counts its calls
type mockService struct {
	mu sync.Mutex

	districts    []nces.District
	schools      []nces.School
	districtErr  error
	schoolErr    error
	delay        time.Duration
	districtHits int
	schoolHits   int
	lastQuery    string
	lastDistrict string
}

func (m *mockService) SearchSchoolDistricts(ctx context.Context, queryText string) ([]nces.District, error) {
	m.mu.Lock()
	m.districtHits++
	m.lastQuery = queryText
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.districts, m.districtErr
}

func (m *mockService) SearchSchools(ctx context.Context, queryText, districtID string) ([]nces.School, error) {
	m.mu.Lock()
	m.schoolHits++
	m.lastQuery = queryText
	m.lastDistrict = districtID
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.schools, m.schoolErr
}

func (m *mockService) hits() (districts, schools int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.districtHits, m.schoolHits
}

// MockSchools creates n schools in district leaid named "School 01".."School n"
func MockSchools(leaid string, n int) []nces.School {
	schools := make([]nces.School, n)
	for i := range schools {
		schools[i] = nces.School{
			NCESSCH: fmt.Sprintf("%s%05d", leaid, i+1),
			Name:    fmt.Sprintf("School %02d", i+1),
			City:    "Lincoln",
			State:   "CA",
			LEAID:   leaid,
		}
	}
	return schools
}

// MockDistricts returns two districts whose names contain "Lincoln"
func MockDistricts() []nces.District {
	return []nces.District{
		{LEAID: "0622500", Name: "Lincoln Unified", Attributes: map[string]any{"ST": "CA"}},
		{LEAID: "3174390", Name: "Lincoln Public Schools", Attributes: map[string]any{"ST": "NE"}},
	}
}

// memStore is an in-memory lookupStore
type memStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	loadErr error
	saveErr error
	saves   int
}

type memEntry struct {
	payload   []byte
	fetchedAt time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]memEntry{}}
}

func (s *memStore) LoadLookupCache(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	e, ok := s.entries[key]
	if !ok || time.Since(e.fetchedAt) > maxAge {
		return nil, errCacheMiss
	}
	return e.payload, nil
}

func (s *memStore) SaveLookupCache(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries[key] = memEntry{payload: payload, fetchedAt: fetchedAt}
	return nil
}
