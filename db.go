package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"districtfinder/internal/nces"
)

const defaultMaxDistricts = 100

// ErrDirectoryMissing is returned when the local backend has no CCD directory
// file to load
var ErrDirectoryMissing = errors.New("school directory file not found")

// errCacheMiss is returned by LoadLookupCache for absent or expired entries
var errCacheMiss = errors.New("no cache entry found")

// DB is the DuckDB store behind the local backend and the lookup cache.
type DB struct {
	conn         *sql.DB
	dataDir      string
	maxDistricts int
}

func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "data.duckdb")

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open DuckDB database", "error", err, "db_path", dbPath)
		}
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	d := &DB{
		conn:         db,
		dataDir:      dataDir,
		maxDistricts: defaultMaxDistricts,
	}

	if err := d.createCacheTables(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// directoryPath is where the CCD school directory CSV is expected
func (d *DB) directoryPath() string {
	return filepath.Join(d.dataDir, DirectoryFile.Filename)
}

// HasDirectory reports whether the directory table has been loaded
func (d *DB) HasDirectory() (bool, error) {
	var n int
	err := d.conn.QueryRow(`
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_name = 'directory'
	`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to inspect tables: %w", err)
	}
	return n > 0, nil
}

// EnsureDirectory loads the CCD directory CSV into the directory table unless
// it is already present.
func (d *DB) EnsureDirectory() error {
	loaded, err := d.HasDirectory()
	if err != nil {
		return err
	}
	if loaded {
		return nil
	}

	csvPath := d.directoryPath()
	if _, err := os.Stat(csvPath); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrDirectoryMissing, csvPath)
	}

	fmt.Println("📊 Loading school directory into DuckDB...")
	start := time.Now()
	if err := d.loadDirectory(csvPath); err != nil {
		if logger != nil {
			logger.Error("Directory load failed", "error", err, "csv_path", csvPath)
		}
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Printf("✅ Directory loaded (%v)\n", time.Since(start))
	if logger != nil {
		logger.Info("Directory loaded", "csv_path", csvPath, "elapsed", time.Since(start).String())
	}
	return nil
}

func (d *DB) loadDirectory(csvPath string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Ignore error - will fail if transaction was committed
	}()

	_, err = tx.Exec(fmt.Sprintf(`
		CREATE TABLE directory AS
		SELECT * FROM read_csv('%s', all_varchar=true)
	`, strings.ReplaceAll(csvPath, "'", "''")))
	if err != nil {
		return fmt.Errorf("failed to create directory table: %w", err)
	}

	indexes := map[string]string{
		"idx_directory_leaid":    "LEAID",
		"idx_directory_ncessch":  "NCESSCH",
		"idx_directory_lea_name": "LEA_NAME",
	}
	for name, column := range indexes {
		if _, err := tx.Exec(fmt.Sprintf(`CREATE INDEX %s ON directory(%s)`, name, column)); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// createCacheTables creates the lookup cache table
func (d *DB) createCacheTables() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS lookup_cache (
			cache_key VARCHAR PRIMARY KEY,
			payload VARCHAR,
			fetched_at TIMESTAMP
		)
	`)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to create lookup_cache table", "error", err)
		}
		return fmt.Errorf("failed to create lookup_cache table: %w", err)
	}
	return nil
}

// SearchSchoolDistricts groups directory rows by LEAID and returns districts
// whose name contains query, ignoring case.
func (d *DB) SearchSchoolDistricts(ctx context.Context, query string) ([]nces.District, error) {
	districts := []nces.District{}
	if strings.TrimSpace(query) == "" {
		return districts, nil
	}

	rows, err := d.conn.QueryContext(ctx, `
		SELECT LEAID, MIN(LEA_NAME) AS name, MIN(ST), COUNT(*)
		FROM directory
		WHERE contains(lower(LEA_NAME), lower($1))
		GROUP BY LEAID
		ORDER BY name, LEAID
		LIMIT $2
	`, query, d.maxDistricts)
	if err != nil {
		if logger != nil {
			logger.Error("District query failed", "error", err, "query", query)
		}
		return nil, fmt.Errorf("failed to search districts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			leaid, name string
			state       sql.NullString
			schools     int64
		)
		if err := rows.Scan(&leaid, &name, &state, &schools); err != nil {
			return nil, fmt.Errorf("failed to scan district row: %w", err)
		}
		attrs := map[string]any{"SCHOOL_COUNT": schools}
		if state.Valid {
			attrs["ST"] = state.String
		}
		districts = append(districts, nces.District{LEAID: leaid, Name: name, Attributes: attrs})
	}
	if err := rows.Err(); err != nil {
		if logger != nil {
			logger.Error("Row iteration error in SearchSchoolDistricts", "error", err, "districts_count", len(districts))
		}
		return nil, err
	}

	return districts, nil
}

// SearchSchools returns every school of a district ordered by name. A
// non-empty query narrows the set to names containing it.
func (d *DB) SearchSchools(ctx context.Context, query, districtID string) ([]nces.School, error) {
	if districtID == "" {
		return nil, fmt.Errorf("district id is required")
	}

	rows, err := d.conn.QueryContext(ctx, `
		SELECT
			NCESSCH,
			SCH_NAME,
			COALESCE(MCITY, ''),
			COALESCE(ST, ''),
			LEAID,
			LEVEL,
			SCH_TYPE_TEXT,
			MZIP
		FROM directory
		WHERE LEAID = $1
			AND ($2 = '' OR contains(lower(SCH_NAME), lower($2)))
		ORDER BY SCH_NAME, NCESSCH
	`, districtID, strings.TrimSpace(query))
	if err != nil {
		if logger != nil {
			logger.Error("School query failed", "error", err, "district_id", districtID, "query", query)
		}
		return nil, fmt.Errorf("failed to search schools: %w", err)
	}
	defer rows.Close()

	schools := []nces.School{}
	for rows.Next() {
		var (
			s                   nces.School
			level, schType, zip sql.NullString
		)
		if err := rows.Scan(&s.NCESSCH, &s.Name, &s.City, &s.State, &s.LEAID, &level, &schType, &zip); err != nil {
			return nil, fmt.Errorf("failed to scan school row: %w", err)
		}
		for key, v := range map[string]sql.NullString{"LEVEL": level, "SCH_TYPE_TEXT": schType, "MZIP": zip} {
			if !v.Valid {
				continue
			}
			if s.Attributes == nil {
				s.Attributes = map[string]any{}
			}
			s.Attributes[key] = v.String
		}
		schools = append(schools, s)
	}
	if err := rows.Err(); err != nil {
		if logger != nil {
			logger.Error("Row iteration error in SearchSchools", "error", err, "schools_count", len(schools))
		}
		return nil, err
	}

	return schools, nil
}

// SaveLookupCache stores a serialized lookup result under key
func (d *DB) SaveLookupCache(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	query := `
		INSERT INTO lookup_cache (cache_key, payload, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at
	`

	if _, err := d.conn.ExecContext(ctx, query, key, string(payload), fetchedAt.UTC()); err != nil {
		if logger != nil {
			logger.Error("Failed to save lookup cache", "error", err, "cache_key", key)
		}
		return fmt.Errorf("failed to save lookup cache: %w", err)
	}
	return nil
}

// LoadLookupCache returns the payload stored under key if it is younger than
// maxAge.
func (d *DB) LoadLookupCache(ctx context.Context, key string, maxAge time.Duration) ([]byte, error) {
	var (
		payload   sql.NullString
		fetchedAt time.Time
	)
	err := d.conn.QueryRowContext(ctx, `
		SELECT payload::VARCHAR, fetched_at
		FROM lookup_cache
		WHERE cache_key = $1
	`, key).Scan(&payload, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errCacheMiss
		}
		if logger != nil {
			logger.Error("Failed to load lookup cache", "error", err, "cache_key", key)
		}
		return nil, fmt.Errorf("failed to load lookup cache: %w", err)
	}

	if time.Now().UTC().Sub(fetchedAt.UTC()) > maxAge || !payload.Valid {
		return nil, errCacheMiss
	}
	return []byte(payload.String), nil
}

// PurgeLookupCache deletes entries older than maxAge and returns how many
// were removed.
func (d *DB) PurgeLookupCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := d.conn.ExecContext(ctx, `DELETE FROM lookup_cache WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge lookup cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows: %w", err)
	}
	if logger != nil {
		logger.Info("Purged lookup cache", "removed", n, "max_age", maxAge.String())
	}
	return n, nil
}
