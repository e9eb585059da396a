// Package sqlite provides the durable pattern library store. One
// database file holds the pattern table; migrations are embedded and
// applied on open. Concurrency control is optimistic via a
// store_version column, surfaced as domain.ErrLibraryConflict.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/strata-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// Store is the SQLite-backed pattern library.
type Store struct {
	db   *sql.DB
	path string
}

// Ensure Store implements the interface.
var _ driven.PatternStore = (*Store)(nil)

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.strata/data/patterns.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".strata", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "patterns.db")

	// WAL mode lets scoring reads proceed concurrently with the
	// serialized partition writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

const patternColumns = `id, document_type, hash, descriptor, airlines, versions,
	example_count, description, superseded_by, store_version, created_at, updated_at`

// FindByHash returns patterns with the given signature hash within a
// document type.
func (s *Store) FindByHash(ctx context.Context, documentType, hash string) ([]domain.Pattern, error) {
	return s.query(ctx, `
		SELECT `+patternColumns+`
		FROM patterns WHERE document_type = ? AND hash = ?
		ORDER BY id
	`, documentType, hash)
}

// FindCandidatesByType returns all non-superseded patterns for a
// document type.
func (s *Store) FindCandidatesByType(ctx context.Context, documentType string) ([]domain.Pattern, error) {
	return s.query(ctx, `
		SELECT `+patternColumns+`
		FROM patterns WHERE document_type = ? AND superseded_by IS NULL
		ORDER BY id
	`, documentType)
}

// Insert stores a new pattern.
func (s *Store) Insert(ctx context.Context, p *domain.Pattern) error {
	descriptorJSON, err := json.Marshal(p.Signature.Descriptor)
	if err != nil {
		return fmt.Errorf("marshalling descriptor: %w", err)
	}
	airlinesJSON, err := json.Marshal(p.Airlines)
	if err != nil {
		return fmt.Errorf("marshalling airlines: %w", err)
	}
	versionsJSON, err := json.Marshal(p.Versions)
	if err != nil {
		return fmt.Errorf("marshalling versions: %w", err)
	}

	p.StoreVersion = 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.DocumentType, p.Signature.Hash, string(descriptorJSON),
		string(airlinesJSON), string(versionsJSON), p.ExampleCount,
		nullString(p.Description), nullString(p.SupersededBy), p.StoreVersion,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("inserting pattern: %w", err)
	}
	return nil
}

// UpdateScope persists changed variant metadata. The row's
// store_version must match; a mismatch means a concurrent writer got
// there first and is reported as domain.ErrLibraryConflict.
func (s *Store) UpdateScope(ctx context.Context, p *domain.Pattern) error {
	airlinesJSON, err := json.Marshal(p.Airlines)
	if err != nil {
		return fmt.Errorf("marshalling airlines: %w", err)
	}
	versionsJSON, err := json.Marshal(p.Versions)
	if err != nil {
		return fmt.Errorf("marshalling versions: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE patterns
		SET airlines = ?, versions = ?, example_count = ?, description = ?,
			store_version = store_version + 1, updated_at = ?
		WHERE id = ? AND store_version = ?
	`, string(airlinesJSON), string(versionsJSON), p.ExampleCount,
		nullString(p.Description), p.UpdatedAt, p.ID, p.StoreVersion)
	if err != nil {
		return fmt.Errorf("updating pattern: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		if _, gerr := s.Get(ctx, p.ID); gerr != nil {
			return gerr
		}
		return domain.ErrLibraryConflict
	}
	p.StoreVersion++
	return nil
}

// MarkSuperseded points a pattern at its survivor. Re-marking with the
// same survivor is a no-op. A writer that raced in between the read
// and the write is reported as domain.ErrLibraryConflict.
func (s *Store) MarkSuperseded(ctx context.Context, id, survivorID string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.SupersededBy == survivorID {
		return nil
	}
	return s.markSuperseded(ctx, id, survivorID, existing.StoreVersion)
}

// markSuperseded is the guarded write: the row's store_version must
// still match the one read.
func (s *Store) markSuperseded(ctx context.Context, id, survivorID string, storeVersion int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE patterns
		SET superseded_by = ?, store_version = store_version + 1
		WHERE id = ? AND store_version = ?
	`, survivorID, id, storeVersion)
	if err != nil {
		return fmt.Errorf("marking superseded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return gerr
		}
		return domain.ErrLibraryConflict
	}
	return nil
}

// Get retrieves a single pattern by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Pattern, error) {
	rows, err := s.query(ctx, `
		SELECT `+patternColumns+`
		FROM patterns WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}

// List returns all patterns, optionally filtered by document type.
func (s *Store) List(ctx context.Context, documentType string) ([]domain.Pattern, error) {
	if documentType == "" {
		return s.query(ctx, `SELECT `+patternColumns+` FROM patterns ORDER BY id`)
	}
	return s.query(ctx, `
		SELECT `+patternColumns+`
		FROM patterns WHERE document_type = ?
		ORDER BY id
	`, documentType)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying patterns: %w", err)
	}
	defer rows.Close()

	var patterns []domain.Pattern //nolint:prealloc // size unknown from query
	for rows.Next() {
		var p domain.Pattern
		var descriptorJSON, airlinesJSON, versionsJSON string
		var description, supersededBy sql.NullString
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.DocumentType, &p.Signature.Hash, &descriptorJSON,
			&airlinesJSON, &versionsJSON, &p.ExampleCount, &description,
			&supersededBy, &p.StoreVersion, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning pattern: %w", err)
		}

		if err := json.Unmarshal([]byte(descriptorJSON), &p.Signature.Descriptor); err != nil {
			return nil, fmt.Errorf("unmarshaling descriptor: %w", err)
		}
		if err := json.Unmarshal([]byte(airlinesJSON), &p.Airlines); err != nil {
			return nil, fmt.Errorf("unmarshaling airlines: %w", err)
		}
		if err := json.Unmarshal([]byte(versionsJSON), &p.Versions); err != nil {
			return nil, fmt.Errorf("unmarshaling versions: %w", err)
		}
		p.Description = description.String
		p.SupersededBy = supersededBy.String
		if createdAt.Valid {
			p.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			p.UpdatedAt = updatedAt.Time
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patterns: %w", err)
	}
	return patterns, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
