package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per user with JSON TEXT columns.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			communication_patterns TEXT NOT NULL DEFAULT '{}',
			triggers TEXT NOT NULL DEFAULT '{}',
			successful_rewrites TEXT NOT NULL DEFAULT '[]',
			intervention_history TEXT NOT NULL DEFAULT '{}',
			profile_version INTEGER NOT NULL DEFAULT 0,
			last_profile_update TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Get loads and validates the row for userID.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, display_name, communication_patterns, triggers,
		successful_rewrites, intervention_history, profile_version, last_profile_update
		FROM user_profiles WHERE user_id = ?`, userID)

	var (
		p                                  Profile
		patterns, triggers, rewrites, hist string
		lastUpdate                         string
	)
	err := row.Scan(&p.UserID, &p.DisplayName, &patterns, &triggers, &rewrites, &hist, &p.ProfileVersion, &lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}

	for _, col := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"communication_patterns", patterns, &p.Patterns},
		{"triggers", triggers, &p.Triggers},
		{"successful_rewrites", rewrites, &p.SuccessfulRewrites},
		{"intervention_history", hist, &p.InterventionHistory},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidProfile, col.name, err)
		}
	}
	if lastUpdate != "" {
		t, err := time.Parse(time.RFC3339Nano, lastUpdate)
		if err != nil {
			return nil, fmt.Errorf("%w: last_profile_update: %w", ErrInvalidProfile, err)
		}
		p.LastProfileUpdate = t
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Put upserts p when the stored version matches expected.
func (s *SQLiteStore) Put(ctx context.Context, p *Profile, expected int64) error {
	if err := p.Validate(); err != nil {
		return err
	}
	cols, err := encodeColumns(p)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	lastUpdate := ""
	if !p.LastProfileUpdate.IsZero() {
		lastUpdate = p.LastProfileUpdate.UTC().Format(time.RFC3339Nano)
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `INSERT INTO user_profiles (user_id, display_name, communication_patterns,
			triggers, successful_rewrites, intervention_history, profile_version, last_profile_update, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			p.UserID, p.DisplayName, cols[0], cols[1], cols[2], cols[3], p.ProfileVersion, lastUpdate, now)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE user_profiles SET display_name = ?, communication_patterns = ?,
			triggers = ?, successful_rewrites = ?, intervention_history = ?, profile_version = ?,
			last_profile_update = ?, updated_at = ?
			WHERE user_id = ? AND profile_version = ?`,
			p.DisplayName, cols[0], cols[1], cols[2], cols[3], p.ProfileVersion, lastUpdate, now, p.UserID, expected)
	}
	if err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeColumns(p *Profile) ([4]string, error) {
	var out [4]string
	for i, v := range []any{p.Patterns, p.Triggers, p.SuccessfulRewrites, p.InterventionHistory} {
		b, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("encode profile: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}
