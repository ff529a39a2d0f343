package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// SQLiteStore persists sessions in a single SQLite database. The full
// session document is stored as JSON with the fields the listing needs
// lifted into indexed columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		branch TEXT NOT NULL,
		phase TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_branch ON sessions(branch);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("Opened session database at %s", path)
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(sess *Session) error {
	sess.UpdatedAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sess.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, branch, phase, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			branch = excluded.branch,
			phase = excluded.phase,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Branch, string(sess.Phase), string(data), sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}

	logging.StoreDebug("Saved session %s (phase=%s attempt=%d)", sess.ID, sess.Phase, sess.CurrentAttempt)
	return nil
}

func (s *SQLiteStore) Load(id string) (*Session, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLiteStore) Latest(branch string) (*Session, error) {
	query := `SELECT data FROM sessions ORDER BY id DESC LIMIT 1`
	args := []any{}
	if branch != "" {
		query = `SELECT data FROM sessions WHERE branch = ? ORDER BY id DESC LIMIT 1`
		args = append(args, branch)
	}

	var data string
	err := s.db.QueryRow(query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) List() ([]Summary, error) {
	rows, err := s.db.Query(`SELECT id, branch, phase, updated_at FROM sessions ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var phase string
		if err := rows.Scan(&sum.ID, &sum.Branch, &phase, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sum.Phase = Phase(phase)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
