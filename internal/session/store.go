package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AgenticCurve/gitsplit/internal/logging"
)

// ErrNotFound is returned when a session ID has no stored state.
var ErrNotFound = errors.New("session not found")

// Summary is the listing view of a stored session.
type Summary struct {
	ID        string    `json:"id"`
	Branch    string    `json:"branch"`
	Phase     Phase     `json:"phase"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists sessions. Implementations must make Save atomic
// enough that a crashed run can still be resumed from the last
// completed phase.
type Store interface {
	Save(s *Session) error
	Load(id string) (*Session, error)
	// Latest returns the most recent session, optionally filtered by
	// branch (empty means any). ErrNotFound when nothing matches.
	Latest(branch string) (*Session, error)
	List() ([]Summary, error)
	Delete(id string) error
}

// JSONStore keeps one pretty-printed JSON file per session in a
// directory, named <id>.json. IDs start with a timestamp so
// lexicographic order is chronological order.
type JSONStore struct {
	dir string
}

// NewJSONStore creates the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (j *JSONStore) path(id string) string {
	return filepath.Join(j.dir, id+".json")
}

func (j *JSONStore) Save(s *Session) error {
	s.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}

	tmp := j.path(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session %s: %w", s.ID, err)
	}
	if err := os.Rename(tmp, j.path(s.ID)); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", s.ID, err)
	}

	logging.StoreDebug("Saved session %s (phase=%s attempt=%d)", s.ID, s.Phase, s.CurrentAttempt)
	return nil
}

func (j *JSONStore) Load(id string) (*Session, error) {
	data, err := os.ReadFile(j.path(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (j *JSONStore) Latest(branch string) (*Session, error) {
	summaries, err := j.List()
	if err != nil {
		return nil, err
	}
	for _, sum := range summaries {
		if branch != "" && sum.Branch != branch {
			continue
		}
		return j.Load(sum.ID)
	}
	return nil, ErrNotFound
}

func (j *JSONStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var summaries []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(j.dir, e.Name()))
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil || s.ID == "" {
			// Corrupt session files are skipped, not fatal.
			logging.StoreDebug("Skipping unreadable session file %s", e.Name())
			continue
		}
		summaries = append(summaries, Summary{
			ID:        s.ID,
			Branch:    s.Branch,
			Phase:     s.Phase,
			UpdatedAt: s.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(a, b int) bool {
		return summaries[a].ID > summaries[b].ID
	})
	return summaries, nil
}

func (j *JSONStore) Delete(id string) error {
	err := os.Remove(j.path(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}
