package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const defaultStatePath = "~/.timeweave/batch-state.json"

// State tracks progress for resumable batch runs. A job is skipped when its
// recorded fingerprint matches the current one.
type State struct {
	StartedAt       time.Time         `json:"started_at"`
	LastProcessedAt time.Time         `json:"last_processed_at"`
	Jobs            map[string]string `json:"jobs"`
	RowsWritten     int               `json:"rows_written"`
	Errors          []string          `json:"errors"`

	path string // not serialized
}

// LoadState loads the state from path, or creates a new one if the file does
// not exist yet.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				Jobs:      make(map[string]string),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.Jobs == nil {
		s.Jobs = make(map[string]string)
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed reports whether job already ran with the same fingerprint.
func (s *State) IsProcessed(job, fingerprint string) bool {
	return s.Jobs[job] == fingerprint
}

// MarkProcessed records the fingerprint a job ran with.
func (s *State) MarkProcessed(job, fingerprint string) {
	if s.Jobs == nil {
		s.Jobs = make(map[string]string)
	}
	s.Jobs[job] = fingerprint
}

// AddError records a processing error.
func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
