// Package state defines the backend used to persist per-deployment stage state.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Status describes the recorded status of a single stage.
type Status string

const (
	// StatusPending means the stage has not run yet.
	StatusPending Status = "pending"
	// StatusCompleted means the stage finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the stage ran and failed.
	StatusFailed Status = "failed"
)

// valid reports whether s is one of the known statuses.
func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// RunState is the persisted record of which stages have run for a deployment.
type RunState struct {
	// Deployment is the deployment identifier (normally the domain name).
	Deployment string `yaml:"deployment"`
	// CreatedAt is when the record was first written.
	CreatedAt time.Time `yaml:"createdAt"`
	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `yaml:"updatedAt"`
	// Stages maps stage name to its recorded status.
	Stages map[string]Status `yaml:"stages"`
}

// Completed reports whether the named stage is recorded as completed.
func (r *RunState) Completed(stage string) bool {
	return r != nil && r.Stages[stage] == StatusCompleted
}

// Mark records a status for the named stage.
func (r *RunState) Mark(stage string, status Status) {
	if r.Stages == nil {
		r.Stages = make(map[string]Status)
	}
	r.Stages[stage] = status
}

// CorruptError indicates the on-disk state file could not be read or parsed.
// The operator must inspect or delete the file before any stage can run.
type CorruptError struct {
	// Path is the state file location.
	Path string
	// Err is the underlying parse or validation error.
	Err error
}

func (e *CorruptError) Error() string {
	if e == nil {
		return "state file is corrupt"
	}
	return fmt.Sprintf("state file %s is corrupt (inspect or delete it to continue): %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// IsCorruptError reports whether err indicates a corrupt state file.
func IsCorruptError(err error) bool {
	var target *CorruptError
	return errors.As(err, &target)
}

// Store reads and writes RunState records under a single directory,
// one YAML file per deployment.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore constructs a Store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Load reads the RunState for a deployment. A missing file yields a fresh
// record with no completed stages; an unreadable or invalid file yields a
// CorruptError.
func (s *Store) Load(deployment string) (*RunState, error) {
	path := s.Path(deployment)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		now := time.Now().UTC()
		return &RunState{
			Deployment: deployment,
			CreatedAt:  now,
			UpdatedAt:  now,
			Stages:     make(map[string]Status),
		}, nil
	}
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	var st RunState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	if st.Stages == nil {
		st.Stages = make(map[string]Status)
	}
	for stage, status := range st.Stages {
		if !status.valid() {
			return nil, &CorruptError{Path: path, Err: fmt.Errorf("unknown status %q for stage %q", status, stage)}
		}
	}
	if st.Deployment == "" {
		st.Deployment = deployment
	}

	return &st, nil
}

// Save persists the RunState, creating the store directory as needed.
// The file is written to a temporary path and renamed so a crash mid-write
// never leaves a half-written record behind.
func (s *Store) Save(st *RunState) error {
	if st == nil {
		return fmt.Errorf("state record is nil")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", s.dir, err)
	}

	st.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state for %s: %w", st.Deployment, err)
	}

	path := s.Path(st.Deployment)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit state file %s: %w", path, err)
	}

	s.logger.Debug("state saved", "deployment", st.Deployment, "path", path)
	return nil
}

// Reset removes the stored record for a deployment. A missing file is not an error.
func (s *Store) Reset(deployment string) error {
	path := s.Path(deployment)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file %s: %w", path, err)
	}
	return nil
}

// Path returns the state file location for a deployment.
func (s *Store) Path(deployment string) string {
	return filepath.Join(s.dir, sanitize(deployment)+".yaml")
}

// sanitize maps a deployment identifier onto a safe file name.
func sanitize(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
