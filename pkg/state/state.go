// Package state persists one record per cheribuild invocation so later
// runs can answer what was built, in which order, and how it went.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// TargetResult is the outcome of one planned target.
type TargetResult struct {
	Target   string               `json:"target"`
	State    types.ExecutionState `json:"state"`
	Stage    types.Stage          `json:"stage,omitempty"`
	Duration time.Duration        `json:"duration,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// Record describes one invocation.
type Record struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Requested  []string       `json:"requested"`
	Plan       []string       `json:"plan"`
	Success    bool           `json:"success"`
	Results    []TargetResult `json:"results"`
}

// Recorder writes records under <root>/.cheribuild/state. Writes are
// atomic so a crashed invocation never leaves a half-written record.
type Recorder struct {
	dir string
	log logger.Logger
	mu  sync.Mutex
}

// NewRecorder creates the state directory if needed.
func NewRecorder(root string, log logger.Logger) *Recorder {
	dir := filepath.Join(root, ".cheribuild", "state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}
	return &Recorder{dir: dir, log: log}
}

// Begin opens a record for the invocation.
func (r *Recorder) Begin(requested, planned []string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Requested: append([]string{}, requested...),
		Plan:      append([]string{}, planned...),
	}
}

// Append adds one target outcome to the record.
func (r *Recorder) Append(rec *Record, result TargetResult) {
	rec.Results = append(rec.Results, result)
}

// Finish stamps and persists the record, both under its own ID and as
// the latest record.
func (r *Recorder) Finish(rec *Record, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.FinishedAt = time.Now()
	rec.Success = success

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if err := r.writeAtomic(r.recordPath(rec.ID), data); err != nil {
		return err
	}
	return r.writeAtomic(r.latestPath(), data)
}

// Latest returns the most recently finished record.
func (r *Recorder) Latest() (*Record, error) {
	return r.load(r.latestPath())
}

// Load returns the record with the given ID.
func (r *Recorder) Load(id string) (*Record, error) {
	return r.load(r.recordPath(id))
}

// List returns every stored record, newest first.
func (r *Recorder) List() ([]*Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state directory: %w", err)
	}
	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if filepath.Ext(name) != ".json" || name == "latest.json" {
			continue
		}
		rec, err := r.load(filepath.Join(r.dir, name))
		if err != nil {
			r.log.Warn("Skipping unreadable run record",
				logger.WithField("file", name),
				logger.WithField("error", err))
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

func (r *Recorder) load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run record %s: %w", path, err)
	}
	return &rec, nil
}

func (r *Recorder) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename run record: %w", err)
	}
	return nil
}

func (r *Recorder) recordPath(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *Recorder) latestPath() string {
	return filepath.Join(r.dir, "latest.json")
}
