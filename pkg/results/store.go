package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StampLayout formats run timestamps in file names and records.
const StampLayout = "2006-01-02_15-04-05"

// RunStamp formats t the way persisted runs are named.
func RunStamp(t time.Time) string {
	return t.Format(StampLayout)
}

// Record is the persisted form of a run: its finalized summaries, keyed by
// agent and start time. Archived per-step detail is not persisted.
type Record struct {
	RunID     string
	AgentName string
	StartedAt time.Time
	Summaries []Summary
}

// Store persists run records.
type Store interface {
	SaveResults(ctx context.Context, rec Record) error
}

// Snapshot returns the persistable form of r.
func (r *Results) Snapshot() Record {
	return Record{
		RunID:     r.runID,
		AgentName: r.agentName,
		StartedAt: r.startedAt,
		Summaries: r.Summaries(),
	}
}

// Persist writes the finalized summaries to store.
func (r *Results) Persist(ctx context.Context, store Store) error {
	if err := store.SaveResults(ctx, r.Snapshot()); err != nil {
		return fmt.Errorf("persist results for %s: %w", r.agentName, err)
	}
	return nil
}

// FileStore dumps records as text files named "<agent> - <stamp>.txt" under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path returns the file a record is written to.
func (s *FileStore) Path(rec Record) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s - %s.txt", rec.AgentName, RunStamp(rec.StartedAt)))
}

func (s *FileStore) SaveResults(ctx context.Context, rec Record) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	dump := (&Results{summaries: rec.Summaries}).String()
	if err := os.WriteFile(s.Path(rec), []byte(dump+"\n"), 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
