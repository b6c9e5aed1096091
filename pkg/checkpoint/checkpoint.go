// Package checkpoint resolves where agent checkpoints live on disk.
//
// Checkpoints are grouped per agent and per run:
//
//	<root>/<agent>/<run stamp>/
//
// Run stamps sort chronologically, so the latest run is the greatest name.
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultRoot is where checkpoints are written when no root is configured.
const DefaultRoot = "policies"

var ErrNoCheckpoints = errors.New("no checkpoints found")

// Dir returns the checkpoint directory of one run of agent.
func Dir(root, agent, stamp string) string {
	if root == "" {
		root = DefaultRoot
	}
	return filepath.Join(root, agent, stamp)
}

// EnsureDir creates dir and its parents if they do not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	return nil
}

// Latest returns the checkpoint directory of agent's most recent run.
func Latest(root, agent string) (string, error) {
	if root == "" {
		root = DefaultRoot
	}
	base := filepath.Join(root, agent)
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w for %s in %s", ErrNoCheckpoints, agent, root)
		}
		return "", fmt.Errorf("read checkpoint dir: %w", err)
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w for %s in %s", ErrNoCheckpoints, agent, root)
	}
	sort.Strings(runs)
	return filepath.Join(base, runs[len(runs)-1]), nil
}
