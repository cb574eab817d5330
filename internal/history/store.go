// Package history keeps a local record of past runs so results can be
// compared across invocations without re-opening every JSON file.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRuns = []byte("runs")

// RunSummary is the per-run row stored in the history database.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	Endpoint    string        `json:"endpoint"`
	Model       string        `json:"model"`
	Concurrency int           `json:"concurrency"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Successes   int           `json:"successes"`
	SuccessRate float64       `json:"success_rate"`
	P99Latency  time.Duration `json:"p99_latency"`
	ResultsFile string        `json:"results_file"`
}

// Store wraps the bbolt database holding run summaries.
type Store struct {
	db *bolt.DB
}

// DefaultPath returns ~/.llmburst/history.db, creating the directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".llmburst")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append records one finished run. Keys are run IDs, which sort by start
// time because ULIDs are time-prefixed.
func (s *Store) Append(run RunSummary) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(run.RunID), payload)
	})
}

// List returns the most recent runs, newest first, up to limit
// (0 means all).
func (s *Store) List(limit int) ([]RunSummary, error) {
	var runs []RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run RunSummary
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}
