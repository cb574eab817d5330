package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/llmburst/llmburst/internal/report"
	"github.com/llmburst/llmburst/internal/results"
)

const persistedResponseChars = 1000

// Document is the structured record persisted once at run end.
type Document struct {
	RunID           string                   `json:"run_id"`
	Config          any                      `json:"config"`
	Summary         report.Report            `json:"summary"`
	HealthChecks    []results.HealthSample   `json:"health_checks"`
	ResponseSamples []results.ResponseSample `json:"response_samples"`
	Results         []results.Outcome        `json:"results"`
}

// NewRunID returns a ULID for this run; it also lands in the filename so
// two runs started within the same second cannot collide.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WriteRunFile persists the document under dir with a unique name embedding
// the wall-clock timestamp and run ID. The directory is flocked while
// writing so concurrent runs sharing an output directory cannot interleave.
func WriteRunFile(dir string, doc Document) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".llmburst.lock"))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("lock output dir: %w", err)
	}
	defer lock.Unlock()

	for i := range doc.Results {
		doc.Results[i].Response = results.Truncate(doc.Results[i].Response, persistedResponseChars)
	}

	name := fmt.Sprintf("llmburst_%s_%s.json", time.Now().Format("20060102_150405"), doc.RunID)
	path := filepath.Join(dir, name)

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run document: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write run document: %w", err)
	}
	return path, nil
}

// PrintJSONReport writes the aggregate as indented JSON, for --json runs.
func PrintJSONReport(w io.Writer, r report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
