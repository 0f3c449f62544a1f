// File: internal/runctx/runctx.go (complete file)

package runctx

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Context is one run's identity and export directory.
type Context struct {
	RunID        string
	StartedAtUTC time.Time
	OutputDir    string
}

// New creates <baseDir>/run_<id>. The id is the UTC start time plus a short random
// suffix so runs started in the same second (monitor, agent) do not share a directory.
func New(baseDir string) (*Context, error) {
	now := time.Now().UTC()
	runID := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
	outDir := filepath.Join(baseDir, fmt.Sprintf("run_%s", runID))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	return &Context{
		RunID:        runID,
		StartedAtUTC: now,
		OutputDir:    outDir,
	}, nil
}

func (c *Context) Path(name string) string {
	return filepath.Join(c.OutputDir, name)
}
