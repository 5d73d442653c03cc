package vm

import (
	"fmt"
	"log/slog"
	"os"
)

// RunDir is the temporary working directory for one driver launch. It
// holds the driver out-link and the assembled test script, and is
// removed on Close regardless of how the run ended.
type RunDir struct {
	Path string
}

// NewRunDir creates a uniquely named directory under the system temp
// root. Callers must Close it; pairing with defer covers every exit
// path.
func NewRunDir() (*RunDir, error) {
	path, err := os.MkdirTemp("", "nbtest-run-")
	if err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &RunDir{Path: path}, nil
}

// Close removes the directory and everything in it.
func (d *RunDir) Close() error {
	if d.Path == "" {
		return nil
	}
	slog.Debug("removing run directory", "path", d.Path)
	err := os.RemoveAll(d.Path)
	d.Path = ""
	return err
}
