package nix

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Builder invokes nix-build and nix-instantiate for rendered
// expressions.
type Builder struct {
	runner Runner

	// BuildLog receives the raw nix-build progress output. Defaults
	// to discarding; the CLI points it at stderr.
	BuildLog io.Writer
}

// NewBuilder returns a Builder that executes through runner.
func NewBuilder(runner Runner) *Builder {
	return &Builder{runner: runner, BuildLog: io.Discard}
}

// Build runs nix-build for expr and returns the resulting store path.
// When outLink is non-empty the result symlink is created there;
// otherwise no link is persisted.
func (b *Builder) Build(ctx context.Context, expr, outLink string) (string, error) {
	args := []string{}
	if outLink != "" {
		args = append(args, "--out-link", outLink)
	} else {
		args = append(args, "--no-out-link")
	}
	args = append(args, "-E", expr)

	slog.Debug("invoking nix-build", "expr", expr, "outLink", outLink)

	var stdout bytes.Buffer
	cmd := &Command{
		Path:   "nix-build",
		Args:   args,
		Stdout: &stdout,
		Stderr: b.BuildLog,
	}
	if err := b.runner.Run(ctx, cmd); err != nil {
		return "", fmt.Errorf("build failed: %w", err)
	}

	path := lastLine(stdout.String())
	if path == "" {
		return "", fmt.Errorf("nix-build produced no store path for %s", expr)
	}
	return path, nil
}

// Instantiate evaluates expr to its derivation path without building.
func (b *Builder) Instantiate(ctx context.Context, expr string) (string, error) {
	slog.Debug("invoking nix-instantiate", "expr", expr)

	var stdout bytes.Buffer
	cmd := &Command{
		Path:   "nix-instantiate",
		Args:   []string{"-E", expr},
		Stdout: &stdout,
		Stderr: b.BuildLog,
	}
	if err := b.runner.Run(ctx, cmd); err != nil {
		return "", fmt.Errorf("instantiate failed: %w", err)
	}

	path := lastLine(stdout.String())
	if path == "" {
		return "", fmt.Errorf("nix-instantiate produced no path for %s", expr)
	}
	return path, nil
}

// lastLine returns the final non-empty line of s. nix-build may print
// several store paths; the built result is the last one.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
