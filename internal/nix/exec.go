package nix

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external process invocation.
type Command struct {
	// Path is the executable to run, resolved via PATH when relative.
	Path string
	Args []string

	// Env is the complete process environment. nil inherits the
	// ambient environment; an empty non-nil slice passes none.
	Env []string

	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes external commands. The production implementation is
// ExecRunner; tests substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, cmd *Command) error
}

// ExecRunner runs commands via os/exec. A command's failure is wrapped
// with its name so callers can propagate it unchanged.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd *Command) error {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	if cmd.Env != nil {
		c.Env = cmd.Env
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	if err := c.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", cmd.Path, strings.Join(cmd.Args, " "), err)
	}
	return nil
}
