// Package testutil provides a deterministic substitute for the
// orchestrator's external command runner.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/fort-nix/nbtest/internal/nix"
)

// Response scripts the outcome of one FakeRunner invocation.
type Response struct {
	Stdout string
	Err    error
}

// FakeRunner records every command it is asked to run and replays
// scripted responses in order. Once the script is exhausted, further
// commands succeed with empty output.
//
// Thread-safety: all methods are safe for concurrent use, although the
// orchestrator only ever runs commands sequentially.
type FakeRunner struct {
	mu        sync.Mutex
	calls     []nix.Command
	responses []Response
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Enqueue appends a scripted response for the next unscripted call.
func (f *FakeRunner) Enqueue(stdout string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, Response{Stdout: stdout, Err: err})
}

// Run implements nix.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd *nix.Command) error {
	f.mu.Lock()
	recorded := *cmd
	// Writers are not comparable across tests; drop them from the record.
	recorded.Stdin = nil
	recorded.Stdout = nil
	recorded.Stderr = nil
	f.calls = append(f.calls, recorded)

	var resp Response
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if resp.Stdout != "" && cmd.Stdout != nil {
		fmt.Fprint(cmd.Stdout, resp.Stdout)
	}
	return resp.Err
}

// Calls returns a copy of the recorded commands.
func (f *FakeRunner) Calls() []nix.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]nix.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallPaths returns the executable path of every recorded command.
func (f *FakeRunner) CallPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, len(f.calls))
	for i, c := range f.calls {
		paths[i] = c.Path
	}
	return paths
}
