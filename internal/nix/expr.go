// Package nix renders the build expressions for test scenarios and
// drives the external Nix tooling that evaluates them.
//
// The expressions reference the test suite's entry point file, which
// exposes one attribute set per scenario with a vm test derivation and
// its driver. nbtest never evaluates Nix itself; it shells out to
// nix-build and nix-instantiate.
package nix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fort-nix/nbtest/internal/scenario"
)

// ExprParams holds everything needed to render a scenario expression.
// Resource limits travel inside the expression rather than through the
// ambient environment, so an invocation is fully described by its
// rendered string.
type ExprParams struct {
	// TestsFile is the path to the Nix entry point, e.g. ./test/tests.nix.
	TestsFile string

	// Scenario selects the test configuration.
	Scenario scenario.Spec

	// NumCPUs and MemoryMiB are the resolved VM resource limits.
	NumCPUs   int
	MemoryMiB int

	// ExtraQEMUOpts is appended to the scenario's own QEMU options.
	// Only the CI profile sets this.
	ExtraQEMUOpts string
}

// TestExpr renders the expression for the scenario's VM test
// derivation. Building it runs the full test inside the Nix sandbox.
func TestExpr(p ExprParams) string {
	return fmt.Sprintf("(%s).vm", importCall(p))
}

// DriverExpr renders the expression for the scenario's test driver,
// the program that boots the VM and executes the test script.
func DriverExpr(p ExprParams) string {
	return fmt.Sprintf("(%s).vm.driver", importCall(p))
}

// importCall renders the call of the tests entry point with the
// scenario name and any extra arguments bound. Arguments are emitted in
// sorted order so rendering is deterministic.
func importCall(p ExprParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "import %s {", p.TestsFile)
	fmt.Fprintf(&b, " scenario = %q;", p.Scenario.Name)
	if p.NumCPUs > 0 {
		fmt.Fprintf(&b, " numCPUs = %d;", p.NumCPUs)
	}
	if p.MemoryMiB > 0 {
		fmt.Fprintf(&b, " memoryMiB = %d;", p.MemoryMiB)
	}

	qemuOpts := joinQEMUOpts(p.Scenario.ExtraQEMUOpts, p.ExtraQEMUOpts)
	if qemuOpts != "" {
		fmt.Fprintf(&b, " extraQEMUOpts = %q;", qemuOpts)
	}

	keys := make([]string, 0, len(p.Scenario.Args))
	for k := range p.Scenario.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s = %s;", k, p.Scenario.Args[k])
	}

	b.WriteString(" }")
	return b.String()
}

func joinQEMUOpts(opts ...string) string {
	var nonEmpty []string
	for _, o := range opts {
		if o != "" {
			nonEmpty = append(nonEmpty, o)
		}
	}
	return strings.Join(nonEmpty, " ")
}
