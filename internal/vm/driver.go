// Package vm launches the NixOS test driver for a built scenario.
//
// The driver itself is an external program produced by the build; this
// package assembles its test script, constructs the minimal process
// environment, and runs it to completion. Nothing from the ambient
// environment leaks into the driver beyond the variables listed in
// Environment.
package vm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fort-nix/nbtest/internal/nix"
)

// EnvEnableNetwork enables VM network egress when set in the caller's
// environment. Without it the VM's user network runs with restrict=on.
const EnvEnableNetwork = "NB_TEST_ENABLE_NETWORK"

// LaunchConfig describes one driver invocation.
type LaunchConfig struct {
	// DriverDir is the built driver output (the run directory's
	// driver out-link).
	DriverDir string

	// RunDir is the temporary working directory; it becomes the
	// driver's TMPDIR.
	RunDir string

	// TestScript is the executable script content handed to the
	// driver.
	TestScript string

	NumCPUs   int
	MemoryMiB int

	// ExtraQEMUOpts carries scenario- or profile-specific QEMU
	// options.
	ExtraQEMUOpts string

	// EnableNetwork lifts the restrict=on egress block.
	EnableNetwork bool

	// NixPath is forwarded as NIX_PATH so the driver can locate
	// nixpkgs.
	NixPath string

	// AmbientQEMUOpts and AmbientQEMUNetOpts are the caller's
	// QEMU_OPTS / QEMU_NET_OPTS values, appended to the computed
	// options.
	AmbientQEMUOpts    string
	AmbientQEMUNetOpts string
}

// ReadTestScript returns the plain test script body shipped inside the
// built driver.
func ReadTestScript(driverDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(driverDir, "test-script"))
	if err != nil {
		return "", fmt.Errorf("reading test script: %w", err)
	}
	return string(data), nil
}

// DebugScript extends a test script body so the driver starts all VM
// nodes and then drops into a Python REPL instead of running headless.
func DebugScript(body string) string {
	var b strings.Builder
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("start_all()\n")
	b.WriteString("import code\n")
	b.WriteString("code.interact(local=globals())\n")
	return b.String()
}

// Environment builds the complete driver environment. Only these
// variables are passed; the ambient environment is otherwise dropped.
func Environment(cfg LaunchConfig) []string {
	qemuOpts := fmt.Sprintf("-smp %d -m %d -nographic", cfg.NumCPUs, cfg.MemoryMiB)
	for _, extra := range []string{cfg.ExtraQEMUOpts, cfg.AmbientQEMUOpts} {
		if extra != "" {
			qemuOpts += " " + extra
		}
	}

	var netOpts string
	if !cfg.EnableNetwork {
		netOpts = "restrict=on"
	}
	if cfg.AmbientQEMUNetOpts != "" {
		if netOpts != "" {
			netOpts += ","
		}
		netOpts += cfg.AmbientQEMUNetOpts
	}

	return []string{
		"NIX_PATH=" + cfg.NixPath,
		"TMPDIR=" + cfg.RunDir,
		"USE_TMPDIR=1",
		"QEMU_OPTS=" + qemuOpts,
		"QEMU_NET_OPTS=" + netOpts,
	}
}

// Launch writes the test script into the run directory and executes the
// driver binary with the minimal environment, blocking until it exits.
// Stdio is inherited so the driver's console (and the debug REPL) talk
// directly to the user.
func Launch(ctx context.Context, runner nix.Runner, cfg LaunchConfig) error {
	scriptPath := filepath.Join(cfg.RunDir, "test-script.py")
	if err := os.WriteFile(scriptPath, []byte(cfg.TestScript), 0o644); err != nil {
		return fmt.Errorf("writing test script: %w", err)
	}

	cmd := &nix.Command{
		Path:   filepath.Join(cfg.DriverDir, "bin", "nixos-test-driver"),
		Args:   []string{scriptPath},
		Env:    Environment(cfg),
		Dir:    cfg.RunDir,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if err := runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("test driver failed: %w", err)
	}
	return nil
}
