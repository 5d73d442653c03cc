// Package resources resolves the CPU and memory limits handed to the
// test VM.
//
// Defaults are the host core count and 2048 MiB. Both can be overridden
// through the numCPUs and memoryMiB environment variables. The CI
// profile raises memory to 3072 MiB and then clamps it to what the host
// actually has available, so constrained CI runners don't over-allocate.
package resources

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

const (
	// DefaultMemoryMiB is the VM memory when nothing overrides it.
	DefaultMemoryMiB = 2048

	// CIMemoryMiB is the requested VM memory under the CI profile,
	// before clamping to host availability.
	CIMemoryMiB = 3072

	// memoryStepMiB is the granularity available host memory is
	// rounded down to before clamping.
	memoryStepMiB = 50
)

// Env variable names recognized as overrides. They keep the exact
// casing callers have always used.
const (
	EnvNumCPUs   = "numCPUs"
	EnvMemoryMiB = "memoryMiB"
)

// Limits holds the resolved VM resource limits.
type Limits struct {
	NumCPUs   int
	MemoryMiB int
}

// Request carries explicit limit overrides from the config file or a
// scenario definition. Zero means unset. Environment variables still
// win over a Request.
type Request struct {
	NumCPUs   int
	MemoryMiB int
}

// Resolve computes the effective limits: built-in defaults, replaced by
// the request where set, replaced by env overrides where set.
func Resolve(req Request) (Limits, error) {
	return resolve(req, DefaultMemoryMiB)
}

// ResolveCI computes limits for the CI profile: the memory default is
// raised to CIMemoryMiB, then the result is clamped to the host's
// available memory rounded down to a 50 MiB multiple. Explicit
// overrides still win over the CI default but are clamped the same way.
func ResolveCI(req Request) (Limits, error) {
	limits, err := resolve(req, CIMemoryMiB)
	if err != nil {
		return Limits{}, err
	}

	availableKiB, err := readMemAvailableKiB(procMeminfoPath)
	if err != nil {
		return Limits{}, fmt.Errorf("reading host memory: %w", err)
	}
	limits.MemoryMiB = ClampToAvailable(limits.MemoryMiB, availableKiB)
	return limits, nil
}

func resolve(req Request, defaultMemoryMiB int) (Limits, error) {
	defaultCPUs := runtime.NumCPU()
	if req.NumCPUs > 0 {
		defaultCPUs = req.NumCPUs
	}
	if req.MemoryMiB > 0 {
		defaultMemoryMiB = req.MemoryMiB
	}

	numCPUs, err := intFromEnv(EnvNumCPUs, defaultCPUs)
	if err != nil {
		return Limits{}, err
	}
	memoryMiB, err := intFromEnv(EnvMemoryMiB, defaultMemoryMiB)
	if err != nil {
		return Limits{}, err
	}
	return Limits{NumCPUs: numCPUs, MemoryMiB: memoryMiB}, nil
}

// ClampToAvailable caps requestedMiB at the host's available memory,
// rounded down to the nearest 50 MiB. Values are only ever lowered.
func ClampToAvailable(requestedMiB int, availableKiB int64) int {
	availableMiB := int(availableKiB / 1024)
	rounded := (availableMiB / memoryStepMiB) * memoryStepMiB
	if rounded < requestedMiB {
		return rounded
	}
	return requestedMiB
}

// intFromEnv returns the integer value of an env variable, or fallback
// when the variable is unset or empty. A set but non-numeric value is a
// usage error.
func intFromEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: must be an integer", name, raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", name, v)
	}
	return v, nil
}
