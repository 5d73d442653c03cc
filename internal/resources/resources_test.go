package resources

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaults(t *testing.T) {
	t.Setenv(EnvNumCPUs, "")
	t.Setenv(EnvMemoryMiB, "")

	limits, err := Resolve(Request{})
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), limits.NumCPUs)
	assert.Equal(t, DefaultMemoryMiB, limits.MemoryMiB)
}

func TestResolveRequestOverridesDefaults(t *testing.T) {
	t.Setenv(EnvNumCPUs, "")
	t.Setenv(EnvMemoryMiB, "")

	limits, err := Resolve(Request{NumCPUs: 2, MemoryMiB: 4096})
	require.NoError(t, err)

	assert.Equal(t, 2, limits.NumCPUs)
	assert.Equal(t, 4096, limits.MemoryMiB)
}

func TestResolveEnvWinsOverRequest(t *testing.T) {
	t.Setenv(EnvNumCPUs, "3")
	t.Setenv(EnvMemoryMiB, "1024")

	limits, err := Resolve(Request{NumCPUs: 8, MemoryMiB: 8192})
	require.NoError(t, err)

	assert.Equal(t, 3, limits.NumCPUs)
	assert.Equal(t, 1024, limits.MemoryMiB)
}

func TestResolveRejectsNonNumericOverride(t *testing.T) {
	t.Setenv(EnvMemoryMiB, "lots")

	_, err := Resolve(Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memoryMiB")
}

func TestResolveRejectsNonPositiveOverride(t *testing.T) {
	t.Setenv(EnvNumCPUs, "0")

	_, err := Resolve(Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestClampToAvailable(t *testing.T) {
	tests := []struct {
		name         string
		requestedMiB int
		availableKiB int64
		want         int
	}{
		{
			name:         "plenty of memory leaves request unchanged",
			requestedMiB: 3072,
			availableKiB: 8 * 1024 * 1024, // 8 GiB
			want:         3072,
		},
		{
			name:         "scarce memory caps to rounded available",
			requestedMiB: 3072,
			availableKiB: 2200 * 1024, // 2200 MiB
			want:         2200,
		},
		{
			name:         "available rounded down to 50 MiB multiple",
			requestedMiB: 3072,
			availableKiB: 2249 * 1024, // 2249 MiB -> 2200
			want:         2200,
		},
		{
			name:         "exact multiple at the boundary",
			requestedMiB: 2048,
			availableKiB: 2048 * 1024, // 2048 MiB -> 2000, below request
			want:         2000,
		},
		{
			name:         "rounded value equal to request is kept",
			requestedMiB: 2000,
			availableKiB: 2049 * 1024,
			want:         2000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampToAvailable(tt.requestedMiB, tt.availableKiB))
		})
	}
}

func TestParseMemAvailable(t *testing.T) {
	meminfo := `MemTotal:       16303392 kB
MemFree:         1126392 kB
MemAvailable:    7892340 kB
Buffers:          384592 kB
`
	kib, err := parseMemAvailableKiB(strings.NewReader(meminfo))
	require.NoError(t, err)
	assert.Equal(t, int64(7892340), kib)
}

func TestParseMemAvailableMissing(t *testing.T) {
	meminfo := "MemTotal: 16303392 kB\nMemFree: 1126392 kB\n"

	_, err := parseMemAvailableKiB(strings.NewReader(meminfo))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MemAvailable")
}

func TestParseMemAvailableMalformed(t *testing.T) {
	_, err := parseMemAvailableKiB(strings.NewReader("MemAvailable: lots kB\n"))
	require.Error(t, err)
}
