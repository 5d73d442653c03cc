package resources

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const procMeminfoPath = "/proc/meminfo"

// readMemAvailableKiB returns the MemAvailable value from a
// /proc/meminfo-format file, in KiB.
func readMemAvailableKiB(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return parseMemAvailableKiB(f)
}

// parseMemAvailableKiB scans meminfo lines for the MemAvailable field.
// Lines look like "MemAvailable:    7892340 kB".
func parseMemAvailableKiB(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		name, rest, ok := strings.Cut(line, ":")
		if !ok || name != "MemAvailable" {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return 0, fmt.Errorf("malformed meminfo line %q", line)
		}
		kib, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed meminfo line %q: %w", line, err)
		}
		return kib, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("MemAvailable not found in meminfo")
}
