//go:build linux

package memory

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func (s *systemSampler) FreeMemory() (float64, error) {
	b, err := readMemAvailable(s.meminfoPath)
	if err == nil {
		return bytesToGB(b), nil
	}

	var info unix.Sysinfo_t
	if serr := unix.Sysinfo(&info); serr != nil {
		return 0, fmt.Errorf("memory: meminfo: %v, sysinfo: %w", err, serr)
	}
	return bytesToGB(uint64(info.Freeram) * uint64(info.Unit)), nil
}

// readMemAvailable parses the MemAvailable line of a meminfo file. The kB
// figure is scaled by 1000 to match the decimal GB reported elsewhere.
func readMemAvailable(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "MemAvailable:"))
		if len(fields) == 0 {
			return 0, fmt.Errorf("memory: malformed MemAvailable line: %q", line)
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("memory: malformed MemAvailable value: %w", err)
		}
		return kb * 1000, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("memory: no MemAvailable entry in %s", path)
}
