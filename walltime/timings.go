// Extraction of timing measurements from simulation log files.
//
// The log reports, per phase, a "Finished <phase> in N s" line.  Setup and
// result writing run serially; the photon-shooting phases are the parallel
// part; whatever remains of the reported total is communication and other
// overhead.

package walltime

import (
	"strconv"
	"strings"

	"skirtrun/filesys"
)

var serialPhaseMarkers = []string{
	"Finished setup in ",
	"Finished writing results in ",
}

var parallelPhaseMarkers = []string{
	"Finished the stellar emission phase in ",
	"Finished the dust self-absorption phase in ",
	"Finished the dust emission phase in ",
}

const totalMarker = "Finished simulation "

// Extract a timing measurement from the lines of a finished simulation's
// log.  The second result is false when the log holds no total runtime, in
// which case the measurement is useless.

func ParseLogTimingLines(lines []string) (Measurement, bool) {
	m := Measurement{Processors: 1}
	processes, threads := 1, 1
	haveTotal := false

	for _, line := range lines {
		if p, t, ok := parseParallelization(line); ok {
			processes, threads = p, t
			continue
		}
		if sec, ok := matchSeconds(line, serialPhaseMarkers); ok {
			m.SerialSec += sec
			continue
		}
		if sec, ok := matchSeconds(line, parallelPhaseMarkers); ok {
			m.ParallelSec += sec
			continue
		}
		if strings.Contains(line, totalMarker) {
			if sec, ok := parseSeconds(line); ok {
				m.TotalSec = sec
				haveTotal = true
			}
		}
	}

	if !haveTotal {
		return m, false
	}
	m.Processors = processes * threads
	m.Mode = ModeFor(processes, threads)
	m.OverheadSec = m.TotalSec - m.SerialSec - m.ParallelSec
	if m.OverheadSec < 0 {
		m.OverheadSec = 0
	}
	return m, true
}

// As ParseLogTimingLines, for a local log file.  The middle result is false
// when the file does not exist or holds no usable data.

func ParseLogTimings(path string) (Measurement, bool, error) {
	if !filesys.IsFile(path) {
		return Measurement{}, false, nil
	}
	lines, err := filesys.FileLines(path)
	if err != nil {
		return Measurement{}, false, err
	}
	m, ok := ParseLogTimingLines(lines)
	return m, ok, nil
}

// Recognize "... with N processes and M threads".

func parseParallelization(line string) (processes, threads int, ok bool) {
	_, rest, found := strings.Cut(line, " with ")
	if !found {
		return 0, 0, false
	}
	pStr, rest, found := strings.Cut(rest, " processes and ")
	if !found {
		return 0, 0, false
	}
	tStr, _, found := strings.Cut(rest, " threads")
	if !found {
		return 0, 0, false
	}
	p, err1 := strconv.Atoi(strings.TrimSpace(pStr))
	t, err2 := strconv.Atoi(strings.TrimSpace(tStr))
	if err1 != nil || err2 != nil || p < 1 || t < 1 {
		return 0, 0, false
	}
	return p, t, true
}

func matchSeconds(line string, markers []string) (float64, bool) {
	for _, marker := range markers {
		if strings.Contains(line, marker) {
			return parseSeconds(line)
		}
	}
	return 0, false
}

// Extract the duration from a "... in N s" or "... in N.N s" line tail.

func parseSeconds(line string) (float64, bool) {
	i := strings.LastIndex(line, " in ")
	if i == -1 {
		return 0, false
	}
	rest := line[i+4:]
	num, _, found := strings.Cut(rest, " s")
	if !found {
		return 0, false
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	return sec, true
}
