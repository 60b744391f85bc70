// Derivation of simulation status from remote log output.
//
// The simulation executable is an external C++ program whose log file is the
// only progress channel we have, so status is recovered by scanning
// free-text markers.  The scan is deliberately tolerant: unrecognized lines
// are ignored.  A marker line whose numeric payload cannot be parsed is a
// different matter, that is a log-format contract violation and surfaces as
// a ParseError; the caller should abandon the status computation for that
// one simulation.

package logstatus

import (
	"fmt"
	"strconv"
	"strings"
)

type Status string

const (
	Queued    Status = "queued"
	Running   Status = "running"
	Finished  Status = "finished"
	Crashed   Status = "crashed"
	Aborted   Status = "aborted"
	Cancelled Status = "cancelled"
	Retrieved Status = "retrieved"
	Unknown   Status = "unknown"
)

// True for the Running status and for the detailed "running: ..." forms.

func (s Status) IsRunning() bool {
	return s == Running || strings.HasPrefix(string(s), "running: ")
}

type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Malformed log line %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const (
	crashMarker  = " *** Error: "
	memoryFooter = " Available memory: "
)

// Markers that open a simulation phase.  Scanning is line-by-line and
// last-write-wins: the final marker seen decides the reported phase.

var phaseMarkers = []struct {
	marker string
	phase  string
}{
	{"Starting setup", "setup"},
	{"Starting the stellar emission phase", "stellar emission"},
	{"Starting the first-stage dust self-absorption cycle", "self-absorption [stage 1"},
	{"Starting the second-stage dust self-absorption cycle", "self-absorption [stage 2"},
	{"Starting the last-stage dust self-absorption cycle", "self-absorption [stage 3"},
	{"Starting the dust emission phase", "dust emission"},
	{"Starting writing results", "writing"},
}

// Markers for photon-package launch progress.  The self-absorption variants
// additionally carry a cycle number.

var progressMarkers = []struct {
	marker   string
	hasCycle bool
}{
	{"Launched stellar emission photon packages", false},
	{"Launched first-stage dust self-absorption cycle", true},
	{"Launched second-stage dust self-absorption cycle", true},
	{"Launched last-stage dust self-absorption cycle", true},
	{"Launched dust emission photon packages", false},
}

// The last line written by the simulation itself.  The convention is that
// the very last line of the log may be a memory-usage footer, in which case
// the true last line is the one before it.

func lastSimulationLine(tail []string) string {
	if len(tail) == 0 {
		return ""
	}
	last := tail[len(tail)-1]
	if strings.Contains(last, memoryFooter) && len(tail) >= 2 {
		return tail[len(tail)-2]
	}
	return last
}

// Classify a simulation from the last lines of its log, for a simulation
// owned by a detached session.  `alive` reports whether that session still
// exists.  When the tail shows neither completion nor a crash and the
// session is alive, the result is Running; the caller refines that with
// RunningStatus over the full log text.

func TerminalStatus(tail []string, alive bool, prefix string) Status {
	last := lastSimulationLine(tail)
	switch {
	case strings.Contains(last, " Finished simulation "+prefix):
		return Finished
	case strings.Contains(last, crashMarker):
		return Crashed
	case alive:
		return Running
	default:
		return Aborted
	}
}

// Classify a simulation whose log file does not exist at all.

func NoLogStatus(alive bool) Status {
	if alive {
		return Queued
	}
	return Cancelled
}

// Classify a scheduler job that is no longer in the queue listing, from the
// last lines of its log.  It cannot be running (the queue would have shown
// it), so a partial log means it was aborted.

func JobTerminalStatus(tail []string, prefix string) Status {
	last := lastSimulationLine(tail)
	switch {
	case strings.Contains(last, " Finished simulation "+prefix):
		return Finished
	case strings.Contains(last, crashMarker):
		return Crashed
	default:
		return Aborted
	}
}

// Scan the full log text of a running simulation and report its phase and,
// where applicable, cycle number and packet-launch percentage.  Only the
// last seen phase and the last seen progress figure count; nothing is
// averaged.  A pure function of its input.

func RunningStatus(lines []string) (Status, error) {
	phase := ""
	cycle := -1
	progress := -1.0

	for _, line := range lines {
		matched := false
		for _, pm := range phaseMarkers {
			if strings.Contains(line, pm.marker) {
				phase = pm.phase
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		for _, pm := range progressMarkers {
			if !strings.Contains(line, pm.marker) {
				continue
			}
			if pm.hasCycle {
				c, err := extractCycle(line)
				if err != nil {
					return Unknown, err
				}
				cycle = c
			}
			p, err := extractProgress(line)
			if err != nil {
				return Unknown, err
			}
			progress = p
			break
		}
	}

	switch {
	case phase == "":
		return Running, nil
	case strings.HasPrefix(phase, "self-absorption"):
		return Status(fmt.Sprintf("running: %s, cycle %d] %s%%", phase, cycle, formatProgress(progress))), nil
	case phase == "stellar emission" || phase == "dust emission":
		return Status(fmt.Sprintf("running: %s %s%%", phase, formatProgress(progress))), nil
	default:
		return Status("running: " + phase), nil
	}
}

// Extract the percentage from a "... photon packages: NN.NN%" line.

func extractProgress(line string) (float64, error) {
	_, rest, found := strings.Cut(line, "packages: ")
	if !found {
		return 0, &ParseError{Line: line, Err: fmt.Errorf("no 'packages:' field")}
	}
	num, _, found := strings.Cut(rest, "%")
	if !found {
		return 0, &ParseError{Line: line, Err: fmt.Errorf("no %% terminator")}
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, &ParseError{Line: line, Err: err}
	}
	return p, nil
}

// Extract the cycle number from a "... cycle N photon packages ..." line.

func extractCycle(line string) (int, error) {
	_, rest, found := strings.Cut(line, "cycle ")
	if !found {
		return 0, &ParseError{Line: line, Err: fmt.Errorf("no 'cycle' field")}
	}
	num, _, found := strings.Cut(rest, " photon packages")
	if !found {
		return 0, &ParseError{Line: line, Err: fmt.Errorf("no 'photon packages' terminator")}
	}
	c, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return 0, &ParseError{Line: line, Err: err}
	}
	return c, nil
}

func formatProgress(p float64) string {
	if p < 0 {
		return "?"
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
