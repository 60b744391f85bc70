// Execution on hosts with a scheduling system: one batch job per
// simulation, submitted with qsub at staging time.

package dispatch

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"skirtrun/jobscript"
	"skirtrun/logstatus"
	"skirtrun/record"
	"skirtrun/remote"
	"skirtrun/skirt"
)

type scheduledMode struct {
	d *Dispatcher
}

// Build the job script, upload it into the simulation directory and submit
// it.  The scheduler's job id becomes the simulation id, which keeps the
// record names aligned with the queue listing.

func (m *scheduledMode) submit(sim *record.Simulation, args *skirt.Arguments, opts *SchedulingOptions) error {
	jobOpts, scriptPath, err := m.d.verifySchedulingOptions(args, sim, opts)
	if err != nil {
		return err
	}

	command := args.Command(m.d.skirtPath, m.d.host.MpiCommand, true)
	if err := jobscript.Write(scriptPath, command, sim.RemoteSimulationPath, m.d.host.Modules, jobOpts); err != nil {
		return err
	}
	if err := m.d.conn.Upload(scriptPath, sim.RemoteSimulationPath); err != nil {
		return err
	}
	remoteScript := path.Join(sim.RemoteSimulationPath, filepath.Base(scriptPath))

	lines, err := m.d.conn.Execute("qsub " + remote.Quote(remoteScript))
	if err != nil {
		return err
	}
	id, err := parseJobID(lines)
	if err != nil {
		return err
	}
	sim.ID = id
	return nil
}

// qsub prints the full job identifier, "12345.master.cluster".  Only the
// numeric part matters.

func parseJobID(lines []string) (int, error) {
	if len(lines) == 0 {
		return 0, fmt.Errorf("No output from qsub")
	}
	numeric, _, _ := strings.Cut(lines[0], ".")
	id, err := strconv.Atoi(strings.TrimSpace(numeric))
	if err != nil {
		return 0, fmt.Errorf("Unexpected qsub output %q: %w", lines[0], err)
	}
	return id, nil
}

// One qstat round-trip covers every simulation.  Jobs no longer listed have
// left the queue, and their fate is read from the log file.

func (m *scheduledMode) statuses(sims []*record.Simulation) ([]Entry, error) {
	lines, err := m.d.conn.Execute("qstat")
	if err != nil {
		return nil, err
	}
	states := m.parseQueueListing(lines)

	entries := make([]Entry, 0, len(sims))
	for _, sim := range sims {
		st, err := m.status(sim, states)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{sim, st})
	}
	return entries, nil
}

func (m *scheduledMode) status(sim *record.Simulation, states map[int]string) (logstatus.Status, error) {
	if sim.Retrieved {
		return logstatus.Retrieved, nil
	}
	switch states[sim.ID] {
	case "Q", "H", "W":
		return logstatus.Queued, nil
	case "R", "E":
		lines, err := m.d.conn.ReadTextFile(sim.RemoteLogPath())
		if err != nil {
			// The job may not have produced a log yet.
			return logstatus.Running, nil
		}
		st, perr := logstatus.RunningStatus(lines)
		if perr != nil {
			m.d.log.Errorf("Simulation %d (%s): %v", sim.ID, sim.Name, perr)
			return logstatus.Unknown, nil
		}
		return st, nil
	default:
		// Absent from the listing, or completed: the log decides.
		logPath := sim.RemoteLogPath()
		present, err := m.d.conn.IsFile(logPath)
		if err != nil {
			return logstatus.Unknown, err
		}
		if !present {
			return logstatus.Cancelled, nil
		}
		tail, err := m.d.conn.Execute("tail -n 2 " + remote.Quote(logPath))
		if err != nil {
			return logstatus.Unknown, err
		}
		return logstatus.JobTerminalStatus(tail, sim.Prefix()), nil
	}
}

// Extract job id and state from a qstat listing.  A job line starts with
// the job identifier and carries the single-letter state just before the
// queue name; header and separator lines carry no recognizable id and are
// skipped.  When the host configuration names its queues, lines for other
// queues are ignored.

func (m *scheduledMode) parseQueueListing(lines []string) map[int]string {
	states := make(map[int]string)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		numeric, _, _ := strings.Cut(fields[0], ".")
		id, err := strconv.Atoi(numeric)
		if err != nil {
			continue
		}
		queueName := fields[len(fields)-1]
		if len(m.d.host.Queues) > 0 && !contains(m.d.host.Queues, queueName) {
			continue
		}
		states[id] = fields[len(fields)-2]
	}
	return states
}

func contains(xs []string, x string) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}
