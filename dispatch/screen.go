// Execution on hosts without a scheduling system: queued submission into a
// shared detached screen session.

package dispatch

import (
	"fmt"

	"skirtrun/logstatus"
	"skirtrun/record"
	"skirtrun/remote"
	"skirtrun/skirt"
)

type screenMode struct {
	d *Dispatcher
}

// Allocate a local id and park the simulation in the queue.  Scheduling
// options make no sense here and are rejected rather than ignored.

func (m *screenMode) submit(sim *record.Simulation, args *skirt.Arguments, opts *SchedulingOptions) error {
	if opts != nil {
		return fmt.Errorf("Host %s has no scheduling system; scheduling options are not applicable", m.d.host.ID)
	}
	id, err := m.d.store.NewID()
	if err != nil {
		return err
	}
	sim.ID = id
	m.d.queue = append(m.d.queue, queuedItem{sim, args})
	return nil
}

// The status of a screen-hosted simulation is derived from two facts: does
// its log file exist, and is its screen session still alive.  The log tail
// settles terminal states; a live phase is read from the full log.

func (m *screenMode) statuses(sims []*record.Simulation) ([]Entry, error) {
	entries := make([]Entry, 0, len(sims))
	for _, sim := range sims {
		st, err := m.status(sim)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{sim, st})
	}
	return entries, nil
}

func (m *screenMode) status(sim *record.Simulation) (logstatus.Status, error) {
	if sim.Retrieved {
		return logstatus.Retrieved, nil
	}
	// No session name yet: accepted into the queue but never started.
	if sim.ScreenName == "" {
		return logstatus.Queued, nil
	}
	logPath := sim.RemoteLogPath()
	present, err := m.d.conn.IsFile(logPath)
	if err != nil {
		return logstatus.Unknown, err
	}
	alive, err := m.d.conn.IsActiveScreen(sim.ScreenName)
	if err != nil {
		return logstatus.Unknown, err
	}
	if !present {
		return logstatus.NoLogStatus(alive), nil
	}

	tail, err := m.d.conn.Execute("tail -n 2 " + remote.Quote(logPath))
	if err != nil {
		return logstatus.Unknown, err
	}
	st := logstatus.TerminalStatus(tail, alive, sim.Prefix())
	if st != logstatus.Running {
		return st, nil
	}

	lines, err := m.d.conn.ReadTextFile(logPath)
	if err != nil {
		return logstatus.Unknown, err
	}
	st, perr := logstatus.RunningStatus(lines)
	if perr != nil {
		m.d.log.Errorf("Simulation %d (%s): %v", sim.ID, sim.Name, perr)
		return logstatus.Unknown, nil
	}
	return st, nil
}
