// Resource requirement estimation.
//
// Walltime estimation uses a tiered fallback search because historical
// timing data is sparse and scaling behavior depends on both the system and
// the parallelization mode: an exact match is strongly preferred over
// cross-mode or cross-system extrapolation, which in turn beats the
// expensive dry-run fallback.

package walltime

import (
	"errors"

	"skirtrun/status"
)

// Translate a total processor count into a node count and a
// processors-per-node figure for the given cluster.

func Requirements(processors, coresPerNode int) (nodes, ppn int) {
	nodes = processors / coresPerNode
	if processors%coresPerNode > 0 {
		nodes++
	}
	if nodes <= 1 {
		return 1, processors
	}
	return nodes, coresPerNode
}

// The parallelization mode implied by a process/thread pair.

func ModeFor(processes, threads int) string {
	switch {
	case processes > 1 && threads > 1:
		return "hybrid"
	case processes > 1:
		return "mpi"
	default:
		return "threads"
	}
}

type Estimator struct {
	// Timing database, may be nil when no history exists yet.
	History *History

	// Identity of the remote system the estimate is for.
	System string

	// Local log file of a previous run of the same simulation, next to
	// the reference ski file; empty when there is none.
	LogPath string

	// Last-resort estimate: run a lightweight dry-run resource estimator
	// against the input file and report its predicted runtime in seconds.
	DryRun func(processes, threads int) (float64, error)

	Log *status.Logger
}

// Estimate the walltime in seconds for a run with the given process and
// thread counts.  `factor` is the safety margin on whatever historical
// figure is found.  Tiers, each tried only when the previous had no data:
//
//  1. history: same system, same mode, same processor count
//  2. history: same system, same processor count, any mode
//  3. history: same processor count, any system, any mode
//  4. a previous run's log file next to the reference ski file, rescaled
//     by the processor-count ratio
//  5. dry-run resource estimation

func (e *Estimator) Walltime(processes, threads int, factor float64) (float64, error) {
	if factor <= 0 {
		factor = 1.2
	}
	processors := processes * threads
	mode := ModeFor(processes, threads)
	log := e.Log
	if log == nil {
		log = status.Default()
	}

	if e.History != nil {
		total, ok, err := e.History.TotalFor(e.System, mode, processors)
		if err != nil {
			return 0, err
		}
		if ok {
			return total * factor, nil
		}

		total, ok, err = e.History.TotalForSystem(e.System, processors)
		if err != nil {
			return 0, err
		}
		if ok {
			return total * factor, nil
		}

		total, ok, err = e.History.TotalForProcessors(processors)
		if err != nil {
			return 0, err
		}
		if ok {
			// Cross-system extrapolation mixes hardware profiles.
			log.Warningf("walltime estimated from a different system's timing data")
			return total * factor, nil
		}
	}

	if e.LogPath != "" {
		m, ok, err := ParseLogTimings(e.LogPath)
		if err != nil {
			return 0, err
		}
		if ok {
			log.Warningf("walltime estimated by rescaling a previous run's log")
			old := float64(m.Processors)
			cur := float64(processors)
			estimate := m.SerialSec + m.ParallelSec*old/cur + m.OverheadSec*cur/old
			return estimate * factor, nil
		}
	}

	if e.DryRun != nil {
		log.Warningf("no timing data available, falling back to a dry run")
		estimate, err := e.DryRun(processes, threads)
		if err != nil {
			return 0, err
		}
		return estimate * factor, nil
	}

	return 0, errors.New("No walltime estimate available for this simulation")
}
