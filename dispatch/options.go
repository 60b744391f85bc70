// Scheduling options for batch-job submission.

package dispatch

import (
	"fmt"
	"math"
	"path/filepath"

	"skirtrun/jobscript"
	"skirtrun/record"
	"skirtrun/skirt"
	"skirtrun/walltime"
)

// User-supplied resource requests for one batch job.  Zero-valued fields
// are filled in by the dispatcher: nodes and ppn from the parallelization
// and the cluster profile, the walltime from the estimator.  A nil
// *SchedulingOptions asks for all defaults.

type SchedulingOptions struct {
	Nodes       int
	PPN         int
	WalltimeSec int
	Mail        bool

	// Request whole nodes; on by default so jobs do not share nodes.
	FullNode bool

	// Where to write the generated job script locally; defaults to
	// job.sh next to the ski file.
	JobScriptPath string
}

// The safety margin applied to historical walltime figures.

const walltimeSafetyFactor = 1.2

// Settle every open scheduling option into a concrete job script request.

func (d *Dispatcher) verifySchedulingOptions(args *skirt.Arguments, sim *record.Simulation, opts *SchedulingOptions) (jobscript.Options, string, error) {
	if opts == nil {
		opts = &SchedulingOptions{FullNode: true}
	}

	nodes, ppn := opts.Nodes, opts.PPN
	if nodes == 0 || ppn == 0 {
		if d.host.CoresPerNode == 0 {
			return jobscript.Options{}, "", fmt.Errorf("Host %s has no cores-per-node setting; cannot derive a node count", d.host.ID)
		}
		nodes, ppn = walltime.Requirements(args.Parallel.Processors(), d.host.CoresPerNode)
	}

	walltimeSec := opts.WalltimeSec
	if walltimeSec == 0 {
		if d.est == nil {
			return jobscript.Options{}, "", fmt.Errorf("No walltime given and no estimator available")
		}
		sec, err := d.est.Walltime(args.Parallel.Processes, args.Parallel.Threads, walltimeSafetyFactor)
		if err != nil {
			return jobscript.Options{}, "", err
		}
		walltimeSec = int(math.Ceil(sec))
	}

	scriptPath := opts.JobScriptPath
	if scriptPath == "" {
		scriptPath = filepath.Join(filepath.Dir(sim.LocalSkiPath), "job.sh")
	}

	return jobscript.Options{
		Name:         sim.Name,
		Nodes:        nodes,
		PPN:          ppn,
		CoresPerNode: d.host.CoresPerNode,
		WalltimeSec:  walltimeSec,
		Mail:         opts.Mail,
		FullNode:     opts.FullNode,
	}, scriptPath, nil
}
