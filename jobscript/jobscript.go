// Generation of scheduler submission scripts.
//
// A job script is a pure function of the simulation command, the cluster's
// module list and the requested resources; nothing here talks to the remote
// host.  Resource bounds are not validated here, the dispatcher settles
// nodes/ppn/walltime through the estimator before asking for a script.

package jobscript

import (
	"fmt"
	"os"
	"strings"
)

type Options struct {
	// Job name shown in the queue listing.
	Name string

	Nodes        int
	PPN          int
	CoresPerNode int

	// Requested walltime in seconds.
	WalltimeSec int

	// Ask the scheduler for mail on begin/abort/end.
	Mail bool

	// Request whole nodes even when fewer processors are needed, so the
	// job does not share nodes with other workloads.
	FullNode bool
}

// Build the submission script text: scheduler directives, module loads,
// then the change to the working directory and the simulation command.

func Generate(command, workDir string, modules []string, opts Options) string {
	ppn := opts.PPN
	if opts.FullNode && opts.CoresPerNode > 0 {
		ppn = opts.CoresPerNode
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Batch script for running a simulation on a remote cluster\n")
	if opts.Name != "" {
		fmt.Fprintf(&b, "#PBS -N %s\n", opts.Name)
	}
	fmt.Fprintf(&b, "#PBS -o output_%s.txt\n", opts.Name)
	fmt.Fprintf(&b, "#PBS -e error_%s.txt\n", opts.Name)
	fmt.Fprintf(&b, "#PBS -l walltime=%s\n", FormatWalltime(opts.WalltimeSec))
	fmt.Fprintf(&b, "#PBS -l nodes=%d:ppn=%d\n", opts.Nodes, ppn)
	if opts.Mail {
		b.WriteString("#PBS -m bae\n")
	}
	b.WriteString("\n")
	for _, m := range modules {
		fmt.Fprintf(&b, "module load %s\n", m)
	}
	if len(modules) > 0 {
		b.WriteString("\n")
	}
	if workDir != "" {
		fmt.Fprintf(&b, "cd %s\n", workDir)
	}
	b.WriteString(command + "\n")
	return b.String()
}

// Write the script to a local file, executable.

func Write(filename, command, workDir string, modules []string, opts Options) error {
	return os.WriteFile(filename, []byte(Generate(command, workDir, modules, opts)), 0755)
}

// Render seconds as the scheduler's HH:MM:SS walltime syntax.

func FormatWalltime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}
