// The argument bundle for one simulation run.
//
// An Arguments value describes where the ski file, input directory and
// output directory live, and the requested parallelization.  The dispatcher
// rewrites the paths when the simulation moves to a remote host, so the
// bundle is copied before it is mutated.

package skirt

import (
	"fmt"
	"path"
	"strings"
)

type Parallel struct {
	Processes int
	Threads   int
}

// Total number of processors, assuming one thread per processor.

func (p Parallel) Processors() int {
	processes := p.Processes
	if processes < 1 {
		processes = 1
	}
	threads := p.Threads
	if threads < 1 {
		threads = 1
	}
	return processes * threads
}

type Arguments struct {
	// Path (or pattern) of the ski file to run.
	SkiPattern string

	// Input directory, empty when the simulation needs no input files.
	InputPath string

	// Output directory.
	OutputPath string

	Parallel Parallel

	// Enable verbose logging in the simulation itself.
	Verbose bool
}

func (a *Arguments) Copy() *Arguments {
	b := *a
	return &b
}

// The simulation prefix: the base name of the ski file without extension.
// Output and log files are all named <prefix>_<something>.

func (a *Arguments) Prefix() string {
	name := path.Base(a.SkiPattern)
	if i := strings.Index(name, ".ski"); i != -1 {
		name = name[:i]
	}
	return name
}

// Produce the command line that runs this simulation with the given
// executable.  Under a scheduler the MPI launcher derives the process count
// from the job's resource allocation, so -np is omitted there.

func (a *Arguments) Command(skirtPath, mpiCommand string, scheduler bool) string {
	var b strings.Builder
	if a.Parallel.Processes > 1 {
		if scheduler {
			fmt.Fprintf(&b, "%s ", mpiCommand)
		} else {
			fmt.Fprintf(&b, "%s -np %d ", mpiCommand, a.Parallel.Processes)
		}
	}
	b.WriteString(skirtPath)
	if a.Parallel.Threads > 0 {
		fmt.Fprintf(&b, " -t %d", a.Parallel.Threads)
	}
	if a.Verbose {
		b.WriteString(" -v")
	}
	if a.InputPath != "" {
		fmt.Fprintf(&b, " -i %s", a.InputPath)
	}
	if a.OutputPath != "" {
		fmt.Fprintf(&b, " -o %s", a.OutputPath)
	}
	b.WriteString(" " + a.SkiPattern)
	return b.String()
}
