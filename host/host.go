// Remote host configuration.
//
// Each host known to skirtrun is described by one ini file, <host-id>.ini,
// in the host configuration directory.  The [host] section describes how to
// reach the host and where the simulation executable and run directory live;
// the [cluster] section is present for hosts with a scheduling system and
// describes the resource profile used when building job scripts.

package host

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	ini "github.com/lars-t-hansen/ini"
)

type Host struct {
	// Short identifier, doubles as the name of the local bookkeeping
	// directory for the host.
	ID string

	// ssh destination, "user@hostname".
	Addr string

	// True if jobs must go through the host's scheduling system.
	Scheduler bool

	// Remote directory under which per-simulation working directories are
	// created.
	RunDir string

	// Optional remote directory for simulation output; when empty the
	// output directory is placed inside the simulation directory.
	OutputPath string

	// Remote path of the simulation executable; when empty it is located
	// with `which` at setup time.
	SkirtPath string

	// MPI launcher, eg "mpirun" or the scheduler-aware wrapper.
	MpiCommand string

	// Modules to load in generated job scripts.
	Modules []string

	// Cores per node on the cluster, required for scheduler hosts.
	CoresPerNode int

	// Queue names that identify job lines in the scheduler's queue listing.
	Queues []string

	// Upper bound on a single remote command, zero means none.
	CommandTimeout time.Duration
}

// MT: Constant after initialization
var (
	p = ini.NewParser()

	hostSection  = p.AddSection("host")
	hostAddr     = hostSection.AddString("addr")
	hostSched    = hostSection.AddString("scheduler")
	hostRunDir   = hostSection.AddString("run-dir")
	hostOutput   = hostSection.AddString("output-path")
	hostSkirt    = hostSection.AddString("skirt-path")
	hostMpi      = hostSection.AddString("mpi-command")
	hostTimeout  = hostSection.AddString("command-timeout")

	clusterSection = p.AddSection("cluster")
	clusterCores   = clusterSection.AddString("cores-per-node")
	clusterModules = clusterSection.AddString("modules")
	clusterQueues  = clusterSection.AddString("queues")
)

// Parse one host configuration.  The id is not part of the file, it is the
// file's base name and is supplied by the caller.

func Read(id string, input io.Reader) (Host, error) {
	h := Host{ID: id, MpiCommand: "mpirun"}
	store, err := p.Parse(input)
	if err != nil {
		return h, err
	}
	if !hostAddr.Present(store) {
		return h, fmt.Errorf("Host %s: 'addr' is required", id)
	}
	h.Addr = strings.TrimSpace(hostAddr.StringVal(store))
	if hostSched.Present(store) {
		h.Scheduler, err = strconv.ParseBool(strings.TrimSpace(hostSched.StringVal(store)))
		if err != nil {
			return h, fmt.Errorf("Host %s: bad 'scheduler' value: %w", id, err)
		}
	}
	if !hostRunDir.Present(store) {
		return h, fmt.Errorf("Host %s: 'run-dir' is required", id)
	}
	h.RunDir = strings.TrimSpace(hostRunDir.StringVal(store))
	if hostOutput.Present(store) {
		h.OutputPath = strings.TrimSpace(hostOutput.StringVal(store))
	}
	if hostSkirt.Present(store) {
		h.SkirtPath = strings.TrimSpace(hostSkirt.StringVal(store))
	}
	if hostMpi.Present(store) {
		h.MpiCommand = strings.TrimSpace(hostMpi.StringVal(store))
	}
	if hostTimeout.Present(store) {
		h.CommandTimeout, err = time.ParseDuration(strings.TrimSpace(hostTimeout.StringVal(store)))
		if err != nil {
			return h, fmt.Errorf("Host %s: bad 'command-timeout' value: %w", id, err)
		}
	}
	if clusterCores.Present(store) {
		h.CoresPerNode, err = strconv.Atoi(strings.TrimSpace(clusterCores.StringVal(store)))
		if err != nil {
			return h, fmt.Errorf("Host %s: bad 'cores-per-node' value: %w", id, err)
		}
	}
	if clusterModules.Present(store) {
		h.Modules = splitList(clusterModules.StringVal(store))
	}
	if clusterQueues.Present(store) {
		h.Queues = splitList(clusterQueues.StringVal(store))
	}
	if h.Scheduler && h.CoresPerNode == 0 {
		return h, fmt.Errorf("Host %s: scheduler hosts need 'cores-per-node'", id)
	}
	return h, nil
}

// Read the configuration for the host from <dir>/<id>.ini.

func ReadFile(dir, id string) (Host, error) {
	fn := path.Join(dir, id+".ini")
	f, err := os.Open(fn)
	if err != nil {
		return Host{}, err
	}
	defer f.Close()
	h, err := Read(id, f)
	if err != nil {
		return Host{}, fmt.Errorf("%s: %w", fn, err)
	}
	return h, nil
}

func splitList(s string) []string {
	var xs []string
	for _, x := range strings.Split(s, ",") {
		x = strings.TrimSpace(x)
		if x != "" {
			xs = append(xs, x)
		}
	}
	return xs
}
