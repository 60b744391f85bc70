// The verb handlers.
//
// Every verb shares the same bootstrap: read the host configuration, open
// the connection and the per-host record store, then hand the work to a
// Dispatcher.  Flags are per-verb.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skirtrun/dispatch"
	"skirtrun/host"
	"skirtrun/record"
	"skirtrun/remote"
	"skirtrun/skirt"
	"skirtrun/status"
	"skirtrun/walltime"
)

const timingDatabase = "timing.db"

// Flags common to all verbs.

type commonArgs struct {
	hostID  string
	hostDir string
	runDir  string
	verbose bool
}

func (c *commonArgs) register(fs *flag.FlagSet) {
	base := defaultBaseDir()
	fs.StringVar(&c.hostID, "host", "", "Identifier of the remote `host` (required)")
	fs.StringVar(&c.hostDir, "host-dir", filepath.Join(base, "hosts"), "Host configuration `directory`")
	fs.StringVar(&c.runDir, "run-dir", filepath.Join(base, "run"), "Local bookkeeping `directory`")
	fs.BoolVar(&c.verbose, "v", false, "Print diagnostic information")
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skirtrun"
	}
	return filepath.Join(home, ".skirtrun")
}

type session struct {
	host       host.Host
	conn       *remote.SSH
	dispatcher *dispatch.Dispatcher
	history    *walltime.History
	estimator  *walltime.Estimator
	log        *status.Logger
}

func connect(c *commonArgs) (*session, error) {
	if c.hostID == "" {
		return nil, fmt.Errorf("A -host argument is required")
	}
	log := status.Default()
	if c.verbose {
		log.SetLevel(status.LevelDebug)
	}

	h, err := host.ReadFile(c.hostDir, c.hostID)
	if err != nil {
		return nil, err
	}
	conn, err := remote.Dial(h.Addr, h.CommandTimeout)
	if err != nil {
		return nil, err
	}
	store, err := record.NewStore(c.runDir, h.ID)
	if err != nil {
		conn.Close()
		return nil, err
	}
	history, err := walltime.OpenHistory(filepath.Join(store.Directory(), timingDatabase))
	if err != nil {
		conn.Close()
		return nil, err
	}
	est := &walltime.Estimator{
		History: history,
		System:  h.ID,
		Log:     log,
	}
	return &session{
		host:       h,
		conn:       conn,
		dispatcher: dispatch.New(conn, h, store, est, log),
		history:    history,
		estimator:  est,
		log:        log,
	}, nil
}

func (s *session) close() {
	s.history.Close()
	s.conn.Close()
}

func runSimulations(arg0 string, args []string) error {
	fs := flag.NewFlagSet(arg0+" run", flag.ExitOnError)
	var common commonArgs
	common.register(fs)
	inputPath := fs.String("input", "", "Local input `directory`, when the simulation needs input files")
	outputPath := fs.String("output", "", "Local `directory` the results are retrieved into; defaults to the ski file's directory")
	processes := fs.Int("processes", 1, "Number of MPI processes")
	threads := fs.Int("threads", 1, "Number of threads per process")
	name := fs.String("name", "", "Human `label` for the simulation; defaults to the ski file name")
	simVerbose := fs.Bool("verbose-simulation", false, "Enable verbose logging in the simulation itself")
	walltimeSec := fs.Int("walltime", 0, "Requested walltime in `seconds` (scheduler hosts); estimated when omitted")
	nodes := fs.Int("nodes", 0, "Number of `nodes` to request (scheduler hosts); derived when omitted")
	ppn := fs.Int("ppn", 0, "Processors per node to request (scheduler hosts); derived when omitted")
	mail := fs.Bool("mail", false, "Ask the scheduler for mail on job begin/abort/end")
	sharedNodes := fs.Bool("shared-nodes", false, "Allow jobs to share nodes with other workloads")
	jobScript := fs.String("job-script", "", "Local `path` the generated job script is written to")
	screenName := fs.String("screen-name", "", "Name of the screen session (non-scheduler hosts)")
	screenOutput := fs.String("screen-output", "", "Remote `path` screen logs the session to (non-scheduler hosts)")
	retrieveTypes := fs.String("retrieve-types", "", "Comma-separated output `categories` to retrieve; default everything")
	removeInput := fs.Bool("remove-remote-input", false, "Remove the remote input directory after retrieval")
	removeOutput := fs.Bool("remove-remote-output", false, "Remove the remote output directory after retrieval")
	removeDir := fs.Bool("remove-remote-dir", false, "Remove the remote simulation directory after retrieval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	skiFiles := fs.Args()
	if len(skiFiles) == 0 {
		return fmt.Errorf("At least one ski file is required")
	}

	s, err := connect(&common)
	if err != nil {
		return err
	}
	defer s.close()

	var opts *dispatch.SchedulingOptions
	if s.host.Scheduler {
		opts = &dispatch.SchedulingOptions{
			Nodes:         *nodes,
			PPN:           *ppn,
			WalltimeSec:   *walltimeSec,
			Mail:          *mail,
			FullNode:      !*sharedNodes,
			JobScriptPath: *jobScript,
		}
	}

	for _, ski := range skiFiles {
		simArgs := &skirt.Arguments{
			SkiPattern: ski,
			InputPath:  *inputPath,
			OutputPath: *outputPath,
			Parallel:   skirt.Parallel{Processes: *processes, Threads: *threads},
			Verbose:    *simVerbose,
		}
		if simArgs.OutputPath == "" {
			simArgs.OutputPath = filepath.Dir(ski)
		}
		// A previous run's log next to the ski file can anchor the
		// walltime estimate.
		s.estimator.LogPath = filepath.Join(filepath.Dir(ski), simArgs.Prefix()+"_log.txt")

		simName := simulationName(*name, simArgs.Prefix(), len(skiFiles) > 1)
		sim, err := s.dispatcher.AddToQueue(simArgs, simName, opts)
		if err != nil {
			return err
		}
		if *retrieveTypes != "" || *removeInput || *removeOutput || *removeDir {
			for _, ty := range strings.Split(*retrieveTypes, ",") {
				if ty = strings.TrimSpace(ty); ty != "" {
					sim.RetrieveTypes = append(sim.RetrieveTypes, ty)
				}
			}
			sim.RemoveRemoteInput = *removeInput
			sim.RemoveRemoteOutput = *removeOutput
			sim.RemoveRemoteSimulationDirectory = *removeDir
			if err := s.dispatcher.Store().Save(sim); err != nil {
				return err
			}
		}
		fmt.Printf("%d  %s\n", sim.ID, sim.Name)
	}

	if !s.host.Scheduler {
		sessionName, err := s.dispatcher.StartQueue(*screenName, "", *screenOutput)
		if err != nil {
			return err
		}
		fmt.Printf("Started in screen session %s\n", sessionName)
	}
	return nil
}

func showStatus(arg0 string, args []string) error {
	fs := flag.NewFlagSet(arg0+" status", flag.ExitOnError)
	var common commonArgs
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := connect(&common)
	if err != nil {
		return err
	}
	defer s.close()

	entries, err := s.dispatcher.Status()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%4d  %-24s %s\n", e.Simulation.ID, e.Simulation.Name, e.Status)
	}
	return nil
}

func retrieveSimulations(arg0 string, args []string) error {
	fs := flag.NewFlagSet(arg0+" retrieve", flag.ExitOnError)
	var common commonArgs
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := connect(&common)
	if err != nil {
		return err
	}
	defer s.close()

	retrieved, err := s.dispatcher.Retrieve()
	for _, sim := range retrieved {
		fmt.Printf("%4d  %-24s -> %s\n", sim.ID, sim.Name, sim.LocalOutputPath)
	}
	if err != nil {
		return fmt.Errorf("Some simulations could not be retrieved:\n%s", indent(err.Error()))
	}
	return nil
}

// The label for one staged simulation.  With several ski files a given
// label applies to all of them and gets a per-file suffix so the records
// stay distinguishable.

func simulationName(label, prefix string, multiple bool) string {
	switch {
	case label == "":
		return prefix
	case multiple:
		return label + "_" + prefix
	default:
		return label
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
