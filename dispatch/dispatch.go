// Dispatching simulations to a remote host.
//
// The Dispatcher is the top-level object of the package: it owns the
// connection to one host, a record store for that host's simulations, and a
// submission queue.  Two execution strategies exist, chosen once per host:
// scheduler hosts get one batch job per simulation, plain hosts get a
// detached screen session that works through a generated shell script.  The
// strategy differences are confined to the executionMode implementations;
// everything above them is shared.

package dispatch

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"skirtrun/fetch"
	"skirtrun/host"
	"skirtrun/logstatus"
	"skirtrun/record"
	"skirtrun/remote"
	"skirtrun/skirt"
	"skirtrun/status"
	"skirtrun/walltime"
)

// One simulation with its current status, as reported by Status.

type Entry struct {
	Simulation *record.Simulation
	Status     logstatus.Status
}

// The submission strategy for one host.  submit fills in the simulation's
// id and whatever else the strategy needs; statuses resolves the current
// status of every known simulation.

type executionMode interface {
	submit(sim *record.Simulation, args *skirt.Arguments, opts *SchedulingOptions) error
	statuses(sims []*record.Simulation) ([]Entry, error)
}

type queuedItem struct {
	sim  *record.Simulation
	args *skirt.Arguments
}

type Dispatcher struct {
	conn  remote.Connection
	host  host.Host
	store *record.Store
	est   *walltime.Estimator
	log   *status.Logger
	mode  executionMode

	// Simulations accepted but not yet started; always empty on
	// scheduler hosts.
	queue []queuedItem

	// Resolved path of the remote simulation executable, cached after the
	// first lookup.
	skirtPath string
}

func New(conn remote.Connection, h host.Host, store *record.Store, est *walltime.Estimator, log *status.Logger) *Dispatcher {
	if log == nil {
		log = status.Default()
	}
	d := &Dispatcher{
		conn:  conn,
		host:  h,
		store: store,
		est:   est,
		log:   log,
	}
	if h.Scheduler {
		d.mode = &scheduledMode{d}
	} else {
		d.mode = &screenMode{d}
	}
	return d
}

// The store the dispatcher persists simulation records in.  Callers use it
// to adjust and re-save a record after staging, eg the retrieval policy.

func (d *Dispatcher) Store() *record.Store {
	return d.store
}

// Stage a simulation on the remote host and register it.  The ski file and
// the input directory (if any) are uploaded into a fresh remote working
// directory; on scheduler hosts the job is submitted immediately, otherwise
// it waits in the queue until StartQueue.  A record for the simulation is
// persisted and returned.

func (d *Dispatcher) AddToQueue(args *skirt.Arguments, name string, opts *SchedulingOptions) (*record.Simulation, error) {
	if !d.conn.Connected() {
		return nil, fmt.Errorf("Not connected to %s", d.host.ID)
	}
	if name == "" {
		name = args.Prefix()
	}
	if err := d.resolveSkirtPath(); err != nil {
		return nil, err
	}

	local := args.Copy()
	remoteArgs, sim, err := d.prepare(local, name)
	if err != nil {
		return nil, err
	}

	if err := d.mode.submit(sim, remoteArgs, opts); err != nil {
		return nil, err
	}
	sim.SubmittedAt = time.Now()
	if err := d.store.Save(sim); err != nil {
		return nil, err
	}
	d.log.Infof("Added simulation %d (%s) on %s", sim.ID, sim.Name, d.host.ID)
	return sim, nil
}

// Start every queued simulation in a single detached screen session and
// return the session name.  No-op with a warning on scheduler hosts, where
// submission already happened in AddToQueue.  When screenName is empty a
// timestamped name is generated; when screenOutputPath is non-empty, screen
// logs the session there.

func (d *Dispatcher) StartQueue(screenName, localScriptPath, screenOutputPath string) (string, error) {
	if d.host.Scheduler {
		d.log.Warningf("Simulations on %s are started by the scheduling system, not from a queue", d.host.ID)
		return "", nil
	}
	if len(d.queue) == 0 {
		d.log.Warningf("The simulation queue for %s is empty", d.host.ID)
		return "", nil
	}
	if !d.conn.Connected() {
		return "", fmt.Errorf("Not connected to %s", d.host.ID)
	}
	if screenName == "" {
		screenName = uniqueName("skirtrun")
	}

	script := d.queueScript(screenName)
	temporary := localScriptPath == ""
	if temporary {
		localScriptPath = filepath.Join(os.TempDir(), screenName+".sh")
	}
	if err := os.WriteFile(localScriptPath, []byte(script), 0755); err != nil {
		return "", err
	}

	runDir, err := d.conn.ExpandUserPath(d.host.RunDir)
	if err != nil {
		return "", err
	}
	if err := d.conn.Upload(localScriptPath, runDir); err != nil {
		return "", err
	}
	remoteScript := path.Join(runDir, filepath.Base(localScriptPath))
	if _, err := d.conn.Execute("chmod +x " + remote.Quote(remoteScript)); err != nil {
		return "", err
	}

	command := "screen -d -m -S " + remote.Quote(screenName)
	if screenOutputPath != "" {
		command += " -L -Logfile " + remote.Quote(screenOutputPath)
	}
	command += " " + remote.Quote(remoteScript)
	if _, err := d.conn.Execute(command); err != nil {
		return "", err
	}
	if _, err := d.conn.Execute("rm " + remote.Quote(remoteScript)); err != nil {
		return "", err
	}
	d.log.Infof("Started %d simulation(s) in screen session %s on %s", len(d.queue), screenName, d.host.ID)

	for _, item := range d.queue {
		item.sim.ScreenName = screenName
		if err := d.store.Save(item.sim); err != nil {
			return "", err
		}
	}
	d.queue = nil

	if temporary {
		os.Remove(localScriptPath)
	}
	return screenName, nil
}

// Stage and immediately start a single simulation.  Refuses to run while
// other simulations are waiting in the queue, since they would be started
// along with it.

func (d *Dispatcher) Run(args *skirt.Arguments, name string, opts *SchedulingOptions) (*record.Simulation, error) {
	if len(d.queue) > 0 {
		return nil, errors.New("Cannot run a single simulation while the queue is non-empty; use StartQueue")
	}
	sim, err := d.AddToQueue(args, name, opts)
	if err != nil {
		return nil, err
	}
	if !d.host.Scheduler {
		if _, err := d.StartQueue("", "", ""); err != nil {
			return nil, err
		}
	}
	return sim, nil
}

// Drop all queued simulations without starting them.  Their records and
// remote working directories stay in place.

func (d *Dispatcher) ClearQueue() {
	if len(d.queue) > 0 {
		d.log.Warningf("Dropping %d queued simulation(s) for %s", len(d.queue), d.host.ID)
	}
	d.queue = nil
}

// The current status of every simulation registered for the host, in
// ascending id order.

func (d *Dispatcher) Status() ([]Entry, error) {
	if !d.conn.Connected() {
		return nil, fmt.Errorf("Not connected to %s", d.host.ID)
	}
	sims, err := d.simulations()
	if err != nil {
		return nil, err
	}
	return d.mode.statuses(sims)
}

// Download the output of every finished simulation, mark it retrieved, and
// return the simulations retrieved in this call.  A failure for one
// simulation does not block the others; the joined errors are returned
// alongside whatever was retrieved.

func (d *Dispatcher) Retrieve() ([]*record.Simulation, error) {
	entries, err := d.Status()
	if err != nil {
		return nil, err
	}
	var retrieved []*record.Simulation
	var errs []error
	for _, e := range entries {
		if e.Status != logstatus.Finished {
			continue
		}
		sim := e.Simulation
		if err := fetch.Retrieve(d.conn, sim, d.log); err != nil {
			d.log.Errorf("Retrieval of simulation %d (%s) failed: %v", sim.ID, sim.Name, err)
			errs = append(errs, fmt.Errorf("simulation %d: %w", sim.ID, err))
			continue
		}
		sim.Retrieved = true
		if err := d.store.Save(sim); err != nil {
			errs = append(errs, fmt.Errorf("simulation %d: %w", sim.ID, err))
			continue
		}
		d.recordTimings(sim)
		retrieved = append(retrieved, sim)
	}
	return retrieved, errors.Join(errs...)
}

// Feed the timing database from the retrieved log file.  Estimation only
// degrades without this, so failures are logged and swallowed.

func (d *Dispatcher) recordTimings(sim *record.Simulation) {
	if d.est == nil || d.est.History == nil {
		return
	}
	logPath := filepath.Join(sim.LocalOutputPath, sim.Prefix()+"_log.txt")
	m, ok, err := walltime.ParseLogTimings(logPath)
	if err != nil || !ok {
		if err != nil {
			d.log.Warningf("Could not extract timings from %s: %v", logPath, err)
		}
		return
	}
	m.System = d.host.ID
	m.RecordedAt = time.Now()
	if err := d.est.History.Add(m); err != nil {
		d.log.Warningf("Could not record timings for simulation %d: %v", sim.ID, err)
	}
}

// Load every simulation record for the host.

func (d *Dispatcher) simulations() ([]*record.Simulation, error) {
	paths, err := d.store.Paths()
	if err != nil {
		return nil, err
	}
	sims := make([]*record.Simulation, 0, len(paths))
	for _, p := range paths {
		sim, err := d.store.Load(p)
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, nil
}

// Create the remote working directory for a simulation, upload its inputs,
// and build the argument bundle with remote paths along with the record
// describing the staging.

func (d *Dispatcher) prepare(args *skirt.Arguments, name string) (*skirt.Arguments, *record.Simulation, error) {
	runDir, err := d.conn.ExpandUserPath(d.host.RunDir)
	if err != nil {
		return nil, nil, err
	}
	// The directory slug comes from the ski file, not the human label, so
	// remote layouts stay recognizable regardless of how runs are named.
	simName := uniqueName(args.Prefix())
	simPath := path.Join(runDir, simName)
	if _, err := d.conn.Execute("mkdir -p " + remote.Quote(simPath)); err != nil {
		return nil, nil, err
	}

	outputPath := path.Join(simPath, "out")
	if d.host.OutputPath != "" {
		base, err := d.conn.ExpandUserPath(d.host.OutputPath)
		if err != nil {
			return nil, nil, err
		}
		outputPath = path.Join(base, simName)
	}
	if _, err := d.conn.Execute("mkdir -p " + remote.Quote(outputPath)); err != nil {
		return nil, nil, err
	}

	if err := d.conn.Upload(args.SkiPattern, simPath); err != nil {
		return nil, nil, err
	}
	remoteSki := path.Join(simPath, filepath.Base(args.SkiPattern))

	remoteInput := ""
	if args.InputPath != "" {
		if err := d.conn.Upload(args.InputPath, simPath); err != nil {
			return nil, nil, err
		}
		remoteInput = path.Join(simPath, filepath.Base(args.InputPath))
	}

	remoteArgs := args.Copy()
	remoteArgs.SkiPattern = remoteSki
	remoteArgs.InputPath = remoteInput
	remoteArgs.OutputPath = outputPath

	sim := &record.Simulation{
		Name:                 name,
		LocalSkiPath:         args.SkiPattern,
		LocalInputPath:       args.InputPath,
		LocalOutputPath:      args.OutputPath,
		RemoteSimulationPath: simPath,
		RemoteInputPath:      remoteInput,
		RemoteOutputPath:     outputPath,
		RemoteSkiPath:        remoteSki,
	}
	return remoteArgs, sim, nil
}

// The shell script that works through the queue, one simulation at a time.

func (d *Dispatcher) queueScript(screenName string) string {
	lines := []string{
		"#!/bin/sh",
		"# Queue " + screenName + " for host " + d.host.ID,
	}
	for _, item := range d.queue {
		lines = append(lines, item.args.Command(d.skirtPath, d.host.MpiCommand, false))
	}
	return joinLines(lines)
}

// Resolve the remote path of the simulation executable, once.

func (d *Dispatcher) resolveSkirtPath() error {
	if d.skirtPath != "" {
		return nil
	}
	if d.host.SkirtPath != "" {
		p, err := d.conn.ExpandUserPath(d.host.SkirtPath)
		if err != nil {
			return err
		}
		d.skirtPath = p
		return nil
	}
	lines, err := d.conn.Execute("which skirt")
	if err != nil || len(lines) == 0 || lines[0] == "" {
		return errors.Join(fmt.Errorf("Cannot locate the skirt executable on %s", d.host.ID), err)
	}
	d.skirtPath = lines[0]
	return nil
}

func joinLines(lines []string) string {
	s := ""
	for _, l := range lines {
		s += l + "\n"
	}
	return s
}

// A name that is unique across invocations, millisecond-timestamped to
// match the resolution at which simulations can be created.

func uniqueName(base string) string {
	now := time.Now()
	return fmt.Sprintf("%s__%s-%03d", base, now.Format("2006-01-02--15-04-05"), now.Nanosecond()/1e6)
}
