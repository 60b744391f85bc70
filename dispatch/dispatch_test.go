package dispatch

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"skirtrun/host"
	"skirtrun/logstatus"
	"skirtrun/record"
	"skirtrun/skirt"
	"skirtrun/status"
)

// A scripted remote host.  Log files live in `files`; screen sessions are
// created by the screen command like on the real thing.

type fakeRemote struct {
	files     map[string][]string
	screens   map[string]bool
	qstat     []string
	qsubReply string
	uploads   []string
	downloads [][]string
	removed   []string
	commands  []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		files:   make(map[string][]string),
		screens: make(map[string]bool),
	}
}

func (c *fakeRemote) Connected() bool { return true }

func (c *fakeRemote) Execute(command string) ([]string, error) {
	c.commands = append(c.commands, command)
	switch {
	case command == "which skirt":
		return []string{"/apps/skirt"}, nil
	case command == "qstat":
		return c.qstat, nil
	case strings.HasPrefix(command, "qsub "):
		return []string{c.qsubReply}, nil
	case strings.HasPrefix(command, "mkdir -p "), strings.HasPrefix(command, "chmod +x "),
		strings.HasPrefix(command, "rm "):
		return nil, nil
	case strings.HasPrefix(command, "screen -d -m -S "):
		name := unquote(strings.Fields(command)[4])
		c.screens[name] = true
		return nil, nil
	case strings.HasPrefix(command, "tail -n 2 "):
		lines, found := c.files[unquote(strings.TrimPrefix(command, "tail -n 2 "))]
		if !found {
			return nil, fmt.Errorf("no such file")
		}
		if len(lines) > 2 {
			lines = lines[len(lines)-2:]
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("unexpected command %q", command)
	}
}

func (c *fakeRemote) Upload(localPath, remoteDir string) error {
	c.uploads = append(c.uploads, localPath+" -> "+remoteDir)
	return nil
}

func (c *fakeRemote) Download(remotePaths []string, localDir string) error {
	c.downloads = append(c.downloads, remotePaths)
	return nil
}

func (c *fakeRemote) IsFile(path string) (bool, error) {
	_, found := c.files[path]
	return found, nil
}

func (c *fakeRemote) IsActiveScreen(name string) (bool, error) {
	return c.screens[name], nil
}

func (c *fakeRemote) ExpandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		return "/home/user/" + path[2:], nil
	}
	return path, nil
}

func (c *fakeRemote) ReadTextFile(path string) ([]string, error) {
	lines, found := c.files[path]
	if !found {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return lines, nil
}

func (c *fakeRemote) ListFiles(dir string) ([]string, error) {
	return nil, nil
}

func (c *fakeRemote) RemoveDirectory(path string) error {
	c.removed = append(c.removed, path)
	return nil
}

func unquote(s string) string {
	return strings.Trim(s, "'")
}

func quietLogger() *status.Logger {
	return status.NewLogger(io.Discard, status.LevelError)
}

func newScreenDispatcher(t *testing.T, conn *fakeRemote) *Dispatcher {
	t.Helper()
	h := host.Host{
		ID:         "ws",
		Addr:       "me@workstation",
		RunDir:     "~/run",
		MpiCommand: "mpirun",
	}
	store, err := record.NewStore(t.TempDir(), h.ID)
	if err != nil {
		t.Fatal(err)
	}
	return New(conn, h, store, nil, quietLogger())
}

func TestScreenLifecycle(t *testing.T) {
	conn := newFakeRemote()
	d := newScreenDispatcher(t, conn)
	local := t.TempDir()

	var sims []*record.Simulation
	for _, name := range []string{"alpha", "beta", "gamma"} {
		args := &skirt.Arguments{
			SkiPattern: filepath.Join(local, name+".ski"),
			OutputPath: local,
			Parallel:   skirt.Parallel{Processes: 1, Threads: 4},
		}
		sim, err := d.AddToQueue(args, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		sims = append(sims, sim)
	}
	if sims[0].ID != 0 || sims[1].ID != 1 || sims[2].ID != 2 {
		t.Fatalf("Ids: %d %d %d", sims[0].ID, sims[1].ID, sims[2].ID)
	}

	// Everything is queued before the session starts.
	entries, err := d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("Entries: %v", entries)
	}
	for _, e := range entries {
		if e.Status != logstatus.Queued {
			t.Fatalf("Pre-start status of %d: %s", e.Simulation.ID, e.Status)
		}
	}

	session, err := d.StartQueue("mysession", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if session != "mysession" {
		t.Fatalf("Session name: %s", session)
	}
	if !conn.screens["mysession"] {
		t.Fatal("Screen session was not created")
	}
	// The uploaded script copy is deleted once the session is running.
	removed := false
	for _, cmd := range conn.commands {
		if strings.HasPrefix(cmd, "rm ") && strings.Contains(cmd, "mysession.sh") {
			removed = true
		}
	}
	if !removed {
		t.Fatalf("Remote script was not removed:\n%s", strings.Join(conn.commands, "\n"))
	}

	// The queue is consumed; starting again is a no-op.
	if s, err := d.StartQueue("", "", ""); err != nil || s != "" {
		t.Fatalf("Second start: %q %v", s, err)
	}

	// The first simulation finishes, the others are still running.
	conn.files[sims[0].RemoteLogPath()] = []string{
		"Starting setup",
		" Finished simulation alpha",
	}
	conn.files[sims[1].RemoteLogPath()] = []string{
		"Starting the stellar emission phase",
		"Launched stellar emission photon packages: 40%",
	}

	entries, err = d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != logstatus.Finished {
		t.Fatalf("Finished sim: %s", entries[0].Status)
	}
	if entries[1].Status != logstatus.Status("running: stellar emission 40%") {
		t.Fatalf("Running sim: %s", entries[1].Status)
	}
	// No log yet, but the session is alive.
	if entries[2].Status != logstatus.Queued {
		t.Fatalf("Waiting sim: %s", entries[2].Status)
	}

	retrieved, err := d.Retrieve()
	if err != nil {
		t.Fatal(err)
	}
	if len(retrieved) != 1 || retrieved[0].ID != 0 {
		t.Fatalf("Retrieved: %v", retrieved)
	}
	if !retrieved[0].Retrieved {
		t.Fatal("Retrieved flag not set")
	}

	// A second retrieval pass finds nothing new.
	retrieved, err = d.Retrieve()
	if err != nil {
		t.Fatal(err)
	}
	if len(retrieved) != 0 {
		t.Fatalf("Second retrieval: %v", retrieved)
	}
	entries, err = d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != logstatus.Retrieved {
		t.Fatalf("Status after retrieval: %s", entries[0].Status)
	}
}

func TestRemoteDirectoryNamedAfterSkiFile(t *testing.T) {
	conn := newFakeRemote()
	d := newScreenDispatcher(t, conn)
	local := t.TempDir()

	args := &skirt.Arguments{SkiPattern: filepath.Join(local, "galaxy.ski"), OutputPath: local}
	sim, err := d.AddToQueue(args, "tuesday night batch", nil)
	if err != nil {
		t.Fatal(err)
	}
	if sim.Name != "tuesday night batch" {
		t.Fatalf("Label: %s", sim.Name)
	}
	// The remote slug follows the ski file, not the label.
	base := filepath.Base(sim.RemoteSimulationPath)
	if !strings.HasPrefix(base, "galaxy__") {
		t.Fatalf("Remote directory slug: %s", base)
	}
	if strings.Contains(sim.RemoteSimulationPath, "tuesday") {
		t.Fatalf("Label leaked into the remote path: %s", sim.RemoteSimulationPath)
	}
}

func TestRunRefusesNonEmptyQueue(t *testing.T) {
	conn := newFakeRemote()
	d := newScreenDispatcher(t, conn)
	local := t.TempDir()

	args := &skirt.Arguments{SkiPattern: filepath.Join(local, "alpha.ski"), OutputPath: local}
	if _, err := d.AddToQueue(args, "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Run(args.Copy(), "", nil); err == nil {
		t.Fatal("Run should refuse while the queue is non-empty")
	}
	d.ClearQueue()
	if _, err := d.Run(args.Copy(), "", nil); err != nil {
		t.Fatal(err)
	}
}

func TestScheduledLifecycle(t *testing.T) {
	conn := newFakeRemote()
	conn.qsubReply = "12345.master.cluster"
	h := host.Host{
		ID:           "cluster",
		Addr:         "me@cluster",
		Scheduler:    true,
		RunDir:       "~/run",
		SkirtPath:    "/apps/skirt",
		MpiCommand:   "mympirun",
		CoresPerNode: 16,
		Queues:       []string{"long"},
	}
	store, err := record.NewStore(t.TempDir(), h.ID)
	if err != nil {
		t.Fatal(err)
	}
	d := New(conn, h, store, nil, quietLogger())

	local := t.TempDir()
	args := &skirt.Arguments{
		SkiPattern: filepath.Join(local, "galaxy.ski"),
		OutputPath: local,
		Parallel:   skirt.Parallel{Processes: 4, Threads: 1},
	}
	sim, err := d.AddToQueue(args, "galaxy", &SchedulingOptions{WalltimeSec: 3600, FullNode: true})
	if err != nil {
		t.Fatal(err)
	}
	// The scheduler's job id names the simulation.
	if sim.ID != 12345 {
		t.Fatalf("Job id: %d", sim.ID)
	}

	// Queued, then running per the queue listing.
	conn.qstat = []string{
		"Job ID    Name    User  Time Use S Queue",
		"--------- ------- ----- -------- - -----",
		"12345.master  galaxy  me  00:00:00  Q  long",
	}
	entries, err := d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != logstatus.Queued {
		t.Fatalf("Queued job: %s", entries[0].Status)
	}

	conn.qstat[2] = "12345.master  galaxy  me  00:10:00  R  long"
	entries, err = d.Status()
	if err != nil {
		t.Fatal(err)
	}
	// Running without a log file yet.
	if entries[0].Status != logstatus.Running {
		t.Fatalf("Running job: %s", entries[0].Status)
	}

	// Gone from the listing with a complete log: finished.
	conn.qstat = nil
	conn.files[sim.RemoteLogPath()] = []string{" Finished simulation galaxy"}
	entries, err = d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != logstatus.Finished {
		t.Fatalf("Finished job: %s", entries[0].Status)
	}

	// Gone from the listing without any log: never ran.
	delete(conn.files, sim.RemoteLogPath())
	entries, err = d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != logstatus.Cancelled {
		t.Fatalf("Cancelled job: %s", entries[0].Status)
	}
}

func TestScheduledIgnoresOtherQueues(t *testing.T) {
	conn := newFakeRemote()
	conn.qsubReply = "7.master"
	h := host.Host{
		ID:           "cluster",
		Addr:         "me@cluster",
		Scheduler:    true,
		RunDir:       "~/run",
		SkirtPath:    "/apps/skirt",
		MpiCommand:   "mympirun",
		CoresPerNode: 16,
		Queues:       []string{"long"},
	}
	store, err := record.NewStore(t.TempDir(), h.ID)
	if err != nil {
		t.Fatal(err)
	}
	d := New(conn, h, store, nil, quietLogger())

	local := t.TempDir()
	args := &skirt.Arguments{SkiPattern: filepath.Join(local, "g.ski"), OutputPath: local}
	sim, err := d.AddToQueue(args, "g", &SchedulingOptions{WalltimeSec: 60})
	if err != nil {
		t.Fatal(err)
	}
	if sim.ID != 7 {
		t.Fatalf("Job id: %d", sim.ID)
	}

	// Another user's job in a different queue with the same numeric id
	// must not be mistaken for ours.
	conn.qstat = []string{"7.master  other  them  00:00:00  R  debug"}
	entries, err := d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Status != logstatus.Cancelled {
		t.Fatalf("Foreign queue: %s", entries[0].Status)
	}
}
