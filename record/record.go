// The persisted descriptor of one dispatched simulation.
//
// One record is one JSON file, <id>.sim, in the per-host bookkeeping
// directory.  The dispatcher fills in identity and paths at submission time;
// the retrieval step flips Retrieved, which is monotonic: once set it is
// never re-derived from remote state.

package record

import (
	"path"
	"strings"
	"time"
)

type Simulation struct {
	// Locally unique per host; for scheduler hosts this is the scheduler's
	// job id.
	ID int `json:"id"`

	// Human label.
	Name string `json:"name"`

	// Detached session the simulation runs in; empty on scheduler hosts.
	ScreenName string `json:"screen_name,omitempty"`

	LocalSkiPath    string `json:"local_ski_path"`
	LocalInputPath  string `json:"local_input_path,omitempty"`
	LocalOutputPath string `json:"local_output_path,omitempty"`

	RemoteSimulationPath string `json:"remote_simulation_path"`
	RemoteInputPath      string `json:"remote_input_path,omitempty"`
	RemoteOutputPath     string `json:"remote_output_path"`
	RemoteSkiPath        string `json:"remote_ski_path"`

	// Categories of output files to retrieve; empty means everything.
	RetrieveTypes []string `json:"retrieve_types,omitempty"`

	RemoveRemoteInput               bool `json:"remove_remote_input,omitempty"`
	RemoveRemoteOutput              bool `json:"remove_remote_output,omitempty"`
	RemoveRemoteSimulationDirectory bool `json:"remove_remote_simulation_directory,omitempty"`

	Retrieved   bool      `json:"retrieved"`
	SubmittedAt time.Time `json:"submitted_at"`

	// Path of the record file itself, set when loaded or saved.
	path string
}

// The simulation prefix that names the output files (<prefix>_log.txt etc).

func (s *Simulation) Prefix() string {
	name := path.Base(s.RemoteSkiPath)
	if name == "." || name == "/" {
		name = path.Base(s.LocalSkiPath)
	}
	if i := strings.Index(name, ".ski"); i != -1 {
		name = name[:i]
	}
	return name
}

func (s *Simulation) HasInput() bool {
	return s.RemoteInputPath != ""
}

// Path of the remote log file written by the simulation.

func (s *Simulation) RemoteLogPath() string {
	return path.Join(s.RemoteOutputPath, s.Prefix()+"_log.txt")
}

// Path of the record file, empty for records never saved or loaded.

func (s *Simulation) FilePath() string {
	return s.path
}
