// Retrieval of finished simulation output.
//
// A simulation either has its whole remote output directory copied back, or
// only the files whose category appears in the record's retrieve list.
// Classification is a data-driven lookup over filename patterns rather than
// a conditional chain, so the category set can be extended and tested in one
// place.  Remote cleanup strictly follows a successful download.

package fetch

import (
	"fmt"
	"path"
	"strings"

	"skirtrun/record"
	"skirtrun/remote"
	"skirtrun/status"
)

// One output-file category.  A file belongs to the category when its name
// ends with Suffix and, when Contains is nonempty, also contains it.  The
// patterns are checked in order and are mutually exclusive for the file
// names the simulation actually produces.

type Category struct {
	Name     string
	Suffix   string
	Contains string
}

var Categories = []Category{
	{"isrf", "_ds_isrf.dat", ""},
	{"temp", ".fits", "_ds_temp"},
	{"sed", "_sed.dat", ""},
	{"image", "_total.fits", ""},
	{"celltemp", "_ds_celltemps.dat", ""},
	{"log", ".txt", "_log"},
	{"wavelengths", "_wavelengths.dat", ""},
	{"grid", ".dat", "_ds_grid"},
	{"grho", ".fits", "_ds_grho"},
	{"trho", ".fits", "_ds_trho"},
	{"convergence", "_ds_convergence.dat", ""},
}

// Classify an output file name.  The second result is false for files that
// belong to no category; those are never part of a selective download.

func Classify(filename string) (string, bool) {
	for _, c := range Categories {
		if !strings.HasSuffix(filename, c.Suffix) {
			continue
		}
		if c.Contains != "" && !strings.Contains(filename, c.Contains) {
			continue
		}
		return c.Name, true
	}
	return "", false
}

// Copy a finished simulation's results to its local output path and perform
// the cleanup its record asks for.  The caller is responsible for marking
// the record retrieved and persisting it afterwards.

func Retrieve(conn remote.Connection, sim *record.Simulation, log *status.Logger) error {
	if len(sim.RetrieveTypes) == 0 {
		log.Debugf("retrieving complete remote output directory of %s", sim.Name)
		if err := conn.Download([]string{sim.RemoteOutputPath}, sim.LocalOutputPath); err != nil {
			return err
		}
	} else {
		files, err := conn.ListFiles(sim.RemoteOutputPath)
		if err != nil {
			return err
		}
		wanted := make(map[string]bool, len(sim.RetrieveTypes))
		for _, t := range sim.RetrieveTypes {
			wanted[t] = true
		}
		copyPaths := make([]string, 0, len(files))
		for _, name := range files {
			if category, ok := Classify(name); ok && wanted[category] {
				copyPaths = append(copyPaths, path.Join(sim.RemoteOutputPath, name))
			}
		}
		if len(copyPaths) == 0 {
			log.Warningf("no output files of the requested types for %s", sim.Name)
		} else {
			log.Debugf("retrieving %d file(s) for %s", len(copyPaths), sim.Name)
			if err := conn.Download(copyPaths, sim.LocalOutputPath); err != nil {
				return err
			}
		}
	}

	return cleanup(conn, sim)
}

// Remove remote directories per the record's policy flags.  The simulation
// directory itself goes only when both the input and the output directories
// were asked for and actually removed.

func cleanup(conn remote.Connection, sim *record.Simulation) error {
	inputGone := false
	if sim.RemoveRemoteInput {
		// A simulation without input has nothing to remove.
		if sim.HasInput() {
			if err := conn.RemoveDirectory(sim.RemoteInputPath); err != nil {
				return fmt.Errorf("Removing remote input of %s: %w", sim.Name, err)
			}
		}
		inputGone = true
	}
	outputGone := false
	if sim.RemoveRemoteOutput {
		if err := conn.RemoveDirectory(sim.RemoteOutputPath); err != nil {
			return fmt.Errorf("Removing remote output of %s: %w", sim.Name, err)
		}
		outputGone = true
	}
	if sim.RemoveRemoteSimulationDirectory && inputGone && outputGone {
		if err := conn.RemoveDirectory(sim.RemoteSimulationPath); err != nil {
			return fmt.Errorf("Removing remote simulation directory of %s: %w", sim.Name, err)
		}
	}
	return nil
}
