// Data persistence for simulation records.
//
// The records are represented on disk as one JSON file per simulation so
// that partial corruption never takes out more than one simulation, and so
// that other tooling can inspect and remove individual records.  No
// concurrent-writer protection is attempted; a store is owned by a single
// process at a time.

package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

const fileSuffix = ".sim"

type Store struct {
	dir string
}

// Open (creating if necessary) the bookkeeping directory for one host,
// <runDir>/<hostID>.

func NewStore(runDir, hostID string) (*Store, error) {
	dir := path.Join(runDir, hostID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (st *Store) Directory() string {
	return st.dir
}

// Persist the record under its id.  The record remembers where it was
// written so that a later Save goes to the same file.

func (st *Store) Save(sim *Simulation) error {
	data, err := json.MarshalIndent(sim, "", "  ")
	if err != nil {
		return err
	}
	fn := path.Join(st.dir, strconv.Itoa(sim.ID)+fileSuffix)
	if err := os.WriteFile(fn, data, 0644); err != nil {
		return err
	}
	sim.path = fn
	return nil
}

func (st *Store) Load(filename string) (*Simulation, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var sim Simulation
	if err := json.Unmarshal(data, &sim); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	sim.path = filename
	return &sim, nil
}

// The paths of all record files in the store, in ascending id order.
// Hidden files and files without the record suffix are ignored.

func (st *Store) Paths() ([]string, error) {
	ids, err := st.IDsInUse()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = path.Join(st.dir, strconv.Itoa(id)+fileSuffix)
	}
	return paths, nil
}

// The simulation ids currently in use, sorted ascending.

func (st *Store) IDsInUse() ([]int, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Allocate an id for a new simulation.

func (st *Store) NewID() (int, error) {
	ids, err := st.IDsInUse()
	if err != nil {
		return 0, err
	}
	return NextID(ids), nil
}

// Allocate ids for `count` new simulations.

func (st *Store) NewIDs(count int) ([]int, error) {
	ids, err := st.IDsInUse()
	if err != nil {
		return nil, err
	}
	return NextIDs(ids, count), nil
}

// The lowest nonnegative integer not in `used`.  Small dense ids are part of
// the observable contract: other tooling relies on record file names staying
// compact, so gaps are filled before the sequence is extended.

func NextID(used []int) int {
	return NextIDs(used, 1)[0]
}

// The `count` lowest nonnegative integers not in `used`, ascending: gaps
// below the current maximum first, then consecutive integers above it.

func NextIDs(used []int, count int) []int {
	inUse := make(map[int]bool, len(used))
	for _, id := range used {
		inUse[id] = true
	}
	ids := make([]int, 0, count)
	for candidate := 0; len(ids) < count; candidate++ {
		if !inUse[candidate] {
			ids = append(ids, candidate)
		}
	}
	return ids
}
