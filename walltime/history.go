// Historical timing data for walltime estimation.
//
// Measurements from earlier runs are kept in a small local SQLite database,
// one per host bookkeeping directory.  The estimator queries it in order of
// decreasing specificity; the schema deliberately stores the system name and
// parallelization mode as plain text so that lookups degrade gracefully.

package walltime

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

type Measurement struct {
	// Identifier of the remote system the run executed on.
	System string

	// Parallelization mode: "mpi", "threads" or "hybrid".
	Mode string

	// Total processor count of the run.
	Processors int

	// Seconds spent in the serial, parallel and overhead parts, and in
	// total.
	SerialSec   float64
	ParallelSec float64
	OverheadSec float64
	TotalSec    float64

	RecordedAt time.Time
}

type History struct {
	db *sql.DB
}

func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS runtimes (
  system      TEXT NOT NULL,
  mode        TEXT NOT NULL,
  processors  INTEGER NOT NULL,
  serial_sec   REAL,
  parallel_sec REAL,
  overhead_sec REAL,
  total_sec    REAL NOT NULL,
  recorded_at  TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) Add(m Measurement) error {
	recorded := m.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}
	_, err := h.db.Exec(
		`INSERT INTO runtimes (system, mode, processors, serial_sec, parallel_sec, overhead_sec, total_sec, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.System, m.Mode, m.Processors, m.SerialSec, m.ParallelSec, m.OverheadSec, m.TotalSec,
		recorded.Format(time.RFC3339))
	return err
}

// The most recent total runtime for an exact (system, mode, processors)
// match.  The second result is false when there is no data.

func (h *History) TotalFor(system, mode string, processors int) (float64, bool, error) {
	return h.queryTotal(
		`SELECT total_sec FROM runtimes WHERE system = ? AND mode = ? AND processors = ?
         ORDER BY recorded_at DESC LIMIT 1`,
		system, mode, processors)
}

// As TotalFor but matching any parallelization mode.

func (h *History) TotalForSystem(system string, processors int) (float64, bool, error) {
	return h.queryTotal(
		`SELECT total_sec FROM runtimes WHERE system = ? AND processors = ?
         ORDER BY recorded_at DESC LIMIT 1`,
		system, processors)
}

// As TotalFor but matching any system and any mode.

func (h *History) TotalForProcessors(processors int) (float64, bool, error) {
	return h.queryTotal(
		`SELECT total_sec FROM runtimes WHERE processors = ?
         ORDER BY recorded_at DESC LIMIT 1`,
		processors)
}

func (h *History) queryTotal(query string, args ...any) (float64, bool, error) {
	var total float64
	err := h.db.QueryRow(query, args...).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return total, true, nil
}
