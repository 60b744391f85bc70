package logstatus

import (
	"errors"
	"testing"
)

func TestTerminalStatus(t *testing.T) {
	finished := []string{" Finished simulation galaxy using 4 processes"}
	// Completion wins regardless of session liveness.
	if st := TerminalStatus(finished, true, "galaxy"); st != Finished {
		t.Fatalf("Finished #1: %s", st)
	}
	if st := TerminalStatus(finished, false, "galaxy"); st != Finished {
		t.Fatalf("Finished #2: %s", st)
	}
	// Another simulation's completion line does not count.
	if st := TerminalStatus(finished, false, "other"); st != Aborted {
		t.Fatalf("Wrong prefix: %s", st)
	}

	crashed := []string{" *** Error: the grid could not be constructed"}
	if st := TerminalStatus(crashed, true, "galaxy"); st != Crashed {
		t.Fatalf("Crashed: %s", st)
	}

	partial := []string{"Starting the stellar emission phase"}
	if st := TerminalStatus(partial, true, "galaxy"); st != Running {
		t.Fatalf("Partial alive: %s", st)
	}
	if st := TerminalStatus(partial, false, "galaxy"); st != Aborted {
		t.Fatalf("Partial dead: %s", st)
	}

	// A trailing memory footer does not hide the real last line.
	withFooter := []string{
		" Finished simulation galaxy",
		" Available memory: 12.1 GB",
	}
	if st := TerminalStatus(withFooter, false, "galaxy"); st != Finished {
		t.Fatalf("Memory footer: %s", st)
	}
}

func TestNoLogStatus(t *testing.T) {
	if st := NoLogStatus(true); st != Queued {
		t.Fatalf("Alive without log: %s", st)
	}
	if st := NoLogStatus(false); st != Cancelled {
		t.Fatalf("Dead without log: %s", st)
	}
}

func TestJobTerminalStatus(t *testing.T) {
	if st := JobTerminalStatus([]string{" Finished simulation galaxy"}, "galaxy"); st != Finished {
		t.Fatalf("Finished: %s", st)
	}
	if st := JobTerminalStatus([]string{" *** Error: out of memory"}, "galaxy"); st != Crashed {
		t.Fatalf("Crashed: %s", st)
	}
	if st := JobTerminalStatus([]string{"Starting setup"}, "galaxy"); st != Aborted {
		t.Fatalf("Aborted: %s", st)
	}
}

func TestRunningStatus(t *testing.T) {
	// No phase marker at all.
	st, err := RunningStatus([]string{"Welcome to the simulation"})
	if err != nil {
		t.Fatal(err)
	}
	if st != Running {
		t.Fatalf("No phase: %s", st)
	}

	// Last phase and last progress figure win.
	st, err = RunningStatus([]string{
		"Starting setup",
		"Starting the stellar emission phase",
		"Launched stellar emission photon packages: 10%",
		"Launched stellar emission photon packages: 55.5%",
	})
	if err != nil {
		t.Fatal(err)
	}
	if st != Status("running: stellar emission 55.5%") {
		t.Fatalf("Stellar emission: %s", st)
	}
	if !st.IsRunning() {
		t.Fatal("Detailed running form should count as running")
	}

	// Self-absorption carries a stage and a cycle number.
	st, err = RunningStatus([]string{
		"Starting the second-stage dust self-absorption cycle",
		"Launched second-stage dust self-absorption cycle 3 photon packages: 20%",
	})
	if err != nil {
		t.Fatal(err)
	}
	if st != Status("running: self-absorption [stage 2, cycle 3] 20%") {
		t.Fatalf("Self-absorption: %s", st)
	}

	// Plain phases report without a percentage.
	st, err = RunningStatus([]string{"Starting writing results"})
	if err != nil {
		t.Fatal(err)
	}
	if st != Status("running: writing") {
		t.Fatalf("Writing: %s", st)
	}

	// Same input, same answer.
	lines := []string{
		"Starting the dust emission phase",
		"Launched dust emission photon packages: 80%",
	}
	st1, _ := RunningStatus(lines)
	st2, _ := RunningStatus(lines)
	if st1 != st2 {
		t.Fatalf("Not deterministic: %s vs %s", st1, st2)
	}
}

func TestRunningStatusMalformed(t *testing.T) {
	_, err := RunningStatus([]string{
		"Starting the stellar emission phase",
		"Launched stellar emission photon packages: garbage%",
	})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected a parse error: %v", err)
	}

	_, err = RunningStatus([]string{
		"Launched first-stage dust self-absorption cycle photon packages: 10%",
	})
	if !errors.As(err, &perr) {
		t.Fatalf("Expected a parse error for the missing cycle number: %v", err)
	}
}
