package skirt

import "testing"

func TestPrefix(t *testing.T) {
	a := &Arguments{SkiPattern: "/data/models/galaxy.ski"}
	if p := a.Prefix(); p != "galaxy" {
		t.Fatalf("Prefix: %s", p)
	}
	a = &Arguments{SkiPattern: "galaxy.ski"}
	if p := a.Prefix(); p != "galaxy" {
		t.Fatalf("Bare name: %s", p)
	}
}

func TestProcessors(t *testing.T) {
	if n := (Parallel{Processes: 4, Threads: 2}).Processors(); n != 8 {
		t.Fatalf("Hybrid: %d", n)
	}
	// Unset counts default to one.
	if n := (Parallel{}).Processors(); n != 1 {
		t.Fatalf("Zero value: %d", n)
	}
}

func TestCommand(t *testing.T) {
	a := &Arguments{
		SkiPattern: "galaxy.ski",
		InputPath:  "/run/in",
		OutputPath: "/run/out",
		Parallel:   Parallel{Processes: 4, Threads: 2},
	}
	got := a.Command("/apps/skirt", "mpirun", false)
	want := "mpirun -np 4 /apps/skirt -t 2 -i /run/in -o /run/out galaxy.ski"
	if got != want {
		t.Fatalf("Plain host:\n%s\n%s", got, want)
	}

	// Under a scheduler the launcher derives the process count itself.
	got = a.Command("/apps/skirt", "mympirun", true)
	want = "mympirun /apps/skirt -t 2 -i /run/in -o /run/out galaxy.ski"
	if got != want {
		t.Fatalf("Scheduler host:\n%s\n%s", got, want)
	}

	// Single process: no launcher at all.
	a.Parallel = Parallel{Processes: 1, Threads: 8}
	got = a.Command("/apps/skirt", "mpirun", false)
	want = "/apps/skirt -t 8 -i /run/in -o /run/out galaxy.ski"
	if got != want {
		t.Fatalf("Threads only:\n%s\n%s", got, want)
	}
}

func TestCopy(t *testing.T) {
	a := &Arguments{SkiPattern: "galaxy.ski", OutputPath: "/out"}
	b := a.Copy()
	b.OutputPath = "/elsewhere"
	if a.OutputPath != "/out" {
		t.Fatal("Copy must not alias the original")
	}
}
