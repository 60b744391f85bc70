package jobscript

import (
	"strings"
	"testing"
)

func TestFormatWalltime(t *testing.T) {
	if s := FormatWalltime(0); s != "00:00:00" {
		t.Fatalf("Zero: %s", s)
	}
	if s := FormatWalltime(3661); s != "01:01:01" {
		t.Fatalf("Mixed: %s", s)
	}
	if s := FormatWalltime(43200); s != "12:00:00" {
		t.Fatalf("Half day: %s", s)
	}
	if s := FormatWalltime(-5); s != "00:00:00" {
		t.Fatalf("Negative clamps: %s", s)
	}
}

func TestGenerate(t *testing.T) {
	script := Generate(
		"mpirun skirt -t 4 -o out galaxy.ski",
		"/scratch/run/galaxy__x",
		[]string{"vsc-mympirun", "SKIRT"},
		Options{
			Name:         "galaxy",
			Nodes:        2,
			PPN:          12,
			CoresPerNode: 16,
			WalltimeSec:  7200,
			Mail:         true,
			FullNode:     true,
		},
	)

	if !strings.HasPrefix(script, "#!/bin/sh\n") {
		t.Fatalf("Shebang: %q", script)
	}
	for _, want := range []string{
		"#PBS -N galaxy\n",
		"#PBS -o output_galaxy.txt\n",
		"#PBS -e error_galaxy.txt\n",
		"#PBS -l walltime=02:00:00\n",
		// FullNode widens the request to whole nodes.
		"#PBS -l nodes=2:ppn=16\n",
		"#PBS -m bae\n",
		"module load vsc-mympirun\n",
		"module load SKIRT\n",
		"cd /scratch/run/galaxy__x\n",
	} {
		if !strings.Contains(script, want) {
			t.Fatalf("Missing %q in:\n%s", want, script)
		}
	}
	if !strings.HasSuffix(script, "mpirun skirt -t 4 -o out galaxy.ski\n") {
		t.Fatalf("Command must come last:\n%s", script)
	}
}

func TestGenerateMinimal(t *testing.T) {
	script := Generate("skirt galaxy.ski", "", nil, Options{
		Name:        "g",
		Nodes:       1,
		PPN:         4,
		WalltimeSec: 60,
	})
	if strings.Contains(script, "#PBS -m") {
		t.Fatalf("No mail requested:\n%s", script)
	}
	if strings.Contains(script, "module load") {
		t.Fatalf("No modules given:\n%s", script)
	}
	if strings.Contains(script, "cd ") {
		t.Fatalf("No workdir given:\n%s", script)
	}
	if !strings.Contains(script, "#PBS -l nodes=1:ppn=4\n") {
		t.Fatalf("PPN should be used as given without FullNode:\n%s", script)
	}
}
