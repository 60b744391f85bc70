package filesys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileLines(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(fn, []byte("one\ntwo\nthree\n"), 0644); err != nil {
		t.Fatal(err)
	}
	lines, err := FileLines(fn)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(lines, []string{"one", "two", "three"}) {
		t.Fatalf("Lines: %v", lines)
	}
	if _, err := FileLines(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("Missing file should fail")
	}
}

func TestCopyFileAndPredicates(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "a.txt")
	to := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(from, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(from, to); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(to)
	if err != nil || string(data) != "payload" {
		t.Fatalf("Copy: %q %v", data, err)
	}

	if !IsFile(to) || IsDirectory(to) {
		t.Fatal("File predicates")
	}
	if IsFile(dir) || !IsDirectory(dir) {
		t.Fatal("Directory predicates")
	}

	nested := filepath.Join(dir, "x", "y", "z")
	if err := MakeDirectory(nested); err != nil {
		t.Fatal(err)
	}
	if !IsDirectory(nested) {
		t.Fatal("MakeDirectory should create parents")
	}
}
