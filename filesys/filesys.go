// Small local-filesystem helpers used throughout skirtrun.

package filesys

import (
	"bufio"
	"os"
)

// Read the file and return its lines, without line terminators.

func FileLines(filename string) (lines []string, err error) {
	lines = make([]string, 0)
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	err = scanner.Err()
	return
}

// Copy `from` to `to`, creating `to` if necessary with mode 0644.

func CopyFile(from, to string) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	return os.WriteFile(to, data, 0644)
}

func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Create the directory and any missing parents.

func MakeDirectory(path string) error {
	return os.MkdirAll(path, 0755)
}
