// Abstractions for running subprocesses and capturing their output.

package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Run the program with the arguments, collecting its output and returning it.
// If there is an error in running the program or the program exits with a
// nonzero code then an error is returned along with stderr and stdout is
// empty, otherwise stdout and stderr are returned but the assumption is that
// the command exited with code zero.

func Run(programPath string, arguments ...string) (string, string, error) {
	return run(context.Background(), programPath, arguments)
}

// As Run, but the program is killed when it has not exited after the timeout.
// A zero or negative timeout means no timeout.

func RunWithTimeout(timeout time.Duration, programPath string, arguments ...string) (string, string, error) {
	if timeout <= 0 {
		return Run(programPath, arguments...)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stdout, stderr, err := run(ctx, programPath, arguments)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		err = errors.Join(fmt.Errorf("%s timed out after %s", programPath, timeout), err)
	}
	return stdout, stderr, err
}

func run(ctx context.Context, programPath string, arguments []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, programPath, arguments...)
	var stdout strings.Builder
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	errs := stderr.String()
	if err != nil {
		return "", errs, errors.Join(fmt.Errorf("While running %s", programPath), err)
	}
	return stdout.String(), errs, nil
}
