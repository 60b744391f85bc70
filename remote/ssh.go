// Connection implementation over ssh/scp/rsync subprocesses.
//
// We shell out rather than speak the protocol ourselves so that the user's
// ssh configuration (agents, jump hosts, multiplexing) applies unchanged.
// Every command gets the configured timeout; the underlying tools have none
// of their own and a hung remote would otherwise block forever.

package remote

import (
	"fmt"
	"strings"
	"time"

	"skirtrun/process"
)

type SSH struct {
	addr      string
	timeout   time.Duration
	home      string
	connected bool
}

// Open a connection to the ssh destination ("user@host").  A trivial remote
// command is run to verify that the host is reachable without interaction.

func Dial(addr string, timeout time.Duration) (*SSH, error) {
	c := &SSH{addr: addr, timeout: timeout}
	_, stderr, err := process.RunWithTimeout(timeout, "ssh", "-o", "BatchMode=yes", addr, "true")
	if err != nil {
		return nil, fmt.Errorf("Cannot reach %s: %w (stderr: %s)", addr, err, strings.TrimSpace(stderr))
	}
	c.connected = true
	return c, nil
}

func (c *SSH) Connected() bool {
	return c.connected
}

// Mark the connection unusable.  There is no session state to tear down, the
// flag only makes later operations fail fast.

func (c *SSH) Close() {
	c.connected = false
}

// ssh joins the remote-command words with spaces and hands the remote shell
// the resulting string, so the command must cross the wire as one argument
// or its own arguments are lost in the re-split.

func (c *SSH) Execute(command string) ([]string, error) {
	stdout, stderr, err := process.RunWithTimeout(c.timeout, "ssh", c.addr, "bash -lc "+Quote(command))
	if err != nil {
		return nil, fmt.Errorf("Remote command %q failed: %w (stderr: %s)",
			command, err, strings.TrimSpace(stderr))
	}
	trimmed := strings.TrimRight(stdout, "\n")
	if trimmed == "" {
		return []string{}, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

func (c *SSH) Upload(localPath, remoteDir string) error {
	_, stderr, err := process.RunWithTimeout(c.timeout, "scp", "-r", "-q", localPath,
		fmt.Sprintf("%s:%s/", c.addr, strings.TrimRight(remoteDir, "/")))
	if err != nil {
		return fmt.Errorf("Upload of %s to %s failed: %w (stderr: %s)",
			localPath, remoteDir, err, strings.TrimSpace(stderr))
	}
	return nil
}

func (c *SSH) Download(remotePaths []string, localDir string) error {
	for _, rp := range remotePaths {
		_, stderr, err := process.RunWithTimeout(c.timeout, "rsync", "-a",
			fmt.Sprintf("%s:%s", c.addr, rp), localDir)
		if err != nil {
			return fmt.Errorf("Download of %s failed: %w (stderr: %s)",
				rp, err, strings.TrimSpace(stderr))
		}
	}
	return nil
}

func (c *SSH) IsFile(path string) (bool, error) {
	lines, err := c.Execute(fmt.Sprintf("test -f %s && echo yes || echo no", Quote(path)))
	if err != nil {
		return false, err
	}
	return len(lines) > 0 && lines[0] == "yes", nil
}

func (c *SSH) IsActiveScreen(name string) (bool, error) {
	// screen -ls exits nonzero when no sessions exist, hence the || true
	lines, err := c.Execute("screen -ls || true")
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		// Sessions are listed as "<pid>.<name>\t(...)"
		if _, session, found := strings.Cut(fields[0], "."); found && session == name {
			return true, nil
		}
	}
	return false, nil
}

func (c *SSH) ExpandUserPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := c.homeDirectory()
	if err != nil {
		return "", err
	}
	return home + strings.TrimPrefix(path, "~"), nil
}

func (c *SSH) ReadTextFile(path string) ([]string, error) {
	return c.Execute("cat " + Quote(path))
}

func (c *SSH) ListFiles(dir string) ([]string, error) {
	return c.Execute(fmt.Sprintf("find %s -maxdepth 1 -type f -printf '%%f\\n'", Quote(dir)))
}

func (c *SSH) RemoveDirectory(path string) error {
	_, err := c.Execute("rm -rf " + Quote(path))
	return err
}

func (c *SSH) homeDirectory() (string, error) {
	if c.home != "" {
		return c.home, nil
	}
	lines, err := c.Execute("echo $HOME")
	if err != nil {
		return "", err
	}
	if len(lines) == 0 || lines[0] == "" {
		return "", fmt.Errorf("Cannot determine the remote home directory")
	}
	c.home = lines[0]
	return c.home, nil
}

// Quote a string for safe use as a single word in a remote shell command.

func Quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, `'`, `'"'"'`) + "'"
}
