// The remote-execution channel.
//
// Everything the dispatcher knows about a remote host goes through the
// Connection interface: a shell for one-off commands, file transfer in both
// directions, and a handful of queries that the status machinery needs.
// All operations are blocking round-trips; there is no concurrency at this
// layer.

package remote

type Connection interface {
	// True while the channel is usable.  Operations that need the remote
	// side check this first and fail hard when it is false.
	Connected() bool

	// Run a shell command on the remote host and return its stdout lines.
	Execute(command string) ([]string, error)

	// Copy a local file or directory into the remote directory.
	Upload(localPath, remoteDir string) error

	// Copy remote files or directories into the local directory.
	Download(remotePaths []string, localDir string) error

	// True if the path names an existing remote regular file.
	IsFile(path string) (bool, error)

	// True if a detached screen session with the name exists.
	IsActiveScreen(name string) (bool, error)

	// Expand a leading ~ to the remote user's home directory.
	ExpandUserPath(path string) (string, error)

	// The lines of a remote text file.
	ReadTextFile(path string) ([]string, error)

	// The names (not paths) of the regular files in a remote directory.
	ListFiles(dir string) ([]string, error)

	// Remove a remote directory tree.
	RemoveDirectory(path string) error
}
