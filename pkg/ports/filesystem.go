package ports

// FileSystem is the file access used for YAML configuration, frame
// snapshots and playback summaries. Paths are slash or OS separated; the
// adapter decides.
type FileSystem interface {
	// ReadFile returns the contents of a configuration file.
	ReadFile(path string) ([]byte, error)
	// WriteFile stores a snapshot or summary, creating parent directories.
	WriteFile(path string, data []byte) error
	// MkdirAll prepares a snapshot directory.
	MkdirAll(path string) error
	// Exists reports whether path names a file or directory.
	Exists(path string) (bool, error)
}
