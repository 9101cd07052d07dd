package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default extagger data directory name (relative to home).
	DefaultDataDir = ".extagger"
	// DBFile is the handler registry database filename.
	DBFile = "extagger.db"
	// TmpDir is the subdirectory for the handler exchange files.
	TmpDir = "tmp"
)

// DBPath returns the handler registry database path.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// TmpPath returns the default directory for the handler exchange files.
func TmpPath(dataDir string) string {
	return filepath.Join(dataDir, TmpDir)
}
