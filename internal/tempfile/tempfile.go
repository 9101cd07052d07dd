// Package tempfile allocates the files used to exchange content and metadata with an
// external process, and guarantees their removal.
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
)

// Kind is the exchange artifact a file is used for.
type Kind string

const (
	KindInput          Kind = "input"
	KindOutput         Kind = "output"
	KindInputMetadata  Kind = "input-meta"
	KindOutputMetadata Kind = "output-meta"
)

// ScopeConfig is the configuration of a Scope.
type ScopeConfig struct {
	// Dir is where the files are created, empty uses the system temp dir.
	Dir string
	// Prefix is prepended to every file name.
	Prefix string
	// Keep disables file deletion on cleanup.
	Keep   bool
	Logger log.Logger
}

func (c *ScopeConfig) defaults() error {
	if c.Dir == "" {
		c.Dir = os.TempDir()
	}
	if c.Prefix == "" {
		c.Prefix = "extagger"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tempfile.Scope"})
	return nil
}

// Scope owns the temporary files of a single invocation.
type Scope struct {
	dir    string
	prefix string
	keep   bool
	logger log.Logger

	mu    sync.Mutex
	paths []string
}

// NewScope returns a new Scope.
func NewScope(cfg ScopeConfig) (*Scope, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scope{
		dir:    cfg.Dir,
		prefix: cfg.Prefix,
		keep:   cfg.Keep,
		logger: cfg.Logger,
	}, nil
}

// Create allocates a new empty uniquely named file and returns its path.
func (s *Scope) Create(kind Kind) (string, error) {
	f, err := s.create(kind)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("could not close %s file: %w: %w", kind, err, model.ErrIO)
	}
	return f.Name(), nil
}

// Write allocates a new file, fills it with the reader content and returns its path.
// The file exists when Write returns without error.
func (s *Scope) Write(kind Kind, r io.Reader) (string, error) {
	f, err := s.create(kind)
	if err != nil {
		return "", err
	}

	if r != nil {
		if _, err := io.Copy(f, r); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("could not write %s file: %w: %w", kind, err, model.ErrIO)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("could not close %s file: %w: %w", kind, err, model.ErrIO)
	}

	if _, err := os.Stat(f.Name()); err != nil {
		return "", fmt.Errorf("%s file missing after write: %w: %w", kind, err, model.ErrIO)
	}

	return f.Name(), nil
}

// ReadOptional returns the content of a file, a missing file is empty content.
func (s *Scope) ReadOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read %s: %w: %w", path, err, model.ErrIO)
	}
	return data, nil
}

// Paths returns the allocated file paths.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Cleanup removes every allocated file. Removal errors are logged and not returned.
func (s *Scope) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keep {
		for _, p := range s.paths {
			s.logger.Infof("Keeping temporary file %s", p)
		}
		s.paths = nil
		return
	}

	for _, p := range s.paths {
		err := os.Remove(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Errorf("Could not delete temporary file %s: %s", p, err)
			continue
		}
		s.logger.Debugf("Deleted temporary file %s", p)
	}
	s.paths = nil
}

func (s *Scope) create(kind Kind) (*os.File, error) {
	f, err := os.CreateTemp(s.dir, fmt.Sprintf("%s-%s-*", s.prefix, kind))
	if err != nil {
		return nil, fmt.Errorf("could not create %s file: %w: %w", kind, err, model.ErrIO)
	}

	s.mu.Lock()
	s.paths = append(s.paths, f.Name())
	s.mu.Unlock()

	return f, nil
}
