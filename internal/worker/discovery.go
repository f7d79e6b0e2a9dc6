package worker

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wagiedev/linebridge-go/internal/errors"
)

// DefaultBinaryName is the worker binary searched for when no explicit path
// is configured.
const DefaultBinaryName = "train-ticket-system"

// Config holds configuration for worker discovery.
type Config struct {
	// WorkerPath is an explicit worker path that skips the search.
	WorkerPath string

	// BinaryName overrides DefaultBinaryName.
	BinaryName string

	// Dir is the worker's working directory, searched last.
	// If empty, the current directory is used.
	Dir string

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the worker binary.
type Discoverer interface {
	// Discover locates the worker binary.
	// Returns the path to the binary or an error.
	Discover(ctx context.Context) (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new worker discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log,
	}
}

// Discover locates the worker binary.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.log.Debug("Discovering worker binary")

	path, err := d.findWorker()
	if err != nil {
		d.log.Error("Failed to find worker", "error", err)

		return "", err
	}

	d.log.Debug("Found worker binary", "worker_path", path)

	return path, nil
}

func (d *discoverer) binaryName() string {
	if d.cfg.BinaryName != "" {
		return d.cfg.BinaryName
	}

	return DefaultBinaryName
}

// findWorker locates the worker binary.
func (d *discoverer) findWorker() (string, error) {
	// An explicit path is used and only it
	if d.cfg.WorkerPath != "" {
		if isExecutableFile(d.cfg.WorkerPath) {
			return d.cfg.WorkerPath, nil
		}

		d.log.Debug("Explicit worker path not usable", "worker_path", d.cfg.WorkerPath)

		return "", &errors.WorkerNotFoundError{SearchedPaths: []string{d.cfg.WorkerPath}}
	}

	name := d.binaryName()
	searchedPaths := make([]string, 0, 2)

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	dir := d.cfg.Dir
	if dir == "" {
		if wd, err := os.Getwd(); err == nil {
			dir = wd
		}
	}

	if dir != "" {
		path := filepath.Join(dir, name)
		searchedPaths = append(searchedPaths, path)

		if isExecutableFile(path) {
			return path, nil
		}
	}

	d.log.Warn("Worker not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.WorkerNotFoundError{SearchedPaths: searchedPaths}
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Mode().Perm()&0o111 != 0
}
