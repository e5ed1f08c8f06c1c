// Package workdir manages per-task working directories.
//
// Each task works in <base>/<user>/<task>, which holds a marker file while
// the task runs. Cleanup on behalf of a user never touches a directory that
// still has its marker, so concurrent tasks of one user keep their files.
package workdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

const DefaultMarkerName = ".mediabot-task"

const (
	acquirePrefix = ".acquire-"
	acquireGrace  = time.Minute
)

// Manager creates and cleans working directories under one base dir.
type Manager struct {
	base   string
	marker string
	logger types.Logger
}

// New creates a Manager. The base directory is created if missing.
func New(cfg config.WorkdirConfig, logger types.Logger) (*Manager, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("workdir base directory is required")
	}
	marker := cfg.MarkerName
	if marker == "" {
		marker = DefaultMarkerName
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workdir base: %w", err)
	}
	return &Manager{base: cfg.BaseDir, marker: marker, logger: logger}, nil
}

// Dir is a task working directory holding the marker.
type Dir struct {
	Path   string
	marker string
}

// Acquire creates the task directory and its marker. The directory is
// prepared under a temporary name and renamed into place, so it never
// appears without its marker.
func (m *Manager) Acquire(userID int64, taskID string) (*Dir, error) {
	if taskID == "" || taskID != filepath.Base(taskID) || taskID == "." || taskID == ".." {
		return nil, fmt.Errorf("invalid task id %q", taskID)
	}

	userDir := m.userDir(userID)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create task directory: %w", err)
	}
	tmp, err := os.MkdirTemp(userDir, acquirePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create task directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, m.marker), []byte(taskID), 0o644); err != nil {
		os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to write task marker: %w", err)
	}

	path := filepath.Join(userDir, taskID)
	if err := m.rename(tmp, path); err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	return &Dir{Path: path, marker: filepath.Join(path, m.marker)}, nil
}

// rename moves a prepared directory to path. An unmarked leftover at path
// is replaced; a marked one belongs to a running task.
func (m *Manager) rename(tmp, path string) error {
	err := os.Rename(tmp, path)
	if err == nil {
		return nil
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}
	if m.Protected(path) {
		return fmt.Errorf("task directory %s is in use", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove stale task directory: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}
	return nil
}

// Sub returns a fresh subdirectory of d, used for one item's artifacts.
func (d *Dir) Sub(name string) (string, error) {
	path := filepath.Join(d.Path, name)
	if err := os.RemoveAll(path); err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Release removes the marker and then the whole directory.
func (d *Dir) Release() error {
	if err := os.Remove(d.marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove task marker: %w", err)
	}
	return os.RemoveAll(d.Path)
}

// Protected reports whether dir carries a marker.
func (m *Manager) Protected(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, m.marker))
	return err == nil
}

// Sweep removes leftovers in a user's directory: loose files and task
// directories whose marker is gone. It returns the number of removed
// entries. Errors are logged and skipped.
func (m *Manager) Sweep(ctx context.Context, userID int64) int {
	dir := m.userDir(userID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn(ctx, "Failed to read user workdir", types.Fields{"error": err.Error()})
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() && (m.Protected(path) || acquiring(e)) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn(ctx, "Failed to remove stale workdir entry", types.Fields{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Debug(ctx, "Swept stale workdir entries", types.Fields{"removed": removed})
	}
	return removed
}

// acquiring reports whether e is a directory Acquire is still preparing.
func acquiring(e os.DirEntry) bool {
	if !strings.HasPrefix(e.Name(), acquirePrefix) {
		return false
	}
	info, err := e.Info()
	return err == nil && time.Since(info.ModTime()) < acquireGrace
}

func (m *Manager) userDir(userID int64) string {
	return filepath.Join(m.base, strconv.FormatInt(userID, 10))
}
