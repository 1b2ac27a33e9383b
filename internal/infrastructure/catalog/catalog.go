package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

type cameraEntry struct {
	ID          int    `toml:"id"`
	StreamURL   string `toml:"stream_url"`
	SnapshotURL string `toml:"snapshot_url"`
	Street      string `toml:"street"`
	City        string `toml:"city"`
}

type catalogFile struct {
	Cameras []cameraEntry `toml:"cameras"`
}

// Catalog is the static camera list loaded from a TOML file. Reload swaps
// the whole snapshot under a lock so readers never observe a partial list.
type Catalog struct {
	path string

	mu      sync.RWMutex
	cameras []observation.Camera
	byID    map[int]observation.Camera
}

var _ ports.CameraCatalog = (*Catalog)(nil)

func Load(ctx context.Context, path string) (*Catalog, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	c := &Catalog{path: strings.TrimSpace(path)}
	if c.path == "" {
		return nil, errors.New("catalog file is required")
	}

	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Reload(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		return errs.Wrapf(err, "read catalog file %q", c.path)
	}

	var parsed catalogFile
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		return errs.Wrap(err, "parse catalog file")
	}
	if len(parsed.Cameras) == 0 {
		return errors.New("catalog has no cameras")
	}

	cameras := make([]observation.Camera, 0, len(parsed.Cameras))
	byID := make(map[int]observation.Camera, len(parsed.Cameras))
	for _, entry := range parsed.Cameras {
		if entry.ID <= 0 {
			return errors.New("camera id must be positive")
		}
		if strings.TrimSpace(entry.Street) == "" {
			return errs.Wrapf(errors.New("street is required"), "camera %d", entry.ID)
		}
		camera := observation.Camera{
			ID:          entry.ID,
			StreamURL:   entry.StreamURL,
			SnapshotURL: entry.SnapshotURL,
			Street:      entry.Street,
			City:        entry.City,
		}
		if _, exists := byID[entry.ID]; exists {
			return errs.Wrapf(errors.New("duplicate camera id"), "camera %d", entry.ID)
		}
		cameras = append(cameras, camera)
		byID[entry.ID] = camera
	}

	c.mu.Lock()
	c.cameras = cameras
	c.byID = byID
	c.mu.Unlock()

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "infrastructure.catalog")),
		"camera catalog loaded",
		slog.String("file", c.path),
		slog.Int("cameras", len(cameras)),
	)
	return nil
}

func (c *Catalog) Cameras() []observation.Camera {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cloned := make([]observation.Camera, len(c.cameras))
	copy(cloned, c.cameras)
	return cloned
}

func (c *Catalog) Camera(id int) (observation.Camera, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	camera, ok := c.byID[id]
	return camera, ok
}

// Watch reloads the catalog when the backing file changes. It blocks until
// ctx is done. A failed reload keeps the previous snapshot.
func (c *Catalog) Watch(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.catalog"))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create catalog watcher")
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		return errs.Wrap(err, "watch catalog directory")
	}

	target := filepath.Clean(c.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if err := c.Reload(ctx); err != nil {
				logging.Warn(logCtx, "catalog reload failed, keeping previous snapshot", slog.Any("err", errs.Loggable(err)))
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "catalog watcher error", slog.Any("err", errs.Loggable(watchErr)))
		}
	}
}
