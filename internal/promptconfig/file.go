package promptconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"dev.helix.gateway/internal/models"
)

// fileDocument is the on-disk layout of a prompt config file.
type fileDocument struct {
	PromptConfigs []models.PromptConfig `yaml:"prompt_configs"`
}

type fileSnapshot struct {
	byID     map[string]*models.PromptConfig
	defaults map[string]*models.PromptConfig
}

// FileRepository serves prompt configurations from a YAML file and can
// reload it when the file changes.
type FileRepository struct {
	path string
	log  *logrus.Logger

	mu       sync.RWMutex
	snapshot fileSnapshot

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileRepository loads path and returns a repository over its contents.
func NewFileRepository(path string, log *logrus.Logger) (*FileRepository, error) {
	if log == nil {
		log = logrus.New()
	}

	r := &FileRepository{path: path, log: log}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads the file and replaces the current snapshot. The previous
// snapshot is kept when the file is invalid.
func (r *FileRepository) Load() error {
	_, err := r.Reload()
	return err
}

// Reload is Load that also returns the index of the snapshot it replaced,
// so callers can tell which configs disappeared.
func (r *FileRepository) Reload() (map[string][]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config file: %w", err)
	}

	snapshot, err := parseFileSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt config file %s: %w", r.path, err)
	}

	r.mu.Lock()
	previous := r.snapshot.index()
	r.snapshot = snapshot
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"path":    r.path,
		"configs": len(snapshot.byID),
	}).Info("Loaded prompt configs")
	return previous, nil
}

func parseFileSnapshot(data []byte) (fileSnapshot, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fileSnapshot{}, err
	}

	snapshot := fileSnapshot{
		byID:     make(map[string]*models.PromptConfig, len(doc.PromptConfigs)),
		defaults: make(map[string]*models.PromptConfig),
	}

	var errs []error
	for i := range doc.PromptConfigs {
		cfg := doc.PromptConfigs[i]
		if err := ValidateID(cfg.ID); err != nil {
			errs = append(errs, fmt.Errorf("prompt_configs[%d]: %w", i, err))
			continue
		}
		if cfg.ApplicationID == "" {
			errs = append(errs, fmt.Errorf("prompt_configs[%d]: application_id is required", i))
			continue
		}
		if _, exists := snapshot.byID[cfg.ID]; exists {
			errs = append(errs, fmt.Errorf("prompt_configs[%d]: duplicate id %s", i, cfg.ID))
			continue
		}
		snapshot.byID[cfg.ID] = &cfg

		if !cfg.IsDefault {
			continue
		}
		if _, exists := snapshot.defaults[cfg.ApplicationID]; exists {
			errs = append(errs, fmt.Errorf("prompt_configs[%d]: application %s has more than one default", i, cfg.ApplicationID))
			continue
		}
		snapshot.defaults[cfg.ApplicationID] = &cfg
	}

	return snapshot, errors.Join(errs...)
}

// FindDefault returns the default configuration of an application.
func (r *FileRepository) FindDefault(_ context.Context, appID string) (*models.PromptConfig, error) {
	r.mu.RLock()
	cfg, ok := r.snapshot.defaults[appID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("default prompt config %s: %w", appID, ErrNotFound)
	}
	clone := *cfg
	return &clone, nil
}

// FindByID returns a configuration owned by the application.
func (r *FileRepository) FindByID(_ context.Context, appID, configID string) (*models.PromptConfig, error) {
	r.mu.RLock()
	cfg, ok := r.snapshot.byID[configID]
	r.mu.RUnlock()

	if !ok || cfg.ApplicationID != appID {
		return nil, fmt.Errorf("prompt config %s: %w", configID, ErrNotFound)
	}
	clone := *cfg
	return &clone, nil
}

// Index maps every application in the snapshot to its config IDs.
func (r *FileRepository) Index() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.index()
}

func (s fileSnapshot) index() map[string][]string {
	index := make(map[string][]string)
	for id, cfg := range s.byID {
		index[cfg.ApplicationID] = append(index[cfg.ApplicationID], id)
	}
	for _, ids := range index {
		sort.Strings(ids)
	}
	return index
}

// Watch reloads the file whenever it is written, created or renamed.
// Bursts of events within debounce trigger a single reload. onReload, when
// set, runs after every successful reload with the index of the replaced
// snapshot.
func (r *FileRepository) Watch(debounce time.Duration, onReload func(previous map[string][]string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Editors replace files by rename, so the directory is watched.
	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.watcher = watcher
	r.done = make(chan struct{})

	r.wg.Add(1)
	go r.watchLoop(debounce, onReload)

	r.log.WithField("path", r.path).Info("Watching prompt config file")
	return nil
}

func (r *FileRepository) watchLoop(debounce time.Duration, onReload func(map[string][]string)) {
	defer r.wg.Done()

	target := filepath.Clean(r.path)
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			previous, err := r.Reload()
			if err != nil {
				r.log.WithError(err).Warn("Prompt config reload failed, keeping previous snapshot")
				continue
			}
			if onReload != nil {
				onReload(previous)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.WithError(err).Warn("Prompt config watcher error")
		}
	}
}

// Close stops the watcher, if any.
func (r *FileRepository) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.wg.Wait()
	r.watcher = nil
	return err
}
