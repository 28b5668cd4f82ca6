package schema

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"workbench/internal/domain"
)

const watchDebounce = 300 * time.Millisecond

// Watcher invalidates the cached schema of sqlite connections when their database
// file changes on disk.
type Watcher struct {
	cache   *Cache
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	byPath   map[string]int64
	dirs     map[string]int
	timers   map[int64]*time.Timer
	debounce time.Duration
}

// NewWatcher starts a Watcher for cache. Close releases it.
func NewWatcher(cache *Cache) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		cache:    cache,
		watcher:  fw,
		cancel:   cancel,
		done:     make(chan struct{}),
		byPath:   make(map[string]int64),
		dirs:     make(map[string]int),
		timers:   make(map[int64]*time.Timer),
		debounce: watchDebounce,
	}
	go w.loop(ctx)
	return w, nil
}

// Watch follows the database file of conn. Connections that are not sqlite are ignored.
func (w *Watcher) Watch(conn domain.ConnectionDescriptor) error {
	if !conn.Engine.FileBased() || conn.Database == "" {
		return nil
	}
	path, err := filepath.Abs(conn.Database)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", conn.Database, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.unwatchLocked(conn.ID)

	// The directory is watched so journal renames and recreated files are seen.
	dir := filepath.Dir(path)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %q: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.byPath[path] = conn.ID
	return nil
}

// Unwatch stops following connection id.
func (w *Watcher) Unwatch(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unwatchLocked(id)
}

func (w *Watcher) unwatchLocked(id int64) {
	for path, cid := range w.byPath {
		if cid != id {
			continue
		}
		delete(w.byPath, path)
		dir := filepath.Dir(path)
		if w.dirs[dir]--; w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			_ = w.watcher.Remove(dir)
		}
	}
	if t, ok := w.timers[id]; ok {
		t.Stop()
		delete(w.timers, id)
	}
}

// HandleConnectionEvent watches a sqlite connection while it is active.
func (w *Watcher) HandleConnectionEvent(ev domain.ConnectionEvent) {
	switch ev.Kind {
	case domain.ConnectionConnected:
		if err := w.Watch(ev.Connection); err != nil {
			log.Printf("[Schema] watch connection %d: %v", ev.Connection.ID, err)
		}
	case domain.ConnectionDisconnected, domain.ConnectionDeleted:
		w.Unwatch(ev.Connection.ID)
	case domain.ConnectionUpdated:
		if ev.Connection.IsActive {
			if err := w.Watch(ev.Connection); err != nil {
				log.Printf("[Schema] watch connection %d: %v", ev.Connection.ID, err)
			}
		} else {
			w.Unwatch(ev.Connection.ID)
		}
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.changed(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Schema] file watcher error: %v", err)
		}
	}
}

// changed maps a touched file (or its -wal/-journal sibling) to a connection and
// schedules one invalidation per burst of writes.
func (w *Watcher) changed(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	id, ok := w.byPath[abs]
	if !ok {
		for _, suffix := range []string{"-wal", "-journal", "-shm"} {
			if base, found := strings.CutSuffix(abs, suffix); found {
				if id, ok = w.byPath[base]; ok {
					break
				}
			}
		}
	}
	if !ok {
		return
	}
	if t, exists := w.timers[id]; exists {
		t.Stop()
	}
	w.timers[id] = time.AfterFunc(w.debounce, func() {
		log.Printf("[Schema] database file of connection %d changed, invalidating", id)
		if err := w.cache.Invalidate(context.Background(), id); err != nil {
			log.Printf("[Schema] invalidate connection %d: %v", id, err)
		}
	})
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done

	w.mu.Lock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
	w.mu.Unlock()
	return err
}
