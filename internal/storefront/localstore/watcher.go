package localstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/liminara/storefront/internal/storefront/events"
	"github.com/liminara/storefront/pkg/logger"
)

// WatchSource is the event source used for changes made by other processes.
const WatchSource = "localstore.watcher"

const defaultDebounce = 75 * time.Millisecond

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Topics maps storage keys to the signal published when another process
	// changes them. Keys not listed are ignored.
	Topics   map[string]events.Topic
	Bus      *events.Bus
	Logger   *logger.Logger
	Debounce time.Duration
}

// Watcher turns writes made to a Dir by other processes into change signals
// on the bus, the way a browser fires "storage" events in other tabs.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      *Dir
	topics   map[string]events.Topic
	bus      *events.Bus
	logg     *logger.Logger
	debounce time.Duration
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher prepares a watcher over dir. Call Start to begin delivering.
func NewWatcher(dir *Dir, opts WatcherOptions) (*Watcher, error) {
	if dir == nil {
		return nil, errors.New("localstore: watcher requires a directory store")
	}
	if opts.Bus == nil {
		return nil, errors.New("localstore: watcher requires an event bus")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	topics := make(map[string]events.Topic, len(opts.Topics))
	for k, v := range opts.Topics {
		topics[k] = v
	}
	return &Watcher{
		watcher:  fw,
		dir:      dir,
		topics:   topics,
		bus:      opts.Bus,
		logg:     logg,
		debounce: debounce,
		pending:  map[string]time.Time{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine. It is a no-op when already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if err := w.watcher.Add(w.dir.Root()); err != nil {
		w.mu.Unlock()
		return err
	}
	w.running = true
	w.mu.Unlock()

	w.logg.Debug(w.logg.WithField(ctx, "dir", w.dir.Root()), "localstore.watch.start")
	go w.run(ctx)
	return nil
}

// Stop ends the loop, waits for it and releases the inotify handle. Stop is
// safe to call on a watcher that never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logg.Warn(w.logg.WithField(context.Background(), "error", err.Error()), "localstore.watch.close_failed")
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(max(w.debounce/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logg.Error(ctx, "localstore.watch.error", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	key, ok := keyForFile(filepath.Base(event.Name))
	if !ok {
		return
	}
	if _, tracked := w.topics[key]; !tracked {
		return
	}
	w.mu.Lock()
	w.pending[key] = time.Now()
	w.mu.Unlock()
}

// flush publishes keys that have been quiet for the debounce window and whose
// content differs from what this process wrote last.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	ready := make([]string, 0, len(w.pending))
	for key, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, key)
			delete(w.pending, key)
		}
	}
	w.mu.Unlock()

	published := map[events.Topic]struct{}{}
	for _, key := range ready {
		content, err := os.ReadFile(w.dir.path(key))
		exists := err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logg.Error(w.logg.WithField(ctx, "key", key), "localstore.watch.read_failed", err)
			continue
		}
		if w.dir.ownWrite(key, content, exists) {
			continue
		}
		topic := w.topics[key]
		if _, done := published[topic]; done {
			continue
		}
		published[topic] = struct{}{}
		w.logg.Debug(w.logg.WithField(ctx, "key", key), "localstore.watch.external_change")
		w.bus.Publish(topic, WatchSource)
	}
}
