// Package watch signals file system changes to a single file.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned by Start after Stop.
var ErrClosed = errors.New("notifier closed")

// Notifier watches a file and signals on C when it may have changed.
// Signals coalesce: at most one is pending at a time.
type Notifier struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	filePath string
	ch       chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	running  bool
	closed   bool
}

// NewNotifier creates a Notifier for filePath.
func NewNotifier(filePath string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Notifier{
		watcher:  watcher,
		logger:   logger,
		filePath: filePath,
		ch:       make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// C returns the channel that receives change signals.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}

// Start begins watching. The watch ends when ctx is done or Stop is called.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	if n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = true
	n.mu.Unlock()

	// Watch the directory containing the file (survives editors replacing it)
	dir := filepath.Dir(n.filePath)
	if err := n.watcher.Add(dir); err != nil {
		return err
	}

	go n.watch(ctx)
	n.logger.Debug("file notifier started", "path", n.filePath)
	return nil
}

// watch is the main event loop.
func (n *Notifier) watch(ctx context.Context) {
	filename := filepath.Base(n.filePath)

	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				n.signal()
			}

		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Warn("file notifier error", "error", err)

		case <-ctx.Done():
			_ = n.Stop()
			return

		case <-n.done:
			return
		}
	}
}

func (n *Notifier) signal() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Stop stops the notifier and releases the underlying watcher, whether or
// not Start was called.
func (n *Notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	if n.running {
		n.running = false
		close(n.done)
	}
	return n.watcher.Close()
}
