package mailbox

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettleDelay gives a writer time to finish flushing the request file.
const DefaultSettleDelay = 100 * time.Millisecond

// Watcher is the event trigger: it runs a cycle whenever the request file appears.
type Watcher struct {
	mb     *Mailbox
	settle time.Duration
	logger *zap.Logger

	ready chan struct{}
	wg    sync.WaitGroup
}

func NewWatcher(mb *Mailbox, settle time.Duration, logger *zap.Logger) *Watcher {
	if settle < 0 {
		settle = 0
	}
	return &Watcher{
		mb:     mb,
		settle: settle,
		logger: logger.With(zap.String("component", "mailbox-watcher")),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches the mailbox directory until ctx is done, then waits for in-flight cycles.
// The directory is watched rather than the file so creation is observed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.mb.Dir()); err != nil {
		return &IOError{Op: "watch", Path: w.mb.Dir(), Err: err}
	}
	close(w.ready)
	w.logger.Info("Watching for requests", zap.String("dir", w.mb.Dir()))

	defer w.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			// renames into the directory arrive as Create
			if filepath.Base(ev.Name) != RequestFile || !ev.Has(fsnotify.Create) {
				continue
			}
			w.wg.Add(1)
			go w.handle(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		// shutting down; a request still on disk is picked up by recovery on the next start
		return
	}

	_, err := w.mb.Process(ctx, TriggerEvent)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoRequest):
		w.logger.Debug("Request file already consumed")
	default:
		w.logger.Error("Mailbox cycle failed", zap.Error(err))
	}
}
