package instructions

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher debounces fsnotify events on the instructions directory and
// triggers Store.Reload, backed by an fsnotify.Watcher.
type Watcher struct {
	store         *Store
	fsw           *fsnotify.Watcher
	debounceDelay time.Duration
	logger        *zap.Logger
	stop          chan struct{}
}

func NewWatcher(store *Store, dir string, debounceDelay time.Duration, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounceDelay <= 0 {
		debounceDelay = 500 * time.Millisecond
	}
	return &Watcher{
		store:         store,
		fsw:           fsw,
		debounceDelay: debounceDelay,
		logger:        logger.With(zap.String("component", "instruction_watcher")),
		stop:          make(chan struct{}),
	}, nil
}

// Start runs the debounced dispatch loop until Stop is called. Multiple
// events arriving within debounceDelay collapse into a single reload.
func (w *Watcher) Start() {
	go func() {
		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case <-w.stop:
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.logger.Debug("instruction file change observed", zap.String("name", event.Name), zap.String("op", event.Op.String()))
				if timer == nil {
					timer = time.NewTimer(w.debounceDelay)
				} else {
					if !timer.Stop() {
						select {
						case <-timerC:
						default:
						}
					}
					timer.Reset(w.debounceDelay)
				}
				timerC = timer.C
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("instruction watcher error", zap.Error(err))
			case <-timerC:
				timerC = nil
				if err := w.store.Reload(); err != nil {
					w.logger.Error("instruction reload failed", zap.Error(err))
				}
			}
		}
	}()
}

func (w *Watcher) Stop() {
	close(w.stop)
	w.fsw.Close()
}
