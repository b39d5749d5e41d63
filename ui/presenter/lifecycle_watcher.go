package presenter

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

// LifecycleWatcher polls whether the host app is in the foreground while a
// session is scanning and dismisses the session once it goes to the
// background.
type LifecycleWatcher struct {
	Foreground func() (bool, error)
	Dismiss    func()
	Logger     *slog.Logger
	interval   time.Duration

	mu        sync.Mutex
	running   bool
	done      chan struct{}
	fired     bool
	wasFront  bool
	errLogged bool
}

func NewLifecycleWatcher(fg func() (bool, error), dismiss func(), logger *slog.Logger) *LifecycleWatcher {
	if fg == nil {
		fg = func() (bool, error) { return true, nil }
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LifecycleWatcher{Foreground: fg, Dismiss: dismiss, Logger: logger, interval: 250 * time.Millisecond}
}

// OnPhase matches scan.PhaseListener. Polling stops once the session presents
// its outcome.
func (w *LifecycleWatcher) OnPhase(_, next scan.Phase) {
	if w == nil {
		return
	}
	if next == scan.Presenting {
		w.Stop()
	}
}

// Watch starts polling. Idempotent.
func (w *LifecycleWatcher) Watch() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.done = make(chan struct{})
	w.fired = false
	w.wasFront = true
	go w.loop(w.done)
}

// Stop ends polling. Idempotent.
func (w *LifecycleWatcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.done)
	w.running = false
}

// Running reports whether the watcher is polling.
func (w *LifecycleWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *LifecycleWatcher) loop(done chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if w.poll() {
				w.Stop()
				return
			}
		case <-done:
			return
		}
	}
}

// poll reports whether the watcher fired.
func (w *LifecycleWatcher) poll() bool {
	front, err := w.Foreground()
	w.mu.Lock()
	if err != nil {
		if !w.errLogged {
			w.Logger.Error("foreground state error", "error", err)
			w.errLogged = true
		}
		w.mu.Unlock()
		return false
	}
	fire := !w.fired && w.wasFront && !front
	w.wasFront = front
	if fire {
		w.fired = true
	}
	w.mu.Unlock()
	if !fire {
		return false
	}
	w.Logger.Info("app backgrounded, dismissing scan session")
	if w.Dismiss != nil {
		w.Dismiss()
	}
	return true
}
