package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default timing for the activity tracker.
const (
	// DefaultHeartbeatInterval is how often the tracker re-validates the
	// session in the absence of interaction, so idle expiry fires even
	// with zero activity.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultFlushWindow coalesces interaction signals: at most one store
	// write per window, regardless of how many raw signals arrive.
	DefaultFlushWindow = 1 * time.Second
)

// SignalKind is the interaction signal set the tracker observes.
type SignalKind string

const (
	SignalPointerDown SignalKind = "pointer-down"
	SignalPointerMove SignalKind = "pointer-move"
	SignalKeyPress    SignalKind = "key-press"
	SignalScroll      SignalKind = "scroll"
	SignalTouchStart  SignalKind = "touch-start"
	SignalClick       SignalKind = "click"
)

// TrackerConfig holds activity tracker configuration.
type TrackerConfig struct {
	// HeartbeatInterval is the revalidation heartbeat period. Default: 30s.
	HeartbeatInterval time.Duration
	// FlushWindow is the minimum gap between persisted touches. Default: 1s.
	FlushWindow time.Duration
}

// ActivityTracker turns raw interaction signals into session activity.
//
// Every signal that lands outside the coalescing window advances the active
// slot's last-activity watermark. The heartbeat does NOT touch: it only
// re-runs the resolver so idle expiry is detected when the user walks away.
type ActivityTracker struct {
	svc    *AuthService
	logger *slog.Logger

	heartbeat   time.Duration
	flushWindow time.Duration

	signals  chan SignalKind
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewActivityTracker creates a tracker bound to the auth service.
// Zero config fields fall back to defaults.
func NewActivityTracker(svc *AuthService, cfg TrackerConfig, logger *slog.Logger) *ActivityTracker {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	flushWindow := cfg.FlushWindow
	if flushWindow == 0 {
		flushWindow = DefaultFlushWindow
	}

	return &ActivityTracker{
		svc:         svc,
		logger:      logger,
		heartbeat:   heartbeat,
		flushWindow: flushWindow,
		signals:     make(chan SignalKind, 64),
		stopChan:    make(chan struct{}),
	}
}

// Signal reports an observed interaction. Non-blocking: when the buffer is
// full the signal is dropped. Activity is a watermark, not a log; the
// next signal carries the same information.
func (t *ActivityTracker) Signal(kind SignalKind) {
	select {
	case t.signals <- kind:
	default:
	}
}

// Start launches the tracking loop. Call Stop to shut it down.
func (t *ActivityTracker) Start(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.heartbeat)
		defer ticker.Stop()

		var lastWrite time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopChan:
				return
			case kind := <-t.signals:
				now := time.Now()
				if now.Sub(lastWrite) < t.flushWindow {
					// Coalesced: a write already covers this instant.
					continue
				}
				lastWrite = now
				t.logger.Debug("activity signal", "kind", kind)
				t.svc.TouchActivity(ctx)
			case <-ticker.C:
				// Heartbeat: detect expiry without refreshing activity.
				t.svc.Resolve(ctx)
			}
		}
	}()
}

// Stop stops the tracking loop and waits for it to exit.
// Safe to call multiple times.
func (t *ActivityTracker) Stop() {
	t.once.Do(func() {
		close(t.stopChan)
	})
	t.wg.Wait()
}
