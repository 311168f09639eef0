// Package engine implements the watch-lifecycle engine: the subsystem
// that owns the kernel watch handle, reloads the registry from the
// table, expands recursive watches, and maintains the failed-watch list.
// It is the concurrency-sensitive core spec.md §4.6 and §5 describe: one
// coarse mutex serializes add/reload/recover/on_event, exactly as a
// three-task design (event consumer, recovery ticker, control-socket
// listener) over shared mutable state requires.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dpvpro/rsincron/pkg/kernel"
	"github.com/dpvpro/rsincron/pkg/mask"
	"github.com/dpvpro/rsincron/pkg/registry"
	"github.com/dpvpro/rsincron/pkg/table"
	"github.com/dpvpro/rsincron/pkg/watch"
)

// DefaultRecoverInterval is how often Recover runs when Config.RecoverInterval is unset.
const DefaultRecoverInterval = 1 * time.Second

// Config configures an Engine.
type Config struct {
	TablePath       string
	RunAs           watch.RunAs
	RecoverInterval time.Duration
}

// Engine owns the kernel watch handle, the watch registry, the
// failed-watch list, and the reload-signal channel.
type Engine struct {
	mu   sync.Mutex
	kern kernel.Kernel
	reg  *registry.Registry

	// failed is the ordered (FIFO) list of entries whose most recent
	// registration attempt failed; Recover retries each at most once
	// per tick.
	failed []watch.Entry

	cfg Config
	log zerolog.Logger

	reloadCh      chan struct{}
	reloadEnabled bool
}

// New builds an Engine. kern must already be open and draining its own
// event stream.
func New(kern kernel.Kernel, cfg Config, log zerolog.Logger) *Engine {
	if cfg.RecoverInterval <= 0 {
		cfg.RecoverInterval = DefaultRecoverInterval
	}
	return &Engine{
		kern:          kern,
		reg:           registry.New(),
		cfg:           cfg,
		log:           log,
		reloadCh:      make(chan struct{}, 1),
		reloadEnabled: true,
	}
}

// SignalReload is the single producer side of the one-shot reload
// notification: multiple pending signals collapse to one. It is safe to
// call from any goroutine, including the control-socket listener.
func (e *Engine) SignalReload() {
	select {
	case e.reloadCh <- struct{}{}:
	default:
	}
}

// Reload clears the registry and re-adds every entry parsed from the
// table file. The failed-watch list is preserved across reloads (spec.md
// §9 Open Question 2).
func (e *Engine) Reload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reloadLocked()
}

func (e *Engine) reloadLocked() error {
	entries, parseErrs, err := table.Load(e.cfg.TablePath)
	if err != nil {
		e.log.Error().Err(err).Str("table", e.cfg.TablePath).
			Msg("failed to read watch table; keeping current registry")
		return err
	}
	for _, pe := range parseErrs {
		e.log.Warn().Str("kind", pe.Kind.String()).Str("line", pe.Line).
			Msg("skipping malformed table line")
	}

	e.reg.Clear()
	for _, entry := range entries {
		e.add(entry)
	}
	e.log.Info().Int("entries", e.reg.Len()).Str("table", e.cfg.TablePath).Msg("RELOAD")
	return nil
}

// add registers entry.Path with entry.Masks. On failure the entry is
// queued on the failed-watch list. On success, if the entry is recursive
// and watches for creation, one level of existing subdirectories is
// expanded into derived entries (spec.md §4.6.2 step 3; deeper levels
// appear dynamically via R3 in OnEvent). Caller must hold e.mu.
func (e *Engine) add(entry watch.Entry) {
	d, err := e.kern.AddWatch(entry.Path, uint32(entry.Masks))
	if err != nil {
		e.failed = append(e.failed, entry)
		e.log.Warn().Err(err).Str("path", entry.Path).Msg("failed to add watch")
		return
	}

	rd := registry.Descriptor(d)
	if _, exists := e.reg.Get(rd); !exists {
		e.reg.Insert(rd, entry)
		e.log.Info().Int("descriptor", int(d)).Str("path", entry.Path).
			Str("masks", entry.Masks.Format()).Msg("ADD")
	}
	// else: the kernel handed back a descriptor we already hold (e.g. a
	// direct table line and a recursive-expansion candidate for the
	// same path); the first registration wins, per spec.md §4.6.2 tie-break.

	if entry.Attributes.Recursive && entry.Masks.Has(mask.CreateBit) {
		children, err := os.ReadDir(entry.Path)
		if err != nil {
			e.log.Warn().Err(err).Str("path", entry.Path).
				Msg("failed to enumerate recursive watch children")
			return
		}
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			e.add(entry.Derive(filepath.Join(entry.Path, child.Name())))
		}
	}
}

// Recover attempts to register every entry on the failed-watch list,
// in FIFO order, each at most once. Entries that succeed move into the
// registry; entries that fail again stay on the list for the next tick.
func (e *Engine) Recover() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recoverLocked()
}

func (e *Engine) recoverLocked() {
	if len(e.failed) == 0 {
		return
	}

	var stillFailed []watch.Entry
	for _, entry := range e.failed {
		d, err := e.kern.AddWatch(entry.Path, uint32(entry.Masks))
		if err != nil {
			stillFailed = append(stillFailed, entry)
			continue
		}
		rd := registry.Descriptor(d)
		if _, exists := e.reg.Get(rd); !exists {
			e.reg.Insert(rd, entry)
		}
		e.log.Info().Int("descriptor", int(d)).Str("path", entry.Path).Msg("ADD (recovered)")
	}
	e.failed = stillFailed
}

// ReloadIfSignaled is a non-blocking poll of the reload channel; if a
// signal is pending it runs Reload.
func (e *Engine) ReloadIfSignaled() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reloadIfSignaledLocked()
}

func (e *Engine) reloadIfSignaledLocked() {
	if !e.reloadEnabled {
		return
	}
	select {
	case _, ok := <-e.reloadCh:
		if !ok {
			e.log.Error().Msg("reload signal channel closed; disabling reload for the rest of this process")
			e.reloadEnabled = false
			return
		}
		e.reloadLocked()
	default:
	}
}

// OnEvent routes one kernel event to its originating watch entry and
// applies rules R0-R4 of spec.md §4.6.3, in order.
func (e *Engine) OnEvent(ev kernel.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// R0: reload polling happens first, so a pending reload takes effect
	// before this event is routed against the (possibly stale) registry.
	e.reloadIfSignaledLocked()

	rd := registry.Descriptor(ev.Descriptor)
	entry, ok := e.reg.Get(rd)
	if !ok {
		return // R1: no match, drop
	}

	// R2: execute, then stop processing this event on spawn failure.
	err := entry.Command.Execute(entry.Path, ev.Name, ev.Mask, e.cfg.RunAs, func(exitErr error) {
		if exitErr != nil {
			e.log.Warn().Err(exitErr).Str("path", entry.Path).Msg("command exited with error")
		}
	})
	if err != nil {
		e.log.Warn().Err(err).Str("path", entry.Path).Msg("failed to spawn command")
		return
	}

	// R3: recursive directories propagate via a full reload at the end
	// of event processing, rather than a separate tree walk per subdir.
	needsReload := entry.Attributes.Recursive && mask.IsDir(ev.Mask)

	// R4: invalidation evicts the descriptor and queues it for recovery.
	if mask.IsIgnored(ev.Mask) {
		if removed, ok := e.reg.Remove(rd); ok {
			e.failed = append(e.failed, removed)
			e.log.Info().Str("path", removed.Path).Msg("watch invalidated; queued for recovery")
		}
	}

	if needsReload {
		e.reloadLocked()
	}
}

// Run drains the kernel's event stream and runs the periodic recovery
// tick in a second goroutine, matching the two-task split of spec.md §5
// (event task never parks except on the stream's own I/O readiness;
// recovery task sleeps independently and briefly enters the engine).
// Run blocks until ctx is cancelled or the kernel stream ends; a fatal
// kernel read error is returned so the caller can exit non-zero.
func (e *Engine) Run(ctx context.Context) error {
	recoverDone := make(chan struct{})
	go func() {
		defer close(recoverDone)
		ticker := time.NewTicker(e.cfg.RecoverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Recover()
			}
		}
	}()
	defer func() { <-recoverDone }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-e.kern.Events():
			if !ok {
				return nil
			}
			e.OnEvent(ev)
		case err, ok := <-e.kern.Errors():
			if !ok {
				return nil
			}
			e.log.Error().Err(err).Msg("kernel event stream failed; shutting down")
			return err
		}
	}
}

// WatchCount reports the number of active registrations, for diagnostics.
func (e *Engine) WatchCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Len()
}

// FailedCount reports the number of entries awaiting recovery, for diagnostics.
func (e *Engine) FailedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.failed)
}
