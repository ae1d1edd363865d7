// Package lua runs user macros on a single gopher-lua VM.
package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/lua/modules"
	"github.com/dokzlo13/lightdeck/internal/storage/kv"
)

var (
	// ErrRuntimeClosed is returned when the Lua runtime is closed
	ErrRuntimeClosed = errors.New("lua runtime closed")
	// ErrUnknownMacro is returned by Invoke for names no script registered.
	ErrUnknownMacro = errors.New("unknown macro")
)

// Work is a unit of execution on the Lua VM. All Lua access goes through
// the work queue.
type Work func(ctx context.Context)

// History records macro runs.
type History interface {
	Record(eventType ledger.EventType, groupID string, payload map[string]any)
}

// Runtime owns the Lua VM and the single goroutine allowed to touch it.
type Runtime struct {
	L     *lua.LState
	panel *modules.PanelModule

	history History

	workQueue chan Work

	closing   chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}

	mu      sync.Mutex
	started bool
}

// NewRuntime creates a runtime with the log, panel and kv modules
// preloaded. kvManager may be nil, in which case kv is not available.
func NewRuntime(p modules.Panel, kvManager *kv.Manager) *Runtime {
	r := &Runtime{
		L:         lua.NewState(),
		panel:     modules.NewPanelModule(p),
		workQueue: make(chan Work, 100),
		closing:   make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("panel", r.panel.Loader)
	if kvManager != nil {
		r.L.PreloadModule("kv", modules.NewKVModule(kvManager).Loader)
	}
	return r
}

// SetHistory makes Invoke record every finished macro. Call before Run.
func (r *Runtime) SetHistory(h History) {
	r.history = h
}

// Close stops the worker, waits for it to drain and closes the VM.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		close(r.closing)
		started := r.started
		r.mu.Unlock()

		if started {
			<-r.stopped
		}
		r.L.Close()
	})
}

// Do queues work without blocking. Returns false if the runtime is
// closing, the queue is full or ctx is done.
func (r *Runtime) Do(ctx context.Context, work Work) bool {
	select {
	case <-r.closing:
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// DoSyncWithResult queues work, waits for space, and waits for the result.
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrapped := Work(func(c context.Context) {
		done <- work(c)
	})

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrapped:
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Invoke runs a registered macro and waits for it to finish.
func (r *Runtime) Invoke(ctx context.Context, name string) error {
	start := time.Now()
	err := r.DoSyncWithResult(ctx, func(context.Context) error {
		fn, ok := r.panel.Macro(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMacro, name)
		}
		return r.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	})
	if errors.Is(err, ErrUnknownMacro) || errors.Is(err, ErrRuntimeClosed) {
		return err
	}
	payload := map[string]any{"macro": name}
	if err != nil {
		log.Error().Err(err).Str("macro", name).Msg("Macro failed")
		payload["error"] = err.Error()
	} else {
		log.Info().Str("macro", name).Dur("took", time.Since(start)).Msg("Macro finished")
	}
	if r.history != nil {
		r.history.Record(ledger.EventMacroRun, "", payload)
	}
	return err
}

// Names returns the registered macro names.
func (r *Runtime) Names() []string {
	return r.panel.Names()
}

// Run is the worker loop, the only goroutine that touches the VM. It
// returns when ctx is cancelled or the runtime is closed.
func (r *Runtime) Run(ctx context.Context) {
	r.mu.Lock()
	select {
	case <-r.closing:
		r.mu.Unlock()
		return
	default:
	}
	r.started = true
	r.mu.Unlock()
	defer close(r.stopped)

	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work Work) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Lua work panicked - worker continuing")
		}
	}()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript executes a macro script. It must be called before Run.
func (r *Runtime) LoadScript(path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}
	log.Info().Strs("macros", r.Names()).Msg("Lua script loaded")
	return nil
}

// LoadString executes inline Lua source. It must be called before Run.
func (r *Runtime) LoadString(source string) error {
	if err := r.L.DoString(source); err != nil {
		return fmt.Errorf("failed to execute Lua source: %w", err)
	}
	return nil
}
