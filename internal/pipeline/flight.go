package pipeline

import (
	"context"
	"sync"

	"github.com/TedTes/genres-sub000/internal/types"
)

// flight is one pipeline run shared by every concurrent request with the same
// cache key. The run is detached from any single caller: it keeps going while
// at least one caller waits and is cancelled when the last one leaves.
type flight struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// set before done is closed
	res *types.OptimizationResult
	err error

	mu        sync.Mutex
	waiters   int
	nextID    int
	listeners map[int]ProgressCallback
	events    []ProgressEvent
}

// join attaches a caller to the in-flight run for key, starting one when
// none exists. The returned id is passed to leave.
func (o *Optimizer) join(ctx context.Context, in runInput, requestID string) (f *flight, id int, shared bool) {
	progress := in.progress

	o.flightsMu.Lock()
	defer o.flightsMu.Unlock()

	f, shared = o.flights[in.key]
	if !shared {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.deps.RunTimeout)
		f = &flight{
			ctx:       runCtx,
			cancel:    cancel,
			done:      make(chan struct{}),
			listeners: map[int]ProgressCallback{},
		}
		o.flights[in.key] = f
		in.requestID = requestID
		in.progress = f.broadcast
		go o.fly(f, in)
	}
	id = f.attach(progress, requestID, shared)
	return f, id, shared
}

// leave detaches a caller. The last caller to leave cancels the run.
func (o *Optimizer) leave(key string, f *flight, id int) {
	o.flightsMu.Lock()
	defer o.flightsMu.Unlock()

	if f.detach(id) == 0 {
		f.cancel()
		if o.flights[key] == f {
			delete(o.flights, key)
		}
	}
}

func (o *Optimizer) fly(f *flight, in runInput) {
	defer close(f.done)
	defer f.cancel()
	defer func() {
		o.flightsMu.Lock()
		if o.flights[in.key] == f {
			delete(o.flights, in.key)
		}
		o.flightsMu.Unlock()
	}()
	f.res, f.err = o.execute(f.ctx, in)
}

// attach registers a listener and replays the events it missed. Events are
// relabelled with the caller's own request ID when it joined a shared run.
func (f *flight) attach(cb ProgressCallback, requestID string, relabel bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waiters++
	id := f.nextID
	f.nextID++
	if cb == nil {
		return id
	}
	if relabel {
		inner := cb
		cb = func(e ProgressEvent) {
			e.RequestID = requestID
			inner(e)
		}
	}
	for _, e := range f.events {
		cb(e)
	}
	f.listeners[id] = cb
	return id
}

// detach removes a listener and returns the number of callers still waiting.
func (f *flight) detach(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listeners, id)
	f.waiters--
	return f.waiters
}

// broadcast fans one event out to every attached caller, in order.
func (f *flight) broadcast(e ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	for _, cb := range f.listeners {
		cb(e)
	}
}
