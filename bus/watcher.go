package bus

import (
	"context"
	"sync"

	"github.com/creachadair/mds/queue"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const maxWatcherQueue = 64

// A Watcher delivers the decoded bodies of signals matching a single
// signal declaration.
//
// Signals whose body does not have the declared signature are
// dropped and logged through the logger carried by the context given
// to [Watch], if any.
type Watcher[T any] struct {
	sub    Subscription
	member string
	sig    string
	decode func([]any) (T, error)
	log    *zerolog.Logger

	events      chan T
	wakePump    chan struct{}
	stopFeed    chan struct{}
	done        <-chan struct{}
	pumpStopped chan struct{}

	stopOnce sync.Once

	mu      sync.Mutex
	queue   queue.Queue[T]
	closed  bool
	dropped uint64
}

func newWatcher[T any](ctx context.Context, sub Subscription, member, sig string, decode func([]any) (T, error)) *Watcher[T] {
	w := &Watcher[T]{
		sub:         sub,
		member:      member,
		sig:         sig,
		decode:      decode,
		log:         zerolog.Ctx(ctx),
		events:      make(chan T),
		wakePump:    make(chan struct{}, 1),
		stopFeed:    make(chan struct{}),
		done:        ctx.Done(),
		pumpStopped: make(chan struct{}),
	}
	go w.feed()
	go w.pump()
	return w
}

// Chan returns the channel on which signal bodies are delivered.
//
// The caller must drain this channel promptly. If the Watcher's
// queue fills up, further signals are discarded until the consumer
// catches up, see [Watcher.Dropped].
//
// The channel is closed once the Watcher is closed and every event
// queued before the close has been delivered, or when the context
// given to [Watch] is done.
func (w *Watcher[T]) Chan() <-chan T {
	return w.events
}

// Dropped returns the number of signals discarded so far, either
// because the queue was full or because the body was malformed.
func (w *Watcher[T]) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Close stops the Watcher from accepting new signals and releases
// its bus match.
//
// Events that were already queued remain readable from Chan until
// it is closed. Cancelling the context given to [Watch] also
// releases the match, but discards queued events and closes Chan
// immediately.
func (w *Watcher[T]) Close() error {
	return w.release()
}

func (w *Watcher[T]) release() error {
	var err error
	w.stopOnce.Do(func() {
		w.markClosed()
		close(w.stopFeed)
		err = w.sub.Close()
	})
	return err
}

func (w *Watcher[T]) markClosed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.wakeLocked()
}

func (w *Watcher[T]) wakeLocked() {
	select {
	case w.wakePump <- struct{}{}:
	default:
	}
}

// feed moves raw signals from the subscription into the queue.
func (w *Watcher[T]) feed() {
	sigs := w.sub.Signals()
	for {
		select {
		case sig, ok := <-sigs:
			if !ok {
				// Facility went away, drain what's left.
				w.release()
				return
			}
			w.deliver(sig)
		case <-w.stopFeed:
			return
		case <-w.done:
			if err := w.release(); err != nil {
				w.log.Debug().Err(err).Str("signal", w.member).Msg("releasing subscription")
			}
			return
		}
	}
}

func (w *Watcher[T]) deliver(sig *dbus.Signal) {
	if err := checkSignature(w.member, Body, w.sig, sig.Body); err != nil {
		w.drop(err)
		return
	}
	ev, err := w.decode(sig.Body)
	if err != nil {
		w.drop(MarshalError{Member: w.member, Direction: Body, Want: w.sig, Err: err})
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		// raced with a Close, this watcher takes no new events.
		return
	}
	if w.queue.Len() >= maxWatcherQueue {
		w.dropped++
		w.log.Debug().Str("signal", w.member).Uint64("dropped", w.dropped).Msg("watcher queue full, discarding signal")
		return
	}
	w.queue.Add(ev)
	if w.queue.Len() == 1 {
		w.wakeLocked()
	}
}

func (w *Watcher[T]) drop(err error) {
	w.mu.Lock()
	w.dropped++
	w.mu.Unlock()
	w.log.Debug().Err(err).Str("signal", w.member).Msg("discarding malformed signal")
}

func (w *Watcher[T]) pump() {
	defer close(w.pumpStopped)
	defer close(w.events)
	for {
		ev, ok, closed := func() (T, bool, bool) {
			w.mu.Lock()
			defer w.mu.Unlock()
			ev, ok := w.queue.Pop()
			return ev, ok, w.closed
		}()
		if !ok {
			if closed {
				return
			}
			select {
			case <-w.wakePump:
				continue
			case <-w.done:
				return
			}
		}
		select {
		case w.events <- ev:
		case <-w.done:
			return
		}
	}
}
