package bustest

import (
	"context"
	"fmt"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/danderson/notify/bus"
	"github.com/godbus/dbus/v5"
)

// Handler implements a method on a [Fake]. It receives the call's
// argument tuple and returns the reply tuple.
//
// A Handler that returns a [bus.CallError] has it delivered to the
// caller unchanged. Other errors are delivered as a CallError named
// org.freedesktop.DBus.Error.Failed.
type Handler func(ctx context.Context, args []any) ([]any, error)

// Fake is an in-memory [bus.Facility]. It dispatches calls to
// registered Handlers and delivers signals emitted with
// [Fake.Emit] to matching subscribers.
type Fake struct {
	name string

	mu       sync.Mutex
	handlers map[methodKey]Handler
	calls    []bus.Call
	subs     mapset.Set[*fakeSubscription]
}

type methodKey struct {
	path   dbus.ObjectPath
	iface  string
	method string
}

// NewFake returns a Fake with no methods. Signals emitted by the Fake
// carry the unique bus name ":fake.1" as their sender.
func NewFake() *Fake {
	return &Fake{
		name:     ":fake.1",
		handlers: map[methodKey]Handler{},
		subs:     mapset.New[*fakeSubscription](),
	}
}

// Name returns the unique bus name the Fake uses as the sender of
// its signals.
func (f *Fake) Name() string { return f.name }

// Peer returns a Peer for the given bus name, reached through f.
func (f *Fake) Peer(name string) bus.Peer {
	return bus.NewPeer(f, name)
}

// Handle registers h as the implementation of method on the given
// object and interface, replacing any previous registration.
func (f *Fake) Handle(path dbus.ObjectPath, iface, method string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[methodKey{path, iface, method}] = h
}

// Calls returns the calls received so far, in arrival order.
func (f *Fake) Calls() []bus.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.Call(nil), f.calls...)
}

// Subscribers returns the number of open subscriptions.
func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs.Len()
}

// Call implements [bus.Facility].
func (f *Fake) Call(ctx context.Context, c bus.Call) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := func() Handler {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, c)
		return f.handlers[methodKey{c.Path, c.Interface, c.Method.Name}]
	}()
	if h == nil {
		return nil, bus.CallError{
			Name:   "org.freedesktop.DBus.Error.UnknownMethod",
			Detail: fmt.Sprintf("no method %s on object %s", c, c.Path),
		}
	}

	type result struct {
		body []any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := h(ctx, c.Args)
		done <- result{body, err}
	}()
	select {
	case r := <-done:
		if r.err == nil {
			return r.body, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ce, ok := r.err.(bus.CallError); ok {
			return nil, ce
		}
		return nil, bus.CallError{Name: "org.freedesktop.DBus.Error.Failed", Detail: r.err.Error()}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe implements [bus.Facility].
func (f *Fake) Subscribe(ctx context.Context, m bus.Match) (bus.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &fakeSubscription{
		f:    f,
		m:    m,
		out:  make(chan *dbus.Signal, 64),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs.Add(s)
	return s, nil
}

// Emit delivers a signal from the object at path to every matching
// subscriber. It blocks until every matching subscriber has accepted
// the signal or been closed.
func (f *Fake) Emit(path dbus.ObjectPath, iface, member string, body ...any) {
	sig := &dbus.Signal{
		Sender: f.name,
		Path:   path,
		Name:   iface + "." + member,
		Body:   body,
	}
	var targets []*fakeSubscription
	func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for s := range f.subs {
			if s.m.Matches(sig) {
				targets = append(targets, s)
			}
		}
	}()
	for _, s := range targets {
		select {
		case s.out <- sig:
		case <-s.done:
		}
	}
}

type fakeSubscription struct {
	f    *Fake
	m    bus.Match
	out  chan *dbus.Signal
	done chan struct{}
	once sync.Once
}

func (s *fakeSubscription) Signals() <-chan *dbus.Signal { return s.out }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() {
		s.f.mu.Lock()
		defer s.f.mu.Unlock()
		s.f.subs.Remove(s)
		close(s.done)
	})
	return nil
}
