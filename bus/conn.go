package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/godbus/dbus/v5"
)

// SystemBus connects to the system bus.
//
// ctx bounds the connection attempt only, the returned Conn stays
// open until closed.
func SystemBus(ctx context.Context) (*Conn, error) {
	return dial(ctx, "system bus", func() (*dbus.Conn, error) {
		return dbus.ConnectSystemBus()
	})
}

// SessionBus connects to the current user's session bus.
//
// ctx bounds the connection attempt only, the returned Conn stays
// open until closed.
func SessionBus(ctx context.Context) (*Conn, error) {
	return dial(ctx, "session bus", func() (*dbus.Conn, error) {
		return dbus.ConnectSessionBus()
	})
}

// Dial connects to the bus at address, which uses the DBus address
// syntax, for example "unix:path=/run/user/1000/bus".
//
// ctx bounds the connection attempt only, the returned Conn stays
// open until closed.
func Dial(ctx context.Context, address string) (*Conn, error) {
	return dial(ctx, fmt.Sprintf("bus %q", address), func() (*dbus.Conn, error) {
		return dbus.Connect(address)
	})
}

// dial runs connect, giving up when ctx is done. godbus ties a
// connection's lifetime to the context it is created with, so the
// connection is made without one and abandoned explicitly instead.
func dial(ctx context.Context, what string, connect func() (*dbus.Conn, error)) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", what, err)
	}
	type result struct {
		c   *dbus.Conn
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := connect()
		done <- result{c, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", what, r.err)
		}
		return newConn(r.c), nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.c != nil {
				r.c.Close()
			}
		}()
		return nil, fmt.Errorf("connecting to %s: %w", what, ctx.Err())
	}
}

func newConn(c *dbus.Conn) *Conn {
	return &Conn{
		c:    c,
		subs: mapset.New[*connSubscription](),
	}
}

// Conn is a Facility backed by a godbus connection.
//
// A Conn is safe for concurrent use. Calls issued from different
// goroutines are multiplexed over the same connection.
type Conn struct {
	c *dbus.Conn

	mu     sync.Mutex
	closed bool
	subs   mapset.Set[*connSubscription]
}

// Close closes the connection and every subscription made on it.
func (c *Conn) Close() error {
	var subs mapset.Set[*connSubscription]
	{
		c.mu.Lock()
		c.closed = true
		subs, c.subs = c.subs, nil
		c.mu.Unlock()
	}
	for s := range subs {
		s.Close()
	}
	return c.c.Close()
}

// LocalName returns the connection's unique bus name.
func (c *Conn) LocalName() string {
	names := c.c.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Peer returns a Peer for the given bus name.
func (c *Conn) Peer(name string) Peer {
	return NewPeer(c, name)
}

// Call implements [Facility].
func (c *Conn) Call(ctx context.Context, call Call) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj := c.c.Object(call.Destination, call.Path)
	ret := obj.CallWithContext(ctx, call.String(), 0, call.Args...)
	if ret.Err != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, callError(ret.Err)
	}
	return ret.Body, nil
}

// Subscribe implements [Facility].
func (c *Conn) Subscribe(ctx context.Context, m Match) (Subscription, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, CallError{Err: dbus.ErrClosed}
	}

	if err := c.c.AddMatchSignalContext(ctx, m.options()...); err != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, callError(err)
	}

	s := &connSubscription{
		conn: c,
		m:    m,
		raw:  make(chan *dbus.Signal, maxWatcherQueue),
		out:  make(chan *dbus.Signal),
		stop: make(chan struct{}),
	}
	c.c.Signal(s.raw)
	go s.run()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.release()
		return nil, CallError{Err: dbus.ErrClosed}
	}
	c.subs.Add(s)
	return s, nil
}

type connSubscription struct {
	conn *Conn
	m    Match
	raw  chan *dbus.Signal
	out  chan *dbus.Signal
	stop chan struct{}
	once sync.Once
}

func (s *connSubscription) Signals() <-chan *dbus.Signal { return s.out }

func (s *connSubscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.release()
		s.conn.mu.Lock()
		defer s.conn.mu.Unlock()
		if s.conn.subs != nil {
			s.conn.subs.Remove(s)
		}
	})
	return err
}

// release removes the bus match and stops forwarding.
func (s *connSubscription) release() error {
	close(s.stop)
	s.conn.c.RemoveSignal(s.raw)
	err := s.conn.c.RemoveMatchSignal(s.m.options()...)
	if errors.Is(err, dbus.ErrClosed) {
		err = nil
	}
	if err != nil {
		return callError(err)
	}
	return nil
}

func (s *connSubscription) run() {
	defer close(s.out)
	for {
		select {
		case sig, ok := <-s.raw:
			if !ok {
				return
			}
			if !s.m.Matches(sig) {
				continue
			}
			select {
			case s.out <- sig:
			case <-s.stop:
				return
			}
		case <-s.stop:
			return
		}
	}
}
