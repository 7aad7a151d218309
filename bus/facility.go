package bus

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// A Facility carries method calls and signals between this process
// and bus peers.
type Facility interface {
	// Call invokes a method on a remote object and returns the
	// reply body. Call must return ctx.Err() if ctx is done before
	// the reply arrives.
	Call(ctx context.Context, c Call) ([]any, error)
	// Subscribe starts delivery of signals matching m.
	Subscribe(ctx context.Context, m Match) (Subscription, error)
}

// Call is a single method invocation.
type Call struct {
	// Destination is the bus name of the peer receiving the call.
	Destination string
	// Path is the object receiving the call.
	Path dbus.ObjectPath
	// Interface is the interface that defines Method.
	Interface string
	// Method is the declaration of the method being called.
	Method Method
	// Args is the call's argument tuple.
	Args []any
}

// String returns the fully qualified method name.
func (c Call) String() string {
	return c.Interface + "." + c.Method.Name
}

// A Subscription is a raw stream of signals from a Facility.
type Subscription interface {
	// Signals returns the channel on which matching signals are
	// delivered. The channel may be closed when the subscription
	// ends, but is not required to be.
	Signals() <-chan *dbus.Signal
	// Close stops delivery and releases the subscription's bus
	// match.
	Close() error
}

var defaultConn = sync.OnceValues(func() (*Conn, error) {
	return SessionBus(context.Background())
})

// Default returns the process-wide default Facility: a connection
// to the session bus, established on first use and shared by all
// callers of Default.
//
// If the first connection attempt fails, every use of the returned
// Facility reports that failure.
func Default() Facility {
	return defaultFacility{}
}

type defaultFacility struct{}

func (defaultFacility) Call(ctx context.Context, c Call) ([]any, error) {
	conn, err := defaultConn()
	if err != nil {
		return nil, CallError{Detail: "connecting to session bus", Err: err}
	}
	return conn.Call(ctx, c)
}

func (defaultFacility) Subscribe(ctx context.Context, m Match) (Subscription, error) {
	conn, err := defaultConn()
	if err != nil {
		return nil, CallError{Detail: "connecting to session bus", Err: err}
	}
	return conn.Subscribe(ctx, m)
}
