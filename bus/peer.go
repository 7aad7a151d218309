package bus

import "github.com/godbus/dbus/v5"

// Peer is a participant on the bus, identified by its bus name.
//
// A Peer is a purely local handle. It does not indicate that the
// named peer exists, or that it is currently reachable.
type Peer struct {
	f    Facility
	name string
}

// NewPeer returns a Peer for the given bus name, reached through f.
func NewPeer(f Facility, name string) Peer {
	return Peer{f: f, name: name}
}

// Facility returns the Facility used to reach the peer.
func (p Peer) Facility() Facility { return p.f }

// Name returns the peer's bus name.
func (p Peer) Name() string { return p.name }

func (p Peer) String() string {
	if p.f == nil {
		return "<no peer>"
	}
	return p.name
}

// Object returns the object at path offered by the peer.
func (p Peer) Object(path dbus.ObjectPath) Object {
	return Object{
		p:    p,
		path: path,
	}
}
