package bus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Object is an object offered by a [Peer].
type Object struct {
	p    Peer
	path dbus.ObjectPath
}

// Peer returns the Peer offering the object.
func (o Object) Peer() Peer { return o.p }

// Path returns the object's path.
func (o Object) Path() dbus.ObjectPath { return o.path }

func (o Object) String() string {
	return fmt.Sprintf("%s:%s", o.p, o.path)
}

// Interface returns the named interface on the object.
func (o Object) Interface(name string) Interface {
	return Interface{
		o:    o,
		name: name,
	}
}
