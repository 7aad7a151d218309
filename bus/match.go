package bus

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Match is a filter that matches DBus signals. Empty fields match
// anything.
type Match struct {
	// Sender is the bus name of the emitting peer.
	Sender string
	// Path is the object emitting the signal.
	Path dbus.ObjectPath
	// Interface is the interface defining the signal.
	Interface string
	// Member is the signal's name.
	Member string
}

// options returns the match in the form godbus uses for AddMatch and
// RemoveMatch.
func (m Match) options() []dbus.MatchOption {
	var ret []dbus.MatchOption
	if m.Sender != "" {
		ret = append(ret, dbus.WithMatchSender(m.Sender))
	}
	if m.Path != "" {
		ret = append(ret, dbus.WithMatchObjectPath(m.Path))
	}
	if m.Interface != "" {
		ret = append(ret, dbus.WithMatchInterface(m.Interface))
	}
	if m.Member != "" {
		ret = append(ret, dbus.WithMatchMember(m.Member))
	}
	return ret
}

// Matches reports whether sig satisfies the filter.
//
// A connection receives a single stream of signals, the union of
// every active match, so each subscriber filters again locally. Bus
// names in Sender are only compared when they are unique names
// (":1.42"), since received signals carry the unique name of the
// emitter even when the match used a well-known name. The bus has
// already applied the well-known name filter on our behalf.
func (m Match) Matches(sig *dbus.Signal) bool {
	if sig == nil {
		return false
	}
	if m.Sender != "" && strings.HasPrefix(m.Sender, ":") && sig.Sender != m.Sender {
		return false
	}
	if m.Path != "" && sig.Path != m.Path {
		return false
	}
	iface, member := splitMember(sig.Name)
	if m.Interface != "" && iface != m.Interface {
		return false
	}
	if m.Member != "" && member != m.Member {
		return false
	}
	return true
}

func (m Match) String() string {
	var ms []string
	kv := func(k, v string) {
		if v != "" {
			ms = append(ms, fmt.Sprintf("%s='%s'", k, v))
		}
	}
	kv("sender", m.Sender)
	kv("path", string(m.Path))
	kv("interface", m.Interface)
	kv("member", m.Member)
	return strings.Join(ms, ",")
}

// splitMember splits a godbus signal name "iface.Member" into its
// interface and member parts.
func splitMember(name string) (iface, member string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
