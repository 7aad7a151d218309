package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/godbus/dbus/v5"
)

// Interface is a set of methods and signals offered by an [Object].
type Interface struct {
	o    Object
	name string
}

// Facility returns the Facility used to reach the interface.
func (f Interface) Facility() Facility { return f.o.Peer().Facility() }

// Peer returns the Peer that is offering the interface.
func (f Interface) Peer() Peer { return f.o.Peer() }

// Object returns the Object that implements the interface.
func (f Interface) Object() Object { return f.o }

// Name returns the name of the interface.
func (f Interface) Name() string { return f.name }

func (f Interface) String() string {
	if f.name == "" {
		return fmt.Sprintf("%s:<no interface>", f.Object())
	}
	return fmt.Sprintf("%s:%s", f.Object(), f.name)
}

// Call calls method m on the interface with the given arguments, and
// stores the reply values into the pointers in reply.
//
// The argument tuple must have the signature m.In, and the reply
// must have the signature m.Out. A mismatch on either side is
// reported as a [MarshalError] without coercing any values. Reply
// may be empty to discard the reply body after checking its
// signature.
func (f Interface) Call(ctx context.Context, m Method, args []any, reply ...any) error {
	member := f.name + "." + m.Name
	if err := checkSignature(member, Request, m.In, args); err != nil {
		return err
	}
	fac := f.Facility()
	if fac == nil {
		return CallError{Detail: fmt.Sprintf("%s: no bus connection", member)}
	}

	body, err := fac.Call(ctx, Call{
		Destination: f.Peer().Name(),
		Path:        f.Object().Path(),
		Interface:   f.name,
		Method:      m,
		Args:        args,
	})
	if err != nil {
		return err
	}

	if err := checkSignature(member, Reply, m.Out, body); err != nil {
		return err
	}
	if len(reply) == 0 {
		return nil
	}
	if err := dbus.Store(body, reply...); err != nil {
		return MarshalError{Member: member, Direction: Reply, Want: m.Out, Err: err}
	}
	return nil
}

// Match returns a Match for signal s emitted by this interface.
func (f Interface) Match(s Signal) Match {
	return Match{
		Sender:    f.Peer().Name(),
		Path:      f.Object().Path(),
		Interface: f.name,
		Member:    s.Name,
	}
}

// Watch subscribes to signal s on the interface and returns a
// Watcher that delivers each signal body decoded into a T.
//
// T must be a struct whose exported fields, in declaration order,
// match the signal's body signature s.Body.
func Watch[T any](ctx context.Context, f Interface, s Signal) (*Watcher[T], error) {
	member := f.name + "." + s.Name
	if err := s.Valid(); err != nil {
		return nil, err
	}
	if reflect.TypeFor[T]().Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot watch %s with non-struct type %s", member, reflect.TypeFor[T]())
	}
	fac := f.Facility()
	if fac == nil {
		return nil, CallError{Detail: fmt.Sprintf("%s: no bus connection", member)}
	}
	sub, err := fac.Subscribe(ctx, f.Match(s))
	if err != nil {
		return nil, err
	}
	return newWatcher(ctx, sub, member, s.Body, decodeStruct[T]), nil
}

// decodeStruct stores a signal body into the exported fields of a
// new T.
func decodeStruct[T any](body []any) (T, error) {
	var ret T
	v := reflect.ValueOf(&ret).Elem()
	ptrs := make([]any, 0, v.NumField())
	for i := range v.NumField() {
		if !v.Type().Field(i).IsExported() {
			continue
		}
		ptrs = append(ptrs, v.Field(i).Addr().Interface())
	}
	if len(ptrs) != len(body) {
		return ret, errors.New("field count does not match body length")
	}
	if err := dbus.Store(body, ptrs...); err != nil {
		return ret, err
	}
	return ret, nil
}
