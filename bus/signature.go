package bus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// signatureOf returns the DBus signature of the value tuple vs.
//
// godbus panics on values with no DBus representation, signatureOf
// reports them as errors instead.
func signatureOf(vs []any) (sig string, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig = ""
			err = fmt.Errorf("%v", r)
		}
	}()
	return dbus.SignatureOf(vs...).String(), nil
}

// checkSignature verifies that vs has signature want.
func checkSignature(member string, dir Direction, want string, vs []any) error {
	got, err := signatureOf(vs)
	if err != nil {
		return MarshalError{Member: member, Direction: dir, Want: want, Err: err}
	}
	if got != want {
		return MarshalError{Member: member, Direction: dir, Want: want, Got: got}
	}
	return nil
}

// ValidSignature reports whether s is a well-formed DBus type
// signature. The empty signature is valid.
func ValidSignature(s string) bool {
	if s == "" {
		return true
	}
	_, err := dbus.ParseSignature(s)
	return err == nil
}
