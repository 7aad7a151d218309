package bus

import "fmt"

// Method declares the wire shape of a remote method.
type Method struct {
	// Name is the method's member name, for example "Notify".
	Name string
	// In is the DBus signature of the argument tuple.
	In string
	// Out is the DBus signature of the reply tuple.
	Out string
}

func (m Method) String() string {
	return fmt.Sprintf("%s(%s) -> (%s)", m.Name, m.In, m.Out)
}

// Valid reports whether the method's name and signatures are well
// formed.
func (m Method) Valid() error {
	if m.Name == "" {
		return fmt.Errorf("method has no name")
	}
	if !ValidSignature(m.In) {
		return fmt.Errorf("method %s has invalid input signature %q", m.Name, m.In)
	}
	if !ValidSignature(m.Out) {
		return fmt.Errorf("method %s has invalid output signature %q", m.Name, m.Out)
	}
	return nil
}

// Signal declares the wire shape of a signal.
type Signal struct {
	// Name is the signal's member name, for example
	// "NotificationClosed".
	Name string
	// Body is the DBus signature of the signal's payload.
	Body string
}

func (s Signal) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Body)
}

// Valid reports whether the signal's name and signature are well
// formed.
func (s Signal) Valid() error {
	if s.Name == "" {
		return fmt.Errorf("signal has no name")
	}
	if !ValidSignature(s.Body) {
		return fmt.Errorf("signal %s has invalid body signature %q", s.Name, s.Body)
	}
	return nil
}
