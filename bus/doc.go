// Package bus is a small typed layer over a DBus client connection.
//
// It provides the two primitives that remote object bindings need:
// calling a method on a bus object, and subscribing to the signals
// that bus objects emit. Both go through a [Facility], which is
// implemented by [Conn] for real buses and by bustest.Fake in tests.
//
// Method and signal shapes are declared up front with [Method] and
// [Signal], including their DBus type signatures. [Interface.Call]
// refuses to send arguments that don't match the declared input
// signature, and refuses to store replies that don't match the
// declared output signature, reporting both cases as a
// [MarshalError]. Errors reported by the remote peer or by the bus
// itself are returned as a [CallError].
//
// Signals are delivered by a [Watcher], which decodes each matching
// signal body into a Go struct and queues it for the consumer.
package bus
