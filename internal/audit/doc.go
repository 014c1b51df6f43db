// Package audit implements async event dispatching for security-relevant
// account operations.
//
// The [Dispatcher] is a buffered relay between the engine hot path and a
// caller-supplied [Sink]; it either blocks or drops when the buffer fills,
// depending on configuration. The package decides nothing about which events
// get emitted; that belongs to the engine.
package audit
