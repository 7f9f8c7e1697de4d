// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose coupling
// between components in the system. The mutation pipeline emits an event after every
// successful task write without knowing which handlers will process it; the audit
// recorder and any other observers subscribe as handlers. A handler failure is isolated:
// it never reaches the publisher's callers and never prevents delivery to the remaining
// handlers.
//
// The primary components are:
// - TaskEvent: Describes one committed task mutation
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
