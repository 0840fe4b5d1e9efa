package broker

import "errors"

var (
	// ErrTimeout is returned when no response arrives before the request's timer fires.
	ErrTimeout = errors.New("broker: request timed out")

	// ErrTransportFailure is returned when posting to the transport fails.
	ErrTransportFailure = errors.New("broker: transport failure")

	// ErrProviderNotFound is reported by the responder for an unregistered provider.
	ErrProviderNotFound = errors.New("broker: provider not found")

	// ErrBrokerDestroyed is returned for requests still outstanding at Destroy.
	ErrBrokerDestroyed = errors.New("broker: destroyed")

	// ErrProviderExecution wraps a provider handler failure.
	ErrProviderExecution = errors.New("broker: provider execution failed")
)
