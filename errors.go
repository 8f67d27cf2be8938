package calcq

import "errors"

var (
	// Capacity / admission errors.
	ErrQueueFull      = errors.New("calcq: queue is full, try again later")
	ErrInvalidRequest = errors.New("calcq: invalid calculation request")

	// Wiring errors.
	ErrNoSignalStore       = errors.New("calcq: no signal store configured")
	ErrNoNotificationStore = errors.New("calcq: no notification store configured")

	// Broker errors.
	ErrBrokerUnreachable = errors.New("calcq: broker unreachable")
)
