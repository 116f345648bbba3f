/*
Package resilience provides a circuit breaker for device access.

A UART that is unplugged or misconfigured fails every open attempt, often
slowly. The breaker turns repeated failures into an immediate ErrCircuitOpen
until Timeout has passed, then lets MaxRequests trial calls through.

# Usage

	breaker := resilience.New("uart0", resilience.DeviceSettings())

	port, err := resilience.Do(breaker, func() (Port, error) {
		return openPort(path)
	})

# States

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[successes]-> Closed
	                                               |
	                                           [failure]
	                                               v
	                                              Open
*/
package resilience
