package uart

// Driver is a per-session handle on a UART device.
//
// Handles obtained for the same device index share the device: bytes read by
// one handle are not seen by the others and SetBaudRate affects all of them.
// CharAvail, GetChar and TryGetChar never block. GetChar is only meaningful
// after CharAvail returned true and nobody else read from the device since;
// on a shared device use TryGetChar, which checks and pops in one step.
type Driver interface {
	CharAvail() bool
	GetChar() byte
	// TryGetChar pops the next byte. ok is false when nothing was pending.
	TryGetChar() (c byte, ok bool)
	PutChar(c byte)
	SetBaudRate(bps uint)
	// Close releases the handle. The device stays open while other handles
	// exist.
	Close() error
}

// DriverFactory hands out Driver handles by device index.
//
// onAvail is invoked from the driver's receive path whenever new input
// arrives. It must not block and must not call back into the Driver.
type DriverFactory interface {
	Create(index, baud uint, onAvail func()) (Driver, error)
}

// Notify is a client notification hook.
type Notify func()
