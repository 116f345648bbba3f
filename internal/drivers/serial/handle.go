package serial

import "sync/atomic"

// handle is one session's view of a device. It implements uart.Driver.
type handle struct {
	dev     *device
	id      uint64
	onAvail func()
	closed  atomic.Bool
}

func (h *handle) CharAvail() bool {
	return !h.closed.Load() && h.dev.rx.Len() > 0
}

func (h *handle) GetChar() byte {
	c, _ := h.TryGetChar()
	return c
}

func (h *handle) TryGetChar() (byte, bool) {
	if h.closed.Load() {
		return 0, false
	}
	return h.dev.rx.ReadByte()
}

func (h *handle) PutChar(c byte) {
	if h.closed.Load() {
		return
	}
	h.dev.putChar(c)
}

// SetBaudRate reconfigures the shared device. 0 is ignored.
func (h *handle) SetBaudRate(bps uint) {
	if bps == 0 || h.closed.Load() {
		return
	}
	h.dev.setBaudRate(bps)
}

func (h *handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.dev.factory.release(h)
	return nil
}
