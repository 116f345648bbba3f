package serial

import (
	"errors"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const readerExitTimeout = time.Second

type device struct {
	index uint
	label string
	spec  string
	baud  atomic.Uint64
	port  Port
	rx    *ring

	factory *Factory
	logger  *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	handles map[uint64]*handle
	nextID  uint64
	closing atomic.Bool
	done    chan struct{}
}

func newDevice(index uint, spec string, baud uint, port Port, rxSize int, f *Factory) *device {
	d := &device{
		index:   index,
		label:   strconv.Itoa(int(index)),
		spec:    spec,
		port:    port,
		rx:      newRing(rxSize),
		factory: f,
		logger:  f.logger.With(zap.Uint("uart", index)),
		handles: make(map[uint64]*handle),
		done:    make(chan struct{}),
	}
	d.baud.Store(uint64(baud))
	return d
}

func (d *device) attach(onAvail func()) *handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	h := &handle{dev: d, id: d.nextID, onAvail: onAvail}
	d.handles[h.id] = h
	return h
}

// detach drops a handle and reports whether it was the last one.
func (d *device) detach(h *handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.handles, h.id)
	return len(d.handles) == 0
}

func (d *device) handleCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

// readLoop pumps port input into the receive ring until the port closes.
func (d *device) readLoop() {
	defer close(d.done)

	buf := make([]byte, 256)
	for {
		n, err := d.port.Read(buf)
		if n > 0 {
			if dropped := d.rx.Write(buf[:n]); dropped > 0 {
				d.factory.metrics.RecordOverrun(d.label, dropped)
				d.logger.Debug("receive overrun", zap.Int("dropped", dropped))
			}
			d.notify()
		}
		if err != nil {
			if !d.closing.Load() && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				d.factory.metrics.RecordDeviceError(d.label, "read")
				d.logger.Error("device read failed", zap.Error(err))
			}
			return
		}
	}
}

func (d *device) notify() {
	d.mu.Lock()
	callbacks := make([]func(), 0, len(d.handles))
	for _, h := range d.handles {
		if h.onAvail != nil {
			callbacks = append(callbacks, h.onAvail)
		}
	}
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (d *device) putChar(c byte) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.closing.Load() {
		return
	}
	if _, err := d.port.Write([]byte{c}); err != nil {
		d.factory.metrics.RecordDeviceError(d.label, "write")
		d.logger.Warn("device write failed", zap.Error(err))
	}
}

func (d *device) setBaudRate(bps uint) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.closing.Load() {
		return
	}
	if err := d.port.SetBaudRate(bps); err != nil {
		d.factory.metrics.RecordDeviceError(d.label, "baudrate")
		d.logger.Warn("set baud rate failed", zap.Uint("baudrate", bps), zap.Error(err))
		return
	}
	d.baud.Store(uint64(bps))
	d.logger.Info("baud rate changed", zap.Uint("baudrate", bps))
}

// shutdown closes the port and waits for the reader to exit. It reports
// false if the device was already shut down.
func (d *device) shutdown() (bool, error) {
	if !d.closing.CompareAndSwap(false, true) {
		return false, nil
	}
	d.writeMu.Lock()
	err := d.port.Close()
	d.writeMu.Unlock()

	select {
	case <-d.done:
	case <-time.After(readerExitTimeout):
		d.logger.Warn("device reader did not exit after close")
	}
	d.rx.Reset()
	return true, err
}
