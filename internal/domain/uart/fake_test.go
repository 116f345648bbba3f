package uart

import (
	"bytes"
	"errors"
	"sync"
)

// fakeDriver is an in-memory Driver. Bytes queued with feed become readable
// and trigger the availability callback. respond maps a written suffix to a
// reply that is fed back once the suffix has been written.
type fakeDriver struct {
	mu      sync.Mutex
	rx      []byte
	tx      []byte
	baud    []uint
	closed  bool
	onAvail func()
	respond map[string][]byte
	// staleAvail makes CharAvail report input that another handle on the
	// same device has already taken.
	staleAvail bool
}

func (d *fakeDriver) CharAvail() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.staleAvail || len(d.rx) > 0
}

func (d *fakeDriver) GetChar() byte {
	c, _ := d.TryGetChar()
	return c
}

func (d *fakeDriver) TryGetChar() (byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rx) == 0 {
		return 0, false
	}
	c := d.rx[0]
	d.rx = d.rx[1:]
	return c, true
}

func (d *fakeDriver) PutChar(c byte) {
	d.mu.Lock()
	d.tx = append(d.tx, c)
	var reply []byte
	for suffix, r := range d.respond {
		if bytes.HasSuffix(d.tx, []byte(suffix)) {
			reply = r
		}
	}
	d.mu.Unlock()

	if reply != nil {
		d.feed(reply)
	}
}

func (d *fakeDriver) SetBaudRate(bps uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baud = append(d.baud, bps)
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDriver) feed(p []byte) {
	d.mu.Lock()
	d.rx = append(d.rx, p...)
	cb := d.onAvail
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (d *fakeDriver) written() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.tx...)
}

func (d *fakeDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type createCall struct {
	index, baud uint
}

// fakeFactory hands out one fakeDriver per Create call.
type fakeFactory struct {
	mu      sync.Mutex
	calls   []createCall
	drivers []*fakeDriver
	err     error
	// prepare, when set, configures each driver before it is returned.
	prepare func(d *fakeDriver)
}

func (f *fakeFactory) Create(index, baud uint, onAvail func()) (Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, createCall{index: index, baud: baud})
	if f.err != nil {
		return nil, f.err
	}
	d := &fakeDriver{onAvail: onAvail, respond: map[string][]byte{}}
	if f.prepare != nil {
		f.prepare(d)
	}
	f.drivers = append(f.drivers, d)
	return d, nil
}

func (f *fakeFactory) last() *fakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drivers[len(f.drivers)-1]
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errNoDevice = errors.New("no such device")
