package serial

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/creack/pty"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Device specs that do not name a path.
const (
	SpecPTY      = "pty"
	SpecLoopback = "loopback"
)

// Port is an opened device.
type Port interface {
	io.ReadWriteCloser
	SetBaudRate(bps uint) error
	// Path is the device path a terminal program can open, if any.
	Path() string
}

// OpenFunc opens the device named by spec at the given baud rate.
type OpenFunc func(spec string, baud uint) (Port, error)

// OpenPort is the default OpenFunc.
func OpenPort(spec string, baud uint) (Port, error) {
	switch spec {
	case SpecPTY:
		return openPTY()
	case SpecLoopback:
		return newLoopback(), nil
	default:
		return openSerial(spec, baud)
	}
}

func serialMode(baud uint) *serial.Mode {
	return &serial.Mode{
		BaudRate: int(baud),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

type serialPort struct {
	serial.Port
	path string
}

func openSerial(path string, baud uint) (*serialPort, error) {
	port, err := serial.Open(path, serialMode(baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &serialPort{Port: port, path: path}, nil
}

func (p *serialPort) SetBaudRate(bps uint) error {
	return p.SetMode(serialMode(bps))
}

func (p *serialPort) Path() string { return p.path }

// ptyPort is the master side of a pseudo-terminal. The slave stays open so
// the master does not see EIO while no terminal program is attached.
type ptyPort struct {
	*os.File
	slave *os.File
}

func openPTY() (*ptyPort, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set pty raw mode: %w", err)
	}
	return &ptyPort{File: master, slave: slave}, nil
}

// SetBaudRate is a no-op: a pty has no line speed.
func (p *ptyPort) SetBaudRate(uint) error { return nil }

func (p *ptyPort) Path() string { return p.slave.Name() }

// Close closes the slave first so a blocked master read returns EIO.
func (p *ptyPort) Close() error {
	err := p.slave.Close()
	if merr := p.File.Close(); err == nil {
		err = merr
	}
	return err
}

// loopback echoes writes back to its reader.
type loopback struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newLoopback() *loopback {
	l := &loopback{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.buf) == 0 && !l.closed {
		l.cond.Wait()
	}
	if l.closed {
		return 0, io.EOF
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

func (l *loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, io.ErrClosedPipe
	}
	l.buf = append(l.buf, p...)
	l.cond.Broadcast()
	return len(p), nil
}

func (l *loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.cond.Broadcast()
	return nil
}

func (l *loopback) SetBaudRate(uint) error { return nil }

func (l *loopback) Path() string { return "" }
