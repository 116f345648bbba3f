package serial

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uartd/internal/domain/uart"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/resilience"
)

// ErrNoSuchDevice is returned for an index outside the device table.
var ErrNoSuchDevice = errors.New("no such uart")

// Config describes the device table.
type Config struct {
	// Devices maps index (position) to a path, "pty" or "loopback".
	Devices []string
	// DefaultBaud is used when a device is opened without a baud rate.
	DefaultBaud uint
	// RxBufferSize bounds each device's receive ring.
	RxBufferSize int
}

// DeviceInfo describes one configured device.
type DeviceInfo struct {
	Index   uint   `json:"index"`
	Spec    string `json:"spec"`
	Path    string `json:"path,omitempty"`
	Open    bool   `json:"open"`
	Handles int    `json:"handles"`
	Breaker string `json:"breaker"`
}

// Factory implements uart.DriverFactory.
type Factory struct {
	cfg     Config
	open    OpenFunc
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	devices  map[uint]*device
	breakers []*resilience.Breaker
}

// NewFactory creates a factory over the configured devices.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Factory{
		cfg:      cfg,
		open:     OpenPort,
		logger:   logger,
		devices:  make(map[uint]*device),
		breakers: make([]*resilience.Breaker, len(cfg.Devices)),
	}
	for i := range cfg.Devices {
		settings := resilience.DeviceSettings()
		settings.OnStateChange = func(name string, from, to resilience.State) {
			logger.Warn("device breaker state changed",
				zap.String("uart", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		}
		f.breakers[i] = resilience.New(strconv.Itoa(i), settings)
	}
	return f
}

// WithMetrics adds metrics tracking to the factory
func (f *Factory) WithMetrics(metrics *monitoring.Metrics) *Factory {
	f.metrics = metrics
	return f
}

// WithOpener replaces the port opener.
func (f *Factory) WithOpener(open OpenFunc) *Factory {
	f.open = open
	return f
}

// Create returns a new handle on device index, opening the device if no
// other handle holds it. baud only applies when the device is opened; 0
// selects the configured default.
func (f *Factory) Create(index, baud uint, onAvail func()) (uart.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if index >= uint(len(f.cfg.Devices)) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrNoSuchDevice, index, len(f.cfg.Devices))
	}

	dev, ok := f.devices[index]
	if !ok {
		var err error
		if dev, err = f.openDevice(index, baud); err != nil {
			return nil, err
		}
		f.devices[index] = dev
	} else if cur := uint(dev.baud.Load()); baud != 0 && baud != cur {
		f.logger.Debug("device already open, ignoring requested baud rate",
			zap.Uint("uart", index),
			zap.Uint("requested", baud),
			zap.Uint("baudrate", cur))
	}

	return dev.attach(onAvail), nil
}

func (f *Factory) openDevice(index, baud uint) (*device, error) {
	spec := f.cfg.Devices[index]
	if baud == 0 {
		baud = f.cfg.DefaultBaud
	}

	port, err := resilience.Do(f.breakers[index], func() (Port, error) {
		return f.open(spec, baud)
	})
	if err != nil {
		f.metrics.RecordDeviceError(strconv.Itoa(int(index)), "open")
		return nil, fmt.Errorf("uart %d (%s): %w", index, spec, err)
	}

	dev := newDevice(index, spec, baud, port, f.cfg.RxBufferSize, f)
	f.metrics.DeviceOpened()
	f.logger.Info("device opened",
		zap.Uint("uart", index),
		zap.String("spec", spec),
		zap.String("path", port.Path()),
		zap.Uint("baudrate", baud))

	go dev.readLoop()
	return dev, nil
}

// release drops h and closes its device once no handle is left. The device
// is closed before the lock is released so a later Create reopens cleanly.
func (f *Factory) release(h *handle) {
	dev := h.dev

	f.mu.Lock()
	defer f.mu.Unlock()

	if !dev.detach(h) {
		return
	}
	if f.devices[dev.index] == dev {
		delete(f.devices, dev.index)
	}
	f.closeDevice(dev)
}

func (f *Factory) closeDevice(dev *device) {
	closed, err := dev.shutdown()
	if err != nil {
		f.logger.Warn("device close failed", zap.Uint("uart", dev.index), zap.Error(err))
	}
	if !closed {
		return
	}
	f.metrics.DeviceClosed()
	f.logger.Info("device closed", zap.Uint("uart", dev.index))
}

// Devices describes the device table.
func (f *Factory) Devices() []DeviceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()

	infos := make([]DeviceInfo, 0, len(f.cfg.Devices))
	for i, spec := range f.cfg.Devices {
		info := DeviceInfo{
			Index:   uint(i),
			Spec:    spec,
			Breaker: f.breakers[i].State().String(),
		}
		if dev, ok := f.devices[uint(i)]; ok {
			info.Open = true
			info.Path = dev.port.Path()
			info.Handles = dev.handleCount()
		}
		infos = append(infos, info)
	}
	return infos
}

// Close shuts down every open device. Outstanding handles become inert.
func (f *Factory) Close() error {
	f.mu.Lock()
	devs := make([]*device, 0, len(f.devices))
	for idx, dev := range f.devices {
		devs = append(devs, dev)
		delete(f.devices, idx)
	}
	f.mu.Unlock()

	sort.Slice(devs, func(i, j int) bool { return devs[i].index < devs[j].index })
	for _, dev := range devs {
		f.closeDevice(dev)
	}
	return nil
}
