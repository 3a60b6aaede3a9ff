package infinity

import (
	"sync"

	"go.uber.org/zap"
)

// BusCloser is what the manager needs from a transport.
type BusCloser interface {
	TableReadWriter
	Close() error
}

// OpenFunc dials a bus. The manager calls it lazily and again after
// tearing a failed bus down.
type OpenFunc func() (BusCloser, error)

// Manager owns the bus and the device on top of it. Callers never hold a
// device across calls; they borrow one through WithDevice, which also
// serializes access so a slow setpoint write and a status poll cannot
// interleave on the half duplex line.
type Manager struct {
	open OpenFunc
	log  *zap.SugaredLogger

	mu  sync.Mutex
	bus BusCloser
	dev *Device
}

// NewManager returns a manager that dials through open. A nil log
// disables logging.
func NewManager(open OpenFunc, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{open: open, log: log}
}

// SerialOpener returns an OpenFunc for a serial port, discovering the
// first USB adapter when portName is empty.
func SerialOpener(portName string, baudRate int) OpenFunc {
	return func() (BusCloser, error) {
		name := portName
		if name == "" {
			var err error
			if name, err = FindPort(); err != nil {
				return nil, err
			}
		}
		return OpenBus(name, baudRate)
	}
}

// WithDevice runs fn against a live device. When fn reports an error the
// bus is assumed bad: it is closed, reopened and fn runs once more on the
// fresh device. Serialized, so concurrent callers queue.
func (m *Manager) WithDevice(fn func(*Device) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dev, err := m.device()
	if err != nil {
		return err
	}
	err = fn(dev)
	if err == nil {
		return nil
	}
	m.log.Warnf("Device call failed, reopening bus: %v", err)

	m.teardown()
	dev, err = m.device()
	if err != nil {
		return err
	}
	return fn(dev)
}

// BusStats reports transport counters when the bus is the real serial
// implementation; zero value otherwise.
func (m *Manager) BusStats() BusStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bus.(*Bus); ok {
		return b.Stats()
	}
	return BusStats{}
}

// PortName reports the serial port of the current bus, empty when not
// connected yet.
func (m *Manager) PortName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bus.(*Bus); ok {
		return b.Name()
	}
	return ""
}

// Close tears the current bus down. The next WithDevice dials again.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardown()
}

// device returns the current device, dialing first when there is none.
// Caller holds m.mu.
func (m *Manager) device() (*Device, error) {
	if m.dev != nil {
		return m.dev, nil
	}
	bus, err := m.open()
	if err != nil {
		return nil, err
	}
	m.bus = bus
	m.dev = NewDevice(bus, m.log)
	return m.dev, nil
}

// teardown closes and forgets the current bus. Caller holds m.mu.
func (m *Manager) teardown() {
	if m.bus == nil {
		return
	}
	if err := m.bus.Close(); err != nil {
		m.log.Warnf("Closing bus: %v", err)
	}
	m.bus, m.dev = nil, nil
}
