package infinity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is what the ABCD bus runs at.
const DefaultBaudRate = 38400

const (
	// responseWindow bounds how long a read waits for a valid reply.
	responseWindow = 2 * time.Second
	// pollTimeout is the per chunk serial read timeout inside the window.
	pollTimeout = 100 * time.Millisecond
	// writeSettle gives the line time to drain after a write frame.
	writeSettle = 50 * time.Millisecond
	// responseHeaderLen is the table header prefixed to read replies,
	// stripped before data is returned.
	responseHeaderLen = 6
)

// ErrNoAdapter is returned when no USB serial adapter can be found.
var ErrNoAdapter = errors.New("no usb serial adapter found")

// Bus is the serial transport to the ABCD bus. The bus is half duplex
// with a single wire pair, so every exchange holds one lock for its full
// duration; concurrent callers queue up behind it.
type Bus struct {
	mu   sync.Mutex
	port serial.Port
	name string

	window time.Duration
	settle time.Duration

	reads    atomic.Uint64
	writes   atomic.Uint64
	timeouts atomic.Uint64
	ioErrors atomic.Uint64
}

// BusStats is a snapshot of transport counters since the bus was opened.
type BusStats struct {
	Reads    uint64
	Writes   uint64
	Timeouts uint64
	IOErrors uint64
}

// OpenBus opens portName at baudRate (DefaultBaudRate when 0) in the
// 8N1 framing the bus uses.
func OpenBus(portName string, baudRate int) (*Bus, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %v: %w", portName, err)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("setting read timeout on %v: %w", portName, err)
	}
	return NewBusFromPort(port, portName), nil
}

// NewBusFromPort wraps an already opened port. The port must have a
// short read timeout set, otherwise reads block past the response window.
func NewBusFromPort(port serial.Port, name string) *Bus {
	return &Bus{
		port:   port,
		name:   name,
		window: responseWindow,
		settle: writeSettle,
	}
}

// Name returns the port name the bus was opened on.
func (b *Bus) Name() string {
	return b.name
}

// Close closes the underlying port.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}

// Stats returns a snapshot of the transport counters.
func (b *Bus) Stats() BusStats {
	return BusStats{
		Reads:    b.reads.Load(),
		Writes:   b.writes.Load(),
		Timeouts: b.timeouts.Load(),
		IOErrors: b.ioErrors.Load(),
	}
}

// ReadTable requests a register table from device and returns its payload
// with the response header stripped. Returns nil with a nil error when no
// valid reply arrives within the response window; the bus is often quiet
// and that is not a transport failure.
func (b *Bus) ReadTable(device uint16, table string) ([]byte, error) {
	tableID, err := hex.DecodeString(table)
	if err != nil {
		return nil, fmt.Errorf("bad table ID %q: %w", table, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.reads.Add(1)
	if err := b.exchangeStart(BuildFrame(device, SAM, OpRead, tableID)); err != nil {
		return nil, fmt.Errorf("requesting table %v from %#04x: %w", table, device, err)
	}

	var buf []byte
	chunk := make([]byte, 512)
	deadline := time.Now().Add(b.window)
	for time.Now().Before(deadline) {
		n, err := b.port.Read(chunk)
		if err != nil {
			b.ioErrors.Add(1)
			return nil, fmt.Errorf("reading table %v from %#04x: %w", table, device, err)
		}
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if resp := ParseResponse(buf, device, tableID); len(resp) >= responseHeaderLen {
			return resp[responseHeaderLen:], nil
		}
	}
	b.timeouts.Add(1)
	return nil, nil
}

// WriteTable writes data to a register table on device. The reply is not
// waited for; whether the write stuck is the caller's problem to verify.
func (b *Bus) WriteTable(device uint16, table string, data []byte) error {
	tableID, err := hex.DecodeString(table)
	if err != nil {
		return fmt.Errorf("bad table ID %q: %w", table, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.writes.Add(1)
	payload := make([]byte, 0, len(tableID)+3+len(data))
	payload = append(payload, tableID...)
	payload = append(payload, 0x00, 0x00, 0x00)
	payload = append(payload, data...)
	if err := b.exchangeStart(BuildFrame(device, SAM, OpWrite, payload)); err != nil {
		return fmt.Errorf("writing table %v to %#04x: %w", table, device, err)
	}
	time.Sleep(b.settle)
	return nil
}

// exchangeStart flushes stale input and sends frame. Leftover bytes from
// an earlier exchange would otherwise satisfy the next parse.
func (b *Bus) exchangeStart(frame []byte) error {
	if err := b.port.ResetInputBuffer(); err != nil {
		b.ioErrors.Add(1)
		return err
	}
	if _, err := b.port.Write(frame); err != nil {
		b.ioErrors.Add(1)
		return err
	}
	return nil
}

// FindPort returns the device path of the first USB serial adapter.
func FindPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerating serial ports: %w", err)
	}
	for _, port := range ports {
		if port.IsUSB {
			return port.Name, nil
		}
	}
	return "", ErrNoAdapter
}

// ListPorts returns all serial ports with a short description, USB
// adapters first.
func ListPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %w", err)
	}
	var usb, rest []string
	for _, port := range ports {
		switch {
		case port.IsUSB:
			desc := strings.TrimSpace(port.Product)
			if desc == "" {
				desc = fmt.Sprintf("USB %v:%v", port.VID, port.PID)
			}
			usb = append(usb, fmt.Sprintf("%v\t%v", port.Name, desc))
		default:
			rest = append(rest, port.Name)
		}
	}
	return append(usb, rest...), nil
}
