package infinity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/victorjacobs/go-infinity/retry"
)

// TableReadWriter is the transport surface the device layer needs. *Bus
// implements it.
type TableReadWriter interface {
	ReadTable(device uint16, table string) ([]byte, error)
	WriteTable(device uint16, table string, data []byte) error
}

var errShortProfile = errors.New("comfort profile response too short")

// Device reads and writes thermostat state over a bus. Reads keep a last
// known good copy per field: the bus only answers a fraction of requests,
// and a stale temperature beats a blank panel. There is deliberately no
// staleness cutoff, values persist until a plausible fresh one arrives.
type Device struct {
	bus TableReadWriter
	log *zap.SugaredLogger

	profileRetry  retry.Policy
	writeRounds   int
	writeInterval time.Duration

	mu           sync.Mutex
	cached       Status
	cachedDaily  []EnergyDay
	cachedYearly *YearlyEnergy
}

// NewDevice wraps bus in a device. A nil log disables logging.
func NewDevice(bus TableReadWriter, log *zap.SugaredLogger) *Device {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Device{
		bus: bus,
		log: log,
		profileRetry: retry.Policy{
			MaxAttempts: 3,
			Backoff:     500 * time.Millisecond,
		},
		writeRounds:   defaultWriteRounds,
		writeInterval: defaultWriteInterval,
	}
}

// ReadComfortProfile reads the zone 1 comfort profile, retrying because
// the thermostat regularly ignores the first request. The returned slice
// is always long enough to index the setpoint bytes.
func (d *Device) ReadComfortProfile() ([]byte, error) {
	var profile []byte
	err := retry.Do(d.profileRetry, func() error {
		data, err := d.bus.ReadTable(Thermostat, TableComfortProfile)
		if err != nil {
			return err
		}
		if len(data) <= CoolSetpointByte {
			return errShortProfile
		}
		profile = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading comfort profile: %w", err)
	}
	return profile, nil
}

// GetStatus reads temperatures and setpoints, each field from its primary
// table with a fallback table behind it, and folds the results into the
// cache. The returned status is the cache, so fields a quiet bus did not
// answer for keep their previous value. The error reports transport
// failures on the temperature reads; the status is valid either way.
func (d *Device) GetStatus() (Status, error) {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	indoor, err := d.readByteAt(Thermostat, TableThermostatZone, indoorTempByte)
	record(err)
	if !plausible(indoor) {
		indoor, err = d.readByteAt(HeatPump, TableAirHandler, indoorFallbackByte)
		record(err)
	}

	outdoor, err := d.readByteAt(HeatPump, TableOutdoorUnit, outdoorTempByte)
	record(err)
	if !plausible(outdoor) {
		outdoor, err = d.readByteAt(Thermostat, TableThermostatState, outdoorFallbackByte)
		record(err)
	}

	var heat, cool *int
	if profile, err := d.ReadComfortProfile(); err == nil {
		h, c := int(profile[HeatSetpointByte]), int(profile[CoolSetpointByte])
		heat, cool = &h, &c
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	updateCached(&d.cached.IndoorTemp, indoor)
	updateCached(&d.cached.OutdoorTemp, outdoor)
	updateCached(&d.cached.HeatSetpoint, heat)
	updateCached(&d.cached.CoolSetpoint, cool)
	return d.cached, firstErr
}

// GetDailyEnergy reads the daily usage table and decodes it into one
// record per day, most recent first. A failed or empty read returns the
// cached records from the last good read.
func (d *Device) GetDailyEnergy() ([]EnergyDay, error) {
	data, err := d.bus.ReadTable(Thermostat, TableDailyEnergy)
	if err != nil || len(data) < energyRecordLen {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.cachedDaily, err
	}

	days := make([]EnergyDay, 0, len(data)/energyRecordLen)
	for i := 0; i+energyRecordLen <= len(data); i += energyRecordLen {
		r := data[i : i+energyRecordLen]
		days = append(days, EnergyDay{
			HPHeat:   int(r[0]),
			Cooling:  int(r[1]),
			ElecHeat: int(r[2]),
			Fan:      int(r[3]),
			Reheat:   int(r[4]),
		})
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cachedDaily = days
	return days, nil
}

// GetYearlyEnergy reads the yearly totals table. A failed or truncated
// read returns the cached totals from the last good read, nil if there
// never was one.
func (d *Device) GetYearlyEnergy() (*YearlyEnergy, error) {
	data, err := d.bus.ReadTable(Thermostat, TableYearlyEnergy)
	if err != nil || len(data) < yearlyTableMinLen {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.cachedYearly, err
	}

	yearly := &YearlyEnergy{
		Current: YearToDate{
			HPHeat:   int(beUint16At(data, 3)),
			ElecHeat: int(beUint16At(data, 7)),
			Cooling:  int(beUint16At(data, 11)),
		},
		Previous: PriorYear{
			Cooling:  int(beUint16At(data, 19)),
			HPHeat:   int(beUint16At(data, 23)),
			ElecHeat: int(beUint16At(data, 27)),
			Fan:      int(beUint16At(data, 35)),
		},
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cachedYearly = yearly
	return yearly, nil
}

// SetSetpoint writes target into the comfort profile at byteOffset
// (HeatSetpointByte or CoolSetpointByte) and verifies it stuck. The
// thermostat rewrites the profile on its own schedule, so the write is
// repeated for writeRounds rounds with a fresh read each round; the call
// blocks for about half a minute. Returns whether the final readback
// matched. An error means the current profile could not be read at all
// and nothing was written.
func (d *Device) SetSetpoint(target int, byteOffset int) (bool, error) {
	profile, err := d.ReadComfortProfile()
	if err != nil {
		return false, err
	}
	current := profile[byteOffset]
	if int(current) == target {
		return true, nil
	}
	d.log.Infof("Changing setpoint %d -> %d", current, target)

	for round := 1; round <= d.writeRounds; round++ {
		data, err := d.bus.ReadTable(Thermostat, TableComfortProfile)
		if err == nil && data != nil {
			// The profile repeats the setpoint once per schedule
			// period; every copy has to change or the thermostat
			// restores the old value from one of them.
			modified := make([]byte, len(data))
			copy(modified, data)
			for i, b := range modified {
				if b == current {
					modified[i] = byte(target)
				}
			}
			err = d.bus.WriteTable(Thermostat, TableComfortProfile, modified)
		}
		if err != nil {
			d.log.Warnf("Setpoint write round %d failed: %v", round, err)
		}
		time.Sleep(d.writeInterval)
	}

	profile, err = d.ReadComfortProfile()
	if err != nil {
		d.log.Warnf("Setpoint verification failed: %v", err)
		return false, nil
	}
	if got := int(profile[byteOffset]); got != target {
		d.log.Warnf("Setpoint did not stick: read back %d, expected %d", got, target)
		return false, nil
	}
	d.log.Infof("Setpoint confirmed at %d", target)
	return true, nil
}

// readByteAt reads one byte of a table as an int. Returns nil when the
// device did not answer or the payload is too short to hold the offset.
func (d *Device) readByteAt(device uint16, table string, offset int) (*int, error) {
	data, err := d.bus.ReadTable(device, table)
	if err != nil {
		return nil, err
	}
	if len(data) <= offset {
		return nil, nil
	}
	v := int(data[offset])
	return &v, nil
}

// plausible filters out the two values a flaky read produces: no answer
// and a zeroed byte.
func plausible(v *int) bool {
	return v != nil && *v != 0
}

// updateCached replaces the cache slot only with plausible values.
func updateCached(slot **int, fresh *int) {
	if plausible(fresh) {
		*slot = fresh
	}
}

// beUint16At decodes a big endian uint16, 0 when the span would overrun.
func beUint16At(data []byte, offset int) uint16 {
	if offset+2 > len(data) {
		return 0
	}
	return binary.BigEndian.Uint16(data[offset:])
}
