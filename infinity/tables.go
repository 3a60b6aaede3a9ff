package infinity

import "time"

// Register tables, as 3 byte IDs in hex. The set is closed: these are the
// tables the wall control and heat pump are known to answer for.
const (
	// TableComfortProfile holds the zone 1 comfort profile on the
	// thermostat, including the active heat and cool setpoints.
	TableComfortProfile = "00400a"
	// TableDailyEnergy holds per day energy usage records, most recent
	// day first.
	TableDailyEnergy = "00460e"
	// TableYearlyEnergy holds year to date and previous year energy
	// totals.
	TableYearlyEnergy = "004610"
	// TableAirHandler holds heat pump state, including a copy of the
	// indoor temperature.
	TableAirHandler = "000304"
	// TableOutdoorUnit holds the outdoor air temperature as measured by
	// the heat pump.
	TableOutdoorUnit = "00061f"
	// TableThermostatState holds thermostat state, including a copy of
	// the outdoor temperature.
	TableThermostatState = "004901"
	// TableThermostatZone holds per zone thermostat readings, including
	// the authoritative indoor temperature.
	TableThermostatZone = "004907"
)

// Byte offsets into table payloads.
const (
	// HeatSetpointByte and CoolSetpointByte index into the comfort
	// profile (TableComfortProfile).
	HeatSetpointByte = 25
	CoolSetpointByte = 26

	indoorTempByte      = 60 // TableThermostatZone
	indoorFallbackByte  = 10 // TableAirHandler
	outdoorTempByte     = 32 // TableOutdoorUnit
	outdoorFallbackByte = 16 // TableThermostatState
)

// Setpoint limits in degrees Fahrenheit, matching what the wall control
// itself allows.
const (
	HeatSetpointMin = 55
	HeatSetpointMax = 85
	CoolSetpointMin = 60
	CoolSetpointMax = 90
)

// Setpoint write behavior. The thermostat periodically rewrites its own
// comfort profile, so a single write tends not to stick; the write is
// repeated over half a minute and verified afterwards.
const (
	defaultWriteRounds   = 6
	defaultWriteInterval = 5 * time.Second
)

// Daily energy records are fixed width.
const energyRecordLen = 10

// yearlyTableMinLen is the shortest yearly energy payload that still
// contains both year blocks.
const yearlyTableMinLen = 37
