package bridge

import "github.com/victorjacobs/go-infinity/infinity"

var sensorDefinitions = [...]*sensorConfiguration{
	{
		name:  "Infinity Indoor Temperature",
		class: "temperature",
		unit:  "°F",
		get:   func(snap *Snapshot) any { return intValue(snap.Status.IndoorTemp) },
	},
	{
		name:  "Infinity Outdoor Temperature",
		class: "temperature",
		unit:  "°F",
		get:   func(snap *Snapshot) any { return intValue(snap.Status.OutdoorTemp) },
	},
	{
		name:  "Infinity HP Heat Yesterday",
		class: "energy",
		unit:  "kWh",
		get:   yesterday(func(d infinity.EnergyDay) int { return d.HPHeat }),
	},
	{
		name:  "Infinity Cooling Yesterday",
		class: "energy",
		unit:  "kWh",
		get:   yesterday(func(d infinity.EnergyDay) int { return d.Cooling }),
	},
	{
		name:  "Infinity Electric Heat Yesterday",
		class: "energy",
		unit:  "kWh",
		get:   yesterday(func(d infinity.EnergyDay) int { return d.ElecHeat }),
	},
	{
		name:  "Infinity Fan Yesterday",
		class: "energy",
		unit:  "kWh",
		get:   yesterday(func(d infinity.EnergyDay) int { return d.Fan }),
	},
	{
		name:  "Infinity Energy Yesterday",
		class: "energy",
		unit:  "kWh",
		get:   yesterday(func(d infinity.EnergyDay) int { return d.Total() }),
	},
	{
		name:  "Infinity HP Heat YTD",
		class: "energy",
		unit:  "kWh",
		get:   yearToDate(func(y infinity.YearToDate) int { return y.HPHeat }),
	},
	{
		name:  "Infinity Electric Heat YTD",
		class: "energy",
		unit:  "kWh",
		get:   yearToDate(func(y infinity.YearToDate) int { return y.ElecHeat }),
	},
	{
		name:  "Infinity Cooling YTD",
		class: "energy",
		unit:  "kWh",
		get:   yearToDate(func(y infinity.YearToDate) int { return y.Cooling }),
	},
}

// intValue unwraps an optional reading, nil when there is none yet.
func intValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// yesterday reads a field from the most recent daily energy record.
func yesterday(field func(infinity.EnergyDay) int) func(*Snapshot) any {
	return func(snap *Snapshot) any {
		if len(snap.Daily) == 0 {
			return nil
		}
		return field(snap.Daily[0])
	}
}

// yearToDate reads a field from the current year counters.
func yearToDate(field func(infinity.YearToDate) int) func(*Snapshot) any {
	return func(snap *Snapshot) any {
		if snap.Yearly == nil {
			return nil
		}
		return field(snap.Yearly.Current)
	}
}
