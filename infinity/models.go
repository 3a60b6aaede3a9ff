package infinity

// Status is the combined thermostat state. Fields are nil until a
// plausible value has been read at least once; after that they hold the
// last known good value even across failed reads.
type Status struct {
	IndoorTemp   *int `json:"indoor_temp"`
	OutdoorTemp  *int `json:"outdoor_temp"`
	HeatSetpoint *int `json:"heat_setpoint"`
	CoolSetpoint *int `json:"cool_setpoint"`
}

// EnergyDay is one daily usage record in kWh, split by consumer.
type EnergyDay struct {
	HPHeat   int `json:"hp_heat"`
	Cooling  int `json:"cooling"`
	ElecHeat int `json:"elec_heat"`
	Fan      int `json:"fan"`
	Reheat   int `json:"reheat"`
}

// Total sums all consumers for the day.
func (d EnergyDay) Total() int {
	return d.HPHeat + d.Cooling + d.ElecHeat + d.Fan + d.Reheat
}

// YearlyEnergy holds the running totals the wall control keeps per year.
type YearlyEnergy struct {
	Current  YearToDate `json:"current"`
	Previous PriorYear  `json:"previous"`
}

// YearToDate is the current year so far, in kWh.
type YearToDate struct {
	HPHeat   int `json:"hp_heat"`
	ElecHeat int `json:"elec_heat"`
	Cooling  int `json:"cooling"`
}

// PriorYear is the previous full year, in kWh.
type PriorYear struct {
	HPHeat   int `json:"hp_heat"`
	ElecHeat int `json:"elec_heat"`
	Cooling  int `json:"cooling"`
	Fan      int `json:"fan"`
}
