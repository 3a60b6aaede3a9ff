package bridge

import "github.com/victorjacobs/go-infinity/infinity"

// Snapshot is one poll of everything the wall control shows.
type Snapshot struct {
	Status infinity.Status
	Daily  []infinity.EnergyDay
	Yearly *infinity.YearlyEnergy
}

type sensorConfiguration struct {
	name       string
	class      string
	unit       string
	get        func(snap *Snapshot) any
	stateTopic string
}

type setpointJob struct {
	which  string
	target int
	offset int
	done   func(verified bool, err error)
}
