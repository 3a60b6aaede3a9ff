package bridge

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes the last snapshot and the transport counters to
// Prometheus. It never touches the bus on scrape; values come from
// whatever the pollers read last.
type Collector struct {
	bridge *Bridge

	indoorTemp   *prometheus.Desc
	outdoorTemp  *prometheus.Desc
	heatSetpoint *prometheus.Desc
	coolSetpoint *prometheus.Desc
	energyDay    *prometheus.Desc
	busExchanges *prometheus.Desc
	busTimeouts  *prometheus.Desc
	busIOErrors  *prometheus.Desc
}

func NewCollector(b *Bridge) *Collector {
	return &Collector{
		bridge: b,
		indoorTemp: prometheus.NewDesc("infinity_indoor_temperature_fahrenheit",
			"Indoor temperature reported by the thermostat.", nil, nil),
		outdoorTemp: prometheus.NewDesc("infinity_outdoor_temperature_fahrenheit",
			"Outdoor temperature reported by the heat pump.", nil, nil),
		heatSetpoint: prometheus.NewDesc("infinity_heat_setpoint_fahrenheit",
			"Active heat setpoint, including pending writes.", nil, nil),
		coolSetpoint: prometheus.NewDesc("infinity_cool_setpoint_fahrenheit",
			"Active cool setpoint, including pending writes.", nil, nil),
		energyDay: prometheus.NewDesc("infinity_energy_yesterday_kwh",
			"Energy used yesterday, split by consumer.", []string{"consumer"}, nil),
		busExchanges: prometheus.NewDesc("infinity_bus_exchanges_total",
			"Bus exchanges since the serial port was opened.", []string{"kind"}, nil),
		busTimeouts: prometheus.NewDesc("infinity_bus_timeouts_total",
			"Reads with no valid reply within the response window.", nil, nil),
		busIOErrors: prometheus.NewDesc("infinity_bus_io_errors_total",
			"Serial I/O failures.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.indoorTemp
	ch <- c.outdoorTemp
	ch <- c.heatSetpoint
	ch <- c.coolSetpoint
	ch <- c.energyDay
	ch <- c.busExchanges
	ch <- c.busTimeouts
	ch <- c.busIOErrors
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if snap := c.bridge.LastSnapshot(); snap != nil {
		gauge := func(desc *prometheus.Desc, v *int) {
			if v != nil {
				ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(*v))
			}
		}
		heat, cool := c.bridge.EffectiveSetpoints(snap.Status)
		gauge(c.indoorTemp, snap.Status.IndoorTemp)
		gauge(c.outdoorTemp, snap.Status.OutdoorTemp)
		gauge(c.heatSetpoint, heat)
		gauge(c.coolSetpoint, cool)

		if len(snap.Daily) > 0 {
			day := snap.Daily[0]
			consumer := func(name string, v int) {
				ch <- prometheus.MustNewConstMetric(c.energyDay, prometheus.GaugeValue, float64(v), name)
			}
			consumer("hp_heat", day.HPHeat)
			consumer("cooling", day.Cooling)
			consumer("elec_heat", day.ElecHeat)
			consumer("fan", day.Fan)
			consumer("reheat", day.Reheat)
		}
	}

	stats := c.bridge.BusStats()
	ch <- prometheus.MustNewConstMetric(c.busExchanges, prometheus.CounterValue, float64(stats.Reads), "read")
	ch <- prometheus.MustNewConstMetric(c.busExchanges, prometheus.CounterValue, float64(stats.Writes), "write")
	ch <- prometheus.MustNewConstMetric(c.busTimeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.busIOErrors, prometheus.CounterValue, float64(stats.IOErrors))
}
