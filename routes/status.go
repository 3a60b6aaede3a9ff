package routes

import (
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/victorjacobs/go-infinity/bridge"
	"github.com/victorjacobs/go-infinity/schedule"
)

type statusResponse struct {
	IndoorTemp       *int    `json:"indoor_temp"`
	OutdoorTemp      *int    `json:"outdoor_temp"`
	HeatSetpoint     *int    `json:"heat_setpoint"`
	CoolSetpoint     *int    `json:"cool_setpoint"`
	EnergyYesterday  *int    `json:"energy_yesterday"`
	EnergyTwoDays    *int    `json:"energy_2days"`
	EnergyYearToDate *int    `json:"energy_ytd"`
	ScheduleMode     string  `json:"schedule_mode"`
	ActivePeriod     *string `json:"active_period"`
	ActivePeriodHeat *int    `json:"active_period_heat"`
	ActivePeriodCool *int    `json:"active_period_cool"`
	NextTransition   *string `json:"next_transition"`
}

// Status reports thermostat state, energy usage and schedule position in
// one payload. Readings come from the last poll so the handler stays off
// the slow bus; before the first successful poll it reads live.
func Status(b *bridge.Bridge) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		snap := b.LastSnapshot()
		if snap == nil {
			var err error
			if snap, err = b.ReadSnapshot(); err != nil {
				log.Printf("Failed to read status: %v", err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})

				return
			}
		}

		heat, cool := b.EffectiveSetpoints(snap.Status)
		resp := statusResponse{
			IndoorTemp:   snap.Status.IndoorTemp,
			OutdoorTemp:  snap.Status.OutdoorTemp,
			HeatSetpoint: heat,
			CoolSetpoint: cool,
		}

		if len(snap.Daily) > 0 {
			total := snap.Daily[0].Total()
			resp.EnergyYesterday = &total
		}
		if len(snap.Daily) > 1 {
			total := snap.Daily[1].Total()
			resp.EnergyTwoDays = &total
		}
		if snap.Yearly != nil {
			ytd := snap.Yearly.Current.HPHeat + snap.Yearly.Current.ElecHeat + snap.Yearly.Current.Cooling
			resp.EnergyYearToDate = &ytd
		}

		now := time.Now()
		sched := b.Store().Get()
		resp.ScheduleMode = sched.Mode
		if active := schedule.ActivePeriod(sched, now); active != nil {
			resp.ActivePeriod = &active.Label
			resp.ActivePeriodHeat = &active.Heat
			resp.ActivePeriodCool = &active.Cool
		}
		if next := schedule.NextTransition(sched, now); next != "" {
			resp.NextTransition = &next
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
