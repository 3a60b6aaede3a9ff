package routes

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/victorjacobs/go-infinity/bridge"
	"github.com/victorjacobs/go-infinity/schedule"
)

type setRequest struct {
	Mode           string `json:"mode"`
	Temp           *int   `json:"temp"`
	SwitchToManual bool   `json:"switch_to_manual"`
}

type setResponse struct {
	Ok     bool   `json:"ok"`
	Target int    `json:"target"`
	Mode   string `json:"mode"`
}

// Set queues a setpoint write and returns right away; the write itself
// takes about half a minute. Callers see the target as an optimistic
// value in /api/status until the next poll confirms it.
func Set(b *bridge.Bridge) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req setRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})

			return
		}
		if req.Temp == nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "temp is required"})

			return
		}
		if req.Mode == "" {
			req.Mode = "heat"
		}

		// A manual change takes the thermostat out of schedule control,
		// otherwise the next tick would stomp it.
		if req.SwitchToManual || b.Store().Get().Mode == schedule.ModeSchedule {
			if err := b.SwitchToManual(); err != nil {
				log.Printf("Failed to switch to manual mode: %v", err)
			}
		}

		if err := b.SetSetpointAsync(req.Mode, *req.Temp, nil); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, bridge.ErrQueueFull) {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})

			return
		}

		writeJSON(w, http.StatusOK, setResponse{Ok: true, Target: *req.Temp, Mode: req.Mode})
	}
}
