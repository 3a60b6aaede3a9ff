package routes

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/victorjacobs/go-infinity/bridge"
	"github.com/victorjacobs/go-infinity/schedule"
)

type scheduleSaveRequest struct {
	Weekday []schedule.Period `json:"weekday"`
	Weekend []schedule.Period `json:"weekend"`
}

type okResponse struct {
	Ok bool `json:"ok"`
}

type scheduleModeRequest struct {
	Mode string `json:"mode"`
}

type scheduleModeResponse struct {
	Ok   bool   `json:"ok"`
	Mode string `json:"mode"`
}

// ScheduleGet returns the stored schedule.
func ScheduleGet(b *bridge.Bridge) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, b.Store().Get())
	}
}

// ScheduleSave replaces the weekday and/or weekend period lists. A list
// absent from the body keeps its stored value.
func ScheduleSave(b *bridge.Bridge) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req scheduleSaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})

			return
		}

		if err := b.Store().SetPeriods(req.Weekday, req.Weekend); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})

			return
		}

		writeJSON(w, http.StatusOK, okResponse{Ok: true})
	}
}

// ScheduleMode switches between manual and schedule control. Entering
// schedule mode re-applies the active period on the next scheduler tick.
func ScheduleMode(b *bridge.Bridge) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req scheduleModeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})

			return
		}
		if req.Mode == "" {
			req.Mode = schedule.ModeManual
		}

		if err := b.SetScheduleMode(req.Mode); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

			return
		}

		writeJSON(w, http.StatusOK, scheduleModeResponse{Ok: true, Mode: req.Mode})
	}
}
