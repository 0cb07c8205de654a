// Package api exposes the sequencer over HTTP so a browser or script can
// drive the same controls as the terminal editor.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/gorilla/mux"

	"chordclock/debug"
	"chordclock/midi"
	"chordclock/sequencer"
)

// Controller is the part of sequencer.Manager the API drives.
type Controller interface {
	Status() sequencer.Status
	Play()
	Stop()
	SetTempo(bpm float64) error
	SetPattern(p sequencer.Pattern) error
	SetKey(root, scale string) error
	SetEnabled(on bool)
	SetGates(g sequencer.Gates) error

	Steps() []sequencer.ChordStep
	ReplaceSteps(steps []sequencer.ChordStep) []sequencer.ChordStep
	AddStep(s sequencer.ChordStep) sequencer.ChordStep
	UpdateStep(id string, fn func(*sequencer.ChordStep)) (sequencer.ChordStep, error)
	RemoveStep(id string) error
	Generate(ctx context.Context, genre string) ([]sequencer.ChordStep, error)
}

// Recorder supplies the inbound monitor log
type Recorder interface {
	Records() []midi.Record
}

type handler struct {
	ctl     Controller
	monitor Recorder
}

type errorBody struct {
	Error string `json:"error"`
}

// Err writes err as JSON with a status derived from its tag.
func Err(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch ftag.Get(err) {
	case ftag.InvalidArgument:
		status = http.StatusBadRequest
	case ftag.NotFound:
		status = http.StatusNotFound
	}
	msg := fmsg.GetIssue(err)
	if msg == "" {
		msg = err.Error()
	}
	debug.Warn("api", "request failed", "status", status, "err", err)
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Log("api", "encode response: %v", err)
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Wrap(err, fmsg.WithDesc("decode body", "Request body is not valid JSON"),
			ftag.With(ftag.InvalidArgument))
	}
	return nil
}

func (h *handler) handleStateGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handleTempoPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BPM float64 `json:"bpm"`
	}
	if err := decode(r, &body); err != nil {
		Err(w, err)
		return
	}
	if err := h.ctl.SetTempo(body.BPM); err != nil {
		Err(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handlePatternPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pattern sequencer.Pattern `json:"pattern"`
	}
	if err := decode(r, &body); err != nil {
		Err(w, err)
		return
	}
	if err := h.ctl.SetPattern(body.Pattern); err != nil {
		Err(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handleKeyPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Root  string `json:"root"`
		Scale string `json:"scale"`
	}
	if err := decode(r, &body); err != nil {
		Err(w, err)
		return
	}
	if err := h.ctl.SetKey(body.Root, body.Scale); err != nil {
		Err(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handleEnabledPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &body); err != nil {
		Err(w, err)
		return
	}
	h.ctl.SetEnabled(body.Enabled)
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handleGatesPut(w http.ResponseWriter, r *http.Request) {
	var g sequencer.Gates
	if err := decode(r, &g); err != nil {
		Err(w, err)
		return
	}
	if err := h.ctl.SetGates(g); err != nil {
		Err(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.ctl.Play()
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.ctl.Stop()
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

func (h *handler) handleProgressionGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Steps())
}

func (h *handler) handleProgressionPut(w http.ResponseWriter, r *http.Request) {
	var steps []sequencer.ChordStep
	if err := decode(r, &steps); err != nil {
		Err(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.ReplaceSteps(steps))
}

func (h *handler) handleStepPost(w http.ResponseWriter, r *http.Request) {
	step := sequencer.ChordStep{Duration: 4, Active: true}
	if err := decode(r, &step); err != nil {
		Err(w, err)
		return
	}
	step.ID = ""
	writeJSON(w, http.StatusCreated, h.ctl.AddStep(step))
}

// stepPatch holds the fields a PATCH may change; absent fields keep their value.
type stepPatch struct {
	Degree   *int  `json:"degree"`
	Duration *int  `json:"duration"`
	Active   *bool `json:"active"`
}

func (h *handler) handleStepPatch(w http.ResponseWriter, r *http.Request) {
	var patch stepPatch
	if err := decode(r, &patch); err != nil {
		Err(w, err)
		return
	}
	step, err := h.ctl.UpdateStep(mux.Vars(r)["id"], func(s *sequencer.ChordStep) {
		if patch.Degree != nil {
			s.Degree = *patch.Degree
		}
		if patch.Duration != nil {
			s.Duration = *patch.Duration
		}
		if patch.Active != nil {
			s.Active = *patch.Active
		}
	})
	if err != nil {
		Err(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (h *handler) handleStepDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.RemoveStep(mux.Vars(r)["id"]); err != nil {
		Err(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Genre string `json:"genre"`
	}
	if err := decode(r, &body); err != nil {
		Err(w, err)
		return
	}
	steps, err := h.ctl.Generate(r.Context(), body.Genre)
	if err != nil {
		Err(w, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (h *handler) handleGenresGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sequencer.Genres())
}

func (h *handler) handleMonitorGet(w http.ResponseWriter, r *http.Request) {
	records := []midi.Record{}
	if h.monitor != nil {
		records = h.monitor.Records()
	}
	writeJSON(w, http.StatusOK, records)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewHandler routes the control API. monitor may be nil.
func NewHandler(ctl Controller, monitor Recorder) http.Handler {
	h := &handler{
		ctl:     ctl,
		monitor: monitor,
	}

	sr := mux.NewRouter()
	sr.HandleFunc("/state", h.handleStateGet).Methods(http.MethodGet)
	sr.HandleFunc("/tempo", h.handleTempoPut).Methods(http.MethodPut)
	sr.HandleFunc("/pattern", h.handlePatternPut).Methods(http.MethodPut)
	sr.HandleFunc("/key", h.handleKeyPut).Methods(http.MethodPut)
	sr.HandleFunc("/enabled", h.handleEnabledPut).Methods(http.MethodPut)
	sr.HandleFunc("/gates", h.handleGatesPut).Methods(http.MethodPut)
	sr.HandleFunc("/transport/start", h.handleStart).Methods(http.MethodPost)
	sr.HandleFunc("/transport/stop", h.handleStop).Methods(http.MethodPost)

	sr.HandleFunc("/progression", h.handleProgressionGet).Methods(http.MethodGet)
	sr.HandleFunc("/progression", h.handleProgressionPut).Methods(http.MethodPut)
	sr.HandleFunc("/progression/steps", h.handleStepPost).Methods(http.MethodPost)
	sr.HandleFunc("/progression/steps/{id}", h.handleStepPatch).Methods(http.MethodPatch)
	sr.HandleFunc("/progression/steps/{id}", h.handleStepDelete).Methods(http.MethodDelete)
	sr.HandleFunc("/progression/generate", h.handleGenerate).Methods(http.MethodPost)
	sr.HandleFunc("/genres", h.handleGenresGet).Methods(http.MethodGet)

	sr.HandleFunc("/monitor", h.handleMonitorGet).Methods(http.MethodGet)

	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.PathPrefix("/").Handler(sr)
	return r
}
