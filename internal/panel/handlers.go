package panel

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"goldenbatch/internal/params"
	"goldenbatch/internal/simulation"
	"goldenbatch/internal/types"
)

// parametersView is the body of GET /v1/parameters.
type parametersView struct {
	Values types.ParameterSet      `json:"values"`
	Bounds []types.ParameterBounds `json:"bounds"`
}

// setParameterRequest carries a string or number; it is decoded lazily so
// that the store, not the decoder, decides how the value is coerced.
type setParameterRequest struct {
	Value json.RawMessage `json:"value" validate:"required"`
}

// outcomeView adds the display fields to an outcome.
type outcomeView struct {
	types.Outcome
	Loading    bool   `json:"loading"`
	StatusText string `json:"status_text"`
}

func newOutcomeView(o types.Outcome) outcomeView {
	return outcomeView{Outcome: o, Loading: o.Loading(), StatusText: o.StatusText()}
}

// HandleGetParameters returns the current values and the advisory bounds.
func (s *Server) HandleGetParameters(w http.ResponseWriter, r *http.Request) {
	Data(w, r, http.StatusOK, parametersView{
		Values: s.Params.Snapshot(),
		Bounds: s.Params.Bounds(),
	})
}

// HandleSetParameter updates one parameter. Unparseable values become 0.
func (s *Server) HandleSetParameter(w http.ResponseWriter, r *http.Request) {
	name := types.ParameterName(chi.URLParam(r, "name"))

	var req setParameterRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.Validator.ValidateStruct(req); err != nil {
		Error(w, r, err)
		return
	}

	raw, err := decodeValue(req.Value)
	if err != nil {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMalformedBody, "invalid value", err))
		return
	}

	values, err := s.Params.Set(name, raw)
	if err != nil {
		if errors.Is(err, params.ErrUnknownParameter) {
			Error(w, r, types.NewAppError(types.ErrCodeNotFoundParameter,
				"unknown parameter: "+string(name), err))
			return
		}
		Error(w, r, err)
		return
	}

	types.LoggerFromContext(r.Context()).Info("parameter updated",
		"name", string(name),
		"value", string(req.Value),
	)
	Data(w, r, http.StatusOK, parametersView{Values: values, Bounds: s.Params.Bounds()})
}

// HandleResetParameters restores the session defaults.
func (s *Server) HandleResetParameters(w http.ResponseWriter, r *http.Request) {
	values := s.Params.Reset()
	Data(w, r, http.StatusOK, parametersView{Values: values, Bounds: s.Params.Bounds()})
}

// HandleStartSimulation triggers a run and returns Attempting(0) with 202.
func (s *Server) HandleStartSimulation(w http.ResponseWriter, r *http.Request) {
	out, err := s.Simulations.Start(r.Context())
	if err != nil {
		if errors.Is(err, simulation.ErrSimulationInProgress) {
			appErr := types.NewAppError(types.ErrCodeConflictSimulationRunning,
				"a simulation is already running", err)
			appErr.Details = map[string]any{"run_id": out.RunID, "attempt": out.Attempt}
			Error(w, r, appErr)
			return
		}
		Error(w, r, err)
		return
	}
	Data(w, r, http.StatusAccepted, newOutcomeView(out))
}

// HandleCurrentSimulation returns the latest outcome.
func (s *Server) HandleCurrentSimulation(w http.ResponseWriter, r *http.Request) {
	Data(w, r, http.StatusOK, newOutcomeView(s.Simulations.Outcome()))
}

// HandleCancelSimulation stops the active run, if any.
func (s *Server) HandleCancelSimulation(w http.ResponseWriter, r *http.Request) {
	canceled := s.Simulations.Cancel()
	Data(w, r, http.StatusOK, map[string]any{
		"canceled": canceled,
		"outcome":  newOutcomeView(s.Simulations.Outcome()),
	})
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
