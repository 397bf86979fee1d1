// SPDX-License-Identifier: GPL-3.0-or-later

package mgmtapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/device"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simulation"
	"github.com/go-chi/chi/v5"
)

// maxBodySize is the maximum size of a request body.
const maxBodySize = 1 << 20

// DeviceResponse is the body returned for a single device.
type DeviceResponse struct {
	device.Info
	EngineErrors uint64 `json:"engineErrors"`
}

// WriteRequest is the body of an object write.
type WriteRequest struct {
	Value json.RawMessage `json:"value"`
	Force bool            `json:"force"`
}

// ProfileRequest is the body of a network profile change. The
// delay and drop fields are only used by the custom profile and
// select it when the profile name is omitted.
type ProfileRequest struct {
	Profile         config.ProfileName `json:"profile"`
	MinDelayMS      *float64           `json:"min_delay_ms"`
	MaxDelayMS      *float64           `json:"max_delay_ms"`
	DropProbability *float64           `json:"drop_probability"`
}

// StatusResponse is the body of the liveness probe.
type StatusResponse struct {
	Status string `json:"status"`
}

func (a *API) live(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, http.StatusOK, StatusResponse{Status: "alive"})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	health := a.backend.Health()
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	a.writeJSON(w, r, status, health)
}

func (a *API) listDevices(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, http.StatusOK, a.backend.Health())
}

func (a *API) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	dev, err := a.backend.Device(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, DeviceResponse{Info: dev.Info(), EngineErrors: dev.EngineErrors()})
}

func (a *API) listObjects(w http.ResponseWriter, r *http.Request) {
	id, err := deviceID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views, err := a.backend.Objects(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, views)
}

func (a *API) readObject(w http.ResponseWriter, r *http.Request) {
	id, key, err := objectRef(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.backend.ReadObject(id, key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, view)
}

func (a *API) writeObject(w http.ResponseWriter, r *http.Request) {
	id, key, err := objectRef(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req WriteRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(req.Value) <= 0 {
		a.writeError(w, r, fmt.Errorf("%w: missing value", simerr.ErrInvalidValue))
		return
	}
	var value any
	if err := decodeJSON(req.Value, &value); err != nil {
		a.writeError(w, r, err)
		return
	}
	view, err := a.backend.WriteObject(r.Context(), id, key, value, req.Force)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, view)
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	id, err := deviceID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	info, err := a.backend.Profile(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, info)
}

func (a *API) putProfile(w http.ResponseWriter, r *http.Request) {
	id, err := deviceID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req ProfileRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	name, custom, err := req.resolve()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.backend.SetProfile(id, name, custom); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.getProfile(w, r)
}

// resolve returns the profile name and the custom parameters.
func (req *ProfileRequest) resolve() (config.ProfileName, *config.NetworkCustom, error) {
	hasCustom := req.MinDelayMS != nil || req.MaxDelayMS != nil || req.DropProbability != nil
	name := req.Profile
	if name == "" && hasCustom {
		name = config.ProfileCustom
	}
	name, err := config.ParseProfileName(string(name))
	if err != nil {
		return "", nil, err
	}
	if name != config.ProfileCustom {
		return name, nil, nil
	}
	custom := &config.NetworkCustom{}
	if req.MinDelayMS != nil {
		custom.MinDelayMS = *req.MinDelayMS
	}
	if req.MaxDelayMS != nil {
		custom.MaxDelayMS = *req.MaxDelayMS
	}
	if req.DropProbability != nil {
		custom.DropProbability = *req.DropProbability
	}
	return name, custom, nil
}

func (a *API) startSimulation(w http.ResponseWriter, r *http.Request) {
	id, key, err := objectRef(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	params, err := decodeParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	info, err := a.backend.StartSimulation(id, key, params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusCreated, info)
}

// decodeParams decodes the simulation parameters over the defaults
// of the requested mode.
func decodeParams(r *http.Request) (simulation.Params, error) {
	data, err := readBody(r)
	if err != nil {
		return simulation.Params{}, err
	}
	var mode struct {
		Mode simulation.Mode `json:"mode"`
	}
	if err := json.Unmarshal(data, &mode); err != nil {
		return simulation.Params{}, fmt.Errorf("%w: %w", simerr.ErrInvalidValue, err)
	}
	params := simulation.DefaultParams(mode.Mode)
	if err := decodeJSON(data, &params); err != nil {
		return simulation.Params{}, err
	}
	return params, nil
}

func (a *API) getSimulation(w http.ResponseWriter, r *http.Request) {
	id, key, err := objectRef(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	info, err := a.backend.Simulation(id, key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, info)
}

func (a *API) stopSimulation(w http.ResponseWriter, r *http.Request) {
	id, key, err := objectRef(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.backend.StopSimulation(id, key); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) resumeSimulation(w http.ResponseWriter, r *http.Request) {
	id, key, err := objectRef(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	info, err := a.backend.ResumeSimulation(id, key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, info)
}

func (a *API) listSimulations(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, http.StatusOK, a.backend.Simulations())
}

func (a *API) createSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := a.backend.Snapshot()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusCreated, info)
}

func (a *API) listSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := a.backend.Snapshots()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, infos)
}

func (a *API) restoreSnapshot(w http.ResponseWriter, r *http.Request) {
	result, err := a.backend.RestoreSnapshot(chi.URLParam(r, "snapshotId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, result)
}

func (a *API) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := a.backend.DeleteSnapshot(chi.URLParam(r, "snapshotId")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) reset(w http.ResponseWriter, r *http.Request) {
	result, err := a.backend.Reset()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, result)
}

func deviceID(r *http.Request) (uint32, error) {
	raw := chi.URLParam(r, "deviceId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid device id %q", simerr.ErrInvalidValue, raw)
	}
	return uint32(id), nil
}

func objectRef(r *http.Request) (uint32, objtable.Key, error) {
	id, err := deviceID(r)
	if err != nil {
		return 0, objtable.Key{}, err
	}
	key, err := objtable.ParseKey(chi.URLParam(r, "type"), chi.URLParam(r, "instance"))
	if err != nil {
		return 0, objtable.Key{}, err
	}
	return id, key, nil
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", simerr.ErrInvalidValue, err)
	}
	return data, nil
}

func decodeBody(r *http.Request, v any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	return decodeJSON(data, v)
}

// decodeJSON strictly decodes a JSON document keeping numbers
// as [json.Number] until they are coerced to the object type.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %w", simerr.ErrInvalidValue, err)
	}
	return nil
}
