package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-shelly/internal/device"
	"github.com/nerrad567/gray-logic-shelly/internal/shelly"
)

// statusTimeout bounds a live status fetch from a device.
const statusTimeout = 10 * time.Second

// addDeviceRequest is the request body for POST /devices.
type addDeviceRequest struct {
	Type string `json:"type" validate:"required,max=32"`
	ID   string `json:"id" validate:"required,max=64"`
	Host string `json:"host" validate:"omitempty,ip|hostname"`
}

// deviceListResponse is the response body for GET /devices.
type deviceListResponse struct {
	Devices []device.Snapshot `json:"devices"`
	Count   int               `json:"count"`
}

// modelListResponse is the response body for GET /models.
type modelListResponse struct {
	Models []device.Model `json:"models"`
	Count  int            `json:"count"`
}

// deviceStatusResponse is the response body for GET /devices/{type}/{id}/status.
type deviceStatusResponse struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Status map[string]any `json:"status"`
}

// snapshotter is implemented by devices that can describe themselves.
type snapshotter interface {
	Snapshot() device.Snapshot
}

// statusFetcher is implemented by devices reachable over HTTP.
type statusFetcher interface {
	Status(ctx context.Context) (map[string]any, error)
}

// snapshotOf returns the device's full snapshot, or its identity alone.
func snapshotOf(d shelly.Device) device.Snapshot {
	if s, ok := d.(snapshotter); ok {
		return s.Snapshot()
	}
	return device.Snapshot{Type: d.Type(), ID: d.ID(), Host: d.Host()}
}

// handleListDevices returns every registered device ordered by identity.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Devices()
	resp := deviceListResponse{
		Devices: make([]device.Snapshot, 0, len(devices)),
		Count:   len(devices),
	}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, snapshotOf(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddDevice creates a device through the factory and registers it.
func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if _, err := device.Lookup(req.Type); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if _, exists := s.registry.Get(req.Type, req.ID); exists {
		writeConflict(w, "device already registered")
		return
	}

	d := s.registry.CreateDevice(req.Type, req.ID, req.Host)
	if d == nil {
		writeValidationError(w, "unsupported device type: "+req.Type)
		return
	}

	if err := s.registry.Add(d); err != nil {
		if errors.Is(err, shelly.ErrClosed) {
			writeUnavailable(w, "device registry is shut down")
			return
		}
		s.logger.Error("adding device failed", "type", req.Type, "id", req.ID, "error", err)
		writeInternalError(w, "failed to add device")
		return
	}

	s.logger.Info("device added via API",
		"type", req.Type,
		"id", req.ID,
		"subject", subjectFrom(r.Context()),
	)
	writeJSON(w, http.StatusCreated, snapshotOf(d))
}

// handleListModels returns the device models the factory can create.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	models := device.Models()
	writeJSON(w, http.StatusOK, modelListResponse{Models: models, Count: len(models)})
}

// handleGetDevice returns one registered device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(r)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(d))
}

// handleRemoveDevice unregisters a device. Removing an absent device succeeds.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.registry.Remove(d); err != nil {
		if errors.Is(err, shelly.ErrClosed) {
			writeUnavailable(w, "device registry is shut down")
			return
		}
		s.logger.Error("removing device failed", "type", d.Type(), "id", d.ID(), "error", err)
		writeInternalError(w, "failed to remove device")
		return
	}

	s.logger.Info("device removed via API",
		"type", d.Type(),
		"id", d.ID(),
		"subject", subjectFrom(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStatus fetches the live /status document from the device.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup(r)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	fetcher, ok := d.(statusFetcher)
	if !ok {
		writeBadGateway(w, "device does not expose an HTTP status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	status, err := fetcher.Status(ctx)
	if err != nil {
		s.logger.Warn("device status fetch failed", "type", d.Type(), "id", d.ID(), "error", err)
		writeBadGateway(w, "device status unavailable: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, deviceStatusResponse{
		Type:   d.Type(),
		ID:     d.ID(),
		Status: status,
	})
}

// lookup resolves the {type}/{id} route parameters.
func (s *Server) lookup(r *http.Request) (shelly.Device, bool) {
	return s.registry.Get(chi.URLParam(r, "type"), chi.URLParam(r, "id"))
}
