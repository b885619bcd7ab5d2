package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/controller"
)

// infoTimeout bounds the live miIO.info request.
const infoTimeout = 5 * time.Second

// FanResponse describes the bridged fan.
type FanResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Model     string           `json:"model,omitempty"`
	Family    string           `json:"family,omitempty"`
	Protocol  string           `json:"protocol,omitempty"`
	DeviceID  string           `json:"device_id,omitempty"`
	Firmware  string           `json:"firmware,omitempty"`
	Connected bool             `json:"connected"`
	LastSeen  *time.Time       `json:"last_seen,omitempty"`
	Stats     controller.Stats `json:"stats"`
}

// handleGetFan returns the fan identity and connection counters. It answers
// before the first connect, from the cached record when there is one.
func (s *Server) handleGetFan(w http.ResponseWriter, _ *http.Request) {
	resp := FanResponse{
		ID:        s.fanID,
		Connected: s.fan.Connected(),
		Stats:     s.fan.Stats(),
	}

	if s.registry != nil {
		if rec := s.registry.Record(); rec != nil {
			resp.Name = rec.Name
			resp.Model = rec.Model
			resp.Family = rec.Family
			resp.Protocol = rec.Protocol
			resp.DeviceID = rec.DeviceID
			resp.Firmware = rec.Firmware
			resp.LastSeen = rec.LastSeen
		}
	}

	if d := s.fan.Device(); d != nil {
		resp.Name = d.Name()
		resp.Model = d.Model()
		resp.Family = d.Family()
		resp.Protocol = string(d.Protocol())
		if id := d.DeviceID(); id != "" {
			resp.DeviceID = id
		}
		if info, ok := d.CachedInfo(); ok && info.FirmwareVersion != "" {
			resp.Firmware = info.FirmwareVersion
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetStatus returns the normalised status of every feature.
func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request) {
	d := s.fan.Device()
	if d == nil {
		fail(w, http.StatusServiceUnavailable, "fan not discovered yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fan_id":    s.fanID,
		"model":     d.Model(),
		"status":    d.Status(),
		"timestamp": time.Now().UTC(),
	})
}

// handleGetProperties returns the raw property snapshot.
func (s *Server) handleGetProperties(w http.ResponseWriter, _ *http.Request) {
	d := s.fan.Device()
	if d == nil {
		fail(w, http.StatusServiceUnavailable, "fan not discovered yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fan_id":     s.fanID,
		"model":      d.Model(),
		"properties": d.Properties(),
	})
}

// handleGetCapabilities returns the declared capabilities and the commands
// that may be sent.
func (s *Server) handleGetCapabilities(w http.ResponseWriter, _ *http.Request) {
	d := s.fan.Device()
	if d == nil {
		fail(w, http.StatusServiceUnavailable, "fan not discovered yet")
		return
	}
	caps := d.Capabilities()
	writeJSON(w, http.StatusOK, map[string]any{
		"fan_id":       s.fanID,
		"model":        d.Model(),
		"family":       d.Family(),
		"protocol":     d.Protocol(),
		"capabilities": caps,
		"commands":     s.dispatcher.Available(caps),
	})
}

// handleGetInfo asks the fan for miIO.info.
func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	d := s.fan.Device()
	if d == nil || !d.Connected() {
		fail(w, http.StatusServiceUnavailable, "fan not connected")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), infoTimeout)
	defer cancel()

	info, err := d.Info(ctx)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// writeCommandError maps a device or dispatch error to a response.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	status, code := commandErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("fan request failed", "error", err)
	}
	writeError(w, status, code, err.Error())
}

var _ FanSource = (*controller.Controller)(nil)

var _ controller.Listener = (*Hub)(nil)
