package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-fan/internal/command"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
	"github.com/nerrad567/gray-logic-fan/internal/miio"
)

// commandTimeout bounds one command, including the property refresh that
// follows direct-method writes.
const commandTimeout = 10 * time.Second

// ErrCodeDeviceError is returned when the fan rejects or fails a request.
const ErrCodeDeviceError = "device_error"

// CommandRequest is the body of POST /fan/commands.
type CommandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// CommandResponse reports a completed command and the status after it.
type CommandResponse struct {
	CommandID string     `json:"command_id"`
	Command   string     `json:"command"`
	Status    fan.Status `json:"status"`
}

// handleCommand runs a command on the fan synchronously. Unlike the MQTT
// path there is no ack message: the HTTP status is the outcome.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Command == "" {
		fail(w, http.StatusBadRequest, "command field is required")
		return
	}

	d := s.fan.Device()
	if d == nil {
		fail(w, http.StatusServiceUnavailable, "fan not discovered yet")
		return
	}

	commandID := uuid.NewString()
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := s.dispatcher.Execute(ctx, d, req.Command, req.Parameters); err != nil {
		s.logger.Debug("api command failed",
			"command_id", commandID,
			"command", req.Command,
			"error", err,
		)
		s.writeCommandError(w, err)
		return
	}

	s.logger.Info("api command executed", "command_id", commandID, "command", req.Command)
	writeJSON(w, http.StatusOK, CommandResponse{
		CommandID: commandID,
		Command:   req.Command,
		Status:    d.Status(),
	})
}

// commandErrorStatus maps an error to an HTTP status and error code.
func commandErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, command.ErrUnknownCommand), errors.Is(err, command.ErrInvalidParameters):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, command.ErrFeatureDisabled):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, fan.ErrUnsupported):
		return http.StatusUnprocessableEntity, ErrCodeNotSupported
	case errors.Is(err, fan.ErrNotConnected), errors.Is(err, miio.ErrClosed):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, miio.ErrTimeout):
		return http.StatusGatewayTimeout, ErrCodeDeviceError
	default:
		return http.StatusBadGateway, ErrCodeDeviceError
	}
}
