package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/cinemagames-backend/internal/engine"
	"github.com/DoyleJ11/cinemagames-backend/internal/hub"
	"github.com/DoyleJ11/cinemagames-backend/internal/lobby"
	"github.com/DoyleJ11/cinemagames-backend/internal/ws"
	wire "github.com/DoyleJ11/cinemagames-backend/pkg/types"
)

const maxBodyBytes = 1 << 16

func Connect(h *hub.Hub, conns *ws.Table, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.ConnectRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		lb, err := h.Get(r.Context(), req.Code)
		if err != nil {
			writeError(w, err)
			return
		}

		meta := lb.Meta()
		if string(meta.Type) != req.GameType || meta.Location != req.Location {
			writeError(w, fmt.Errorf("%w: session is %s at %s", engine.ErrMismatch, meta.Type, meta.Location))
			return
		}

		a, err := lb.Connect(r.Context(), engine.JoinRequest{Username: req.Username, Team: req.Team})
		if errors.Is(err, engine.ErrCapacityExceeded) {
			writeJSON(w, http.StatusOK, wire.ConnectResponse{Status: "full", Error: "Game is full."})
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		conns.SendToHost(req.Code, wire.PlayerJoinFrame{
			Type:         wire.FramePlayerJoin,
			Username:     a.Username,
			Role:         a.Role,
			Team:         a.Team,
			PlayerNumber: a.PlayerNumber,
		})
		conns.SendToHost(req.Code, wire.RoleAssignmentFrame{
			Type:     wire.FrameRoleAssignment,
			Username: a.Username,
			Role:     a.HostRole,
			Code:     req.Code,
		})

		logger.Info("participant connected",
			zap.String("code", req.Code),
			zap.String("username", a.Username),
			zap.String("slot", a.Slot()),
			zap.Bool("rejoined", a.Rejoined))

		writeJSON(w, http.StatusOK, wire.ConnectResponse{
			Username:     a.Username,
			Role:         a.Role,
			Team:         a.Team,
			PlayerNumber: a.PlayerNumber,
		})
	}
}

func Trigger(h *hub.Hub, conns *ws.Table, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.TriggerRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		lb, err := h.Get(r.Context(), req.Code)
		if err != nil {
			writeError(w, err)
			return
		}

		frame, err := lb.Action(r.Context(), engine.ActionRequest{Username: req.Username, Action: req.Action})
		if err != nil {
			writeError(w, err)
			return
		}

		if !conns.SendToHost(req.Code, frame) {
			logger.Debug("action not delivered", zap.String("code", req.Code), zap.String("username", req.Username))
		}
		writeJSON(w, http.StatusOK, wire.TriggerResponse{Success: true})
	}
}

// Disconnect frees the participant's slot. The request's gameType is not
// trusted; the session's own type decides.
func Disconnect(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.DisconnectRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		lb, err := h.Get(r.Context(), req.Code)
		if err != nil {
			writeError(w, err)
			return
		}

		removed, err := lb.Disconnect(r.Context(), req.Username)
		if err != nil {
			writeError(w, err)
			return
		}
		if removed {
			logger.Info("participant disconnected", zap.String("code", req.Code), zap.String("username", req.Username))
		}

		writeJSON(w, http.StatusOK, wire.StatusResponse{Status: "ok"})
	}
}

func GameStatus(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lb, err := h.Get(r.Context(), q.Get("code"))
		if err != nil {
			writeError(w, err)
			return
		}
		st, err := lb.Status(r.Context(), q.Get("username"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func Healthz(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.Count(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Status   string `json:"status"`
			Sessions int    `json:"sessions"`
		}{Status: "ok", Sessions: n})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrValidation, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, lobby.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrValidation),
		errors.Is(err, engine.ErrMismatch),
		errors.Is(err, engine.ErrUnsupportedGameType),
		errors.Is(err, engine.ErrDuplicateUsername),
		errors.Is(err, engine.ErrAlreadyStarted),
		errors.Is(err, engine.ErrNotJoined):
		return http.StatusBadRequest
	case errors.Is(err, hub.ErrHubClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch code {
	case http.StatusNotFound:
		msg = "Game not found"
	case http.StatusInternalServerError:
		msg = "internal error"
	}
	writeJSON(w, code, wire.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
