package ws

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/cinemagames-backend/internal/engine"
	"github.com/DoyleJ11/cinemagames-backend/internal/hub"
	"github.com/DoyleJ11/cinemagames-backend/internal/lobby"
	"github.com/DoyleJ11/cinemagames-backend/internal/types"
)

// closeTimeout bounds the session teardown run after a socket is gone.
const closeTimeout = 5 * time.Second

// Exporter receives session snapshots to persist. Export must not block.
type Exporter interface {
	Export(snap engine.Snapshot)
}

// Peer is the router's view of one socket. It is only touched by that
// socket's reader goroutine.
type Peer struct {
	conn     *Conn
	pathCode string

	hosted map[string]*lobby.Lobby

	username   string
	clientCode string
}

func NewPeer(c *Conn, pathCode string) *Peer {
	return &Peer{conn: c, pathCode: pathCode, hosted: map[string]*lobby.Lobby{}}
}

type Router struct {
	hub      *hub.Hub
	table    *Table
	exporter Exporter
	logger   *zap.Logger
}

func NewRouter(h *hub.Hub, table *Table, exporter Exporter, logger *zap.Logger) *Router {
	return &Router{
		hub:      h,
		table:    table,
		exporter: exporter,
		logger:   logger.Named("router"),
	}
}

func (r *Router) Table() *Table { return r.table }

// Dispatch handles one inbound frame. Failures are logged, never returned
// to the sender.
func (r *Router) Dispatch(ctx context.Context, p *Peer, data []byte) {
	switch f := types.ParseFrame(data).(type) {
	case types.SessionInit:
		r.initSession(ctx, p, f)

	case types.RegisterClient:
		r.registerClient(p, f)

	case types.GameStart:
		r.startGame(ctx, f.Code)

	case types.GameEnd:
		lb, err := r.hub.Get(ctx, f.Code)
		if err != nil {
			r.logger.Warn("gameEnd for unknown session", zap.String("code", f.Code), zap.Error(err))
			return
		}
		host, hasHost := r.table.Host(f.Code)
		if !r.endSession(ctx, f.Code, lb, "gameEnd") {
			return
		}
		if hasHost {
			r.table.RemoveHost(f.Code, host)
		}
		if p.hosted[f.Code] == lb {
			delete(p.hosted, f.Code)
		}

	case types.RoleAssignment:
		if r.table.SendToParticipant(f.Code, f.Username, f.Raw) {
			r.logger.Debug("role assignment relayed",
				zap.String("code", f.Code),
				zap.String("username", f.Username))
		}

	case types.Unrecognized:
		r.logger.Debug("ignoring frame",
			zap.String("conn", p.conn.ID),
			zap.String("type", f.Type),
			zap.String("reason", f.Reason))
	}
}

func (r *Router) initSession(ctx context.Context, p *Peer, f types.SessionInit) {
	meta := engine.Meta{
		Code:                   f.Code,
		Type:                   engine.GameType(f.GameType),
		Location:               f.Location,
		AllowedNumberOfPlayers: f.AllowedNumberOfPlayers,
		Filename:               f.Filename,
		PlayersPicked:          f.PlayersPicked,
	}

	lb, err := r.hub.Create(ctx, meta)
	if err != nil {
		r.logger.Warn("session init rejected", zap.String("code", f.Code), zap.Error(err))
		return
	}

	p.hosted[f.Code] = lb
	r.table.SetHost(f.Code, p.conn)
	r.logger.Info("session initialized",
		zap.String("code", f.Code),
		zap.String("type", f.GameType),
		zap.String("location", f.Location),
		zap.Int("allowed_players", f.AllowedNumberOfPlayers),
		zap.String("filename", f.Filename))
}

func (r *Router) registerClient(p *Peer, f types.RegisterClient) {
	if p.pathCode == "" {
		r.logger.Warn("registerClient without code in path", zap.String("username", f.Username))
		return
	}

	if p.username != "" && (p.username != f.Username || p.clientCode != p.pathCode) {
		r.table.Unregister(p.clientCode, p.username, p.conn)
	}

	p.username = f.Username
	p.clientCode = p.pathCode
	r.table.Register(p.clientCode, p.username, p.conn)
	r.logger.Info("web client registered",
		zap.String("code", p.clientCode),
		zap.String("username", p.username))
}

func (r *Router) startGame(ctx context.Context, code string) {
	lb, err := r.hub.Get(ctx, code)
	if err != nil {
		r.logger.Warn("gameStart for unknown session", zap.String("code", code), zap.Error(err))
		return
	}

	snap, err := lb.Start(ctx)
	if err != nil {
		r.logger.Warn("gameStart failed", zap.String("code", code), zap.Error(err))
		return
	}

	r.exporter.Export(snap)
	r.logger.Info("game started", zap.String("code", code))
}

// endSession stamps the end, exports and unregisters lb, and reports
// whether this call ended it. Only the first caller for a given lobby gets
// past End; the rest see lobby.ErrClosed.
func (r *Router) endSession(ctx context.Context, code string, lb *lobby.Lobby, reason string) bool {
	snap, err := lb.End(ctx)
	if err != nil {
		if !errors.Is(err, lobby.ErrClosed) {
			r.logger.Warn("end session failed", zap.String("code", code), zap.Error(err))
		}
		return false
	}

	r.exporter.Export(snap)

	if _, err := r.hub.Remove(ctx, code, lb); err != nil {
		r.logger.Warn("remove session failed", zap.String("code", code), zap.Error(err))
	}

	r.logger.Info("game ended",
		zap.String("code", code),
		zap.String("reason", reason),
		zap.Int("total_players_joined", snap.Record.TotalPlayersJoined))
	return true
}

// Closed tears down whatever p registered. A dropped host ends its
// sessions exactly like gameEnd; a dropped participant only loses its
// table entry.
func (r *Router) Closed(ctx context.Context, p *Peer) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	for code, lb := range p.hosted {
		r.table.RemoveHost(code, p.conn)
		r.endSession(ctx, code, lb, "host disconnected")
	}

	if p.username != "" {
		if r.table.Unregister(p.clientCode, p.username, p.conn) {
			r.logger.Info("web client disconnected",
				zap.String("code", p.clientCode),
				zap.String("username", p.username))
		}
	}
}
