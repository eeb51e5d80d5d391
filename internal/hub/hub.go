// Package hub is the registry of live sessions, keyed by join code.
package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/cinemagames-backend/internal/engine"
	"github.com/DoyleJ11/cinemagames-backend/internal/lobby"
)

var ErrDuplicateCode = errors.New("join code already live")
var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Meta  engine.Meta
	Reply chan CreateReply
}

type CreateReply struct {
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby drops Code only while it still maps to Lobby, so a late
// removal never evicts a newer session that reused the code.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
	Reply chan bool
}

type CountLobbies struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()  {}
func (GetLobby) isHubMsg()     {}
func (RemoveLobby) isHubMsg()  {}
func (CountLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	rules   engine.Rules
	now     func() time.Time
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Hub)

func WithRules(r engine.Rules) Option {
	return func(h *Hub) { h.rules = r }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		now:     time.Now,
		logger:  zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("hub")

	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.create(msg.Meta)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case RemoveLobby:
				lb, ok := h.lobbies[msg.Code]
				removed := ok && lb == msg.Lobby
				if removed {
					delete(h.lobbies, msg.Code)
					h.logger.Debug("session removed", zap.String("code", msg.Code))
				}
				if msg.Reply != nil {
					msg.Reply <- removed
				}

			case CountLobbies:
				msg.Reply <- len(h.lobbies)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(meta engine.Meta) CreateReply {
	if lb := h.lobbies[meta.Code]; lb != nil {
		return CreateReply{Err: ErrDuplicateCode}
	}

	s, err := engine.NewSession(meta, h.rules, h.now())
	if err != nil {
		return CreateReply{Err: err}
	}

	lb := lobby.NewLobby(h.ctx, s, h.now)
	h.lobbies[meta.Code] = lb
	return CreateReply{Lobby: lb}
}

func (h *Hub) shutdown() {
	h.cancel()
	for code, lb := range h.lobbies {
		<-lb.Done()
		delete(h.lobbies, code)
	}
}

func (h *Hub) Create(ctx context.Context, meta engine.Meta) (*lobby.Lobby, error) {
	reply := make(chan CreateReply, 1)
	r, err := request(ctx, h, CreateLobby{Meta: meta, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return r.Lobby, r.Err
}

// Get returns engine.ErrNotFound for codes that are not live.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	lb, err := request(ctx, h, GetLobby{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, engine.ErrNotFound
	}
	return lb, nil
}

func (h *Hub) Remove(ctx context.Context, code string, lb *lobby.Lobby) (bool, error) {
	reply := make(chan bool, 1)
	return request(ctx, h, RemoveLobby{Code: code, Lobby: lb, Reply: reply}, reply)
}

func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	return request(ctx, h, CountLobbies{Reply: reply}, reply)
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func request[T any](ctx context.Context, h *Hub, m HubMsg, reply <-chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- m:
	case <-h.done:
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r, nil
	case <-h.done:
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, ErrHubClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
