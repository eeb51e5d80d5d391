package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/cinemagames-backend/internal/engine"
	wire "github.com/DoyleJ11/cinemagames-backend/pkg/types"
)

// ErrClosed is returned to callers whose message reached a lobby after
// its session ended.
var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

type Connect struct {
	Req   engine.JoinRequest
	Reply chan ConnectReply
}

type ConnectReply struct {
	Assignment engine.Assignment
	Err        error
}

func (Connect) isLobbyMsg() {}

type Action struct {
	Req   engine.ActionRequest
	Reply chan ActionReply
}

type ActionReply struct {
	Frame wire.ActionFrame
	Err   error
}

func (Action) isLobbyMsg() {}

type Disconnect struct {
	Username string
	Reply    chan bool
}

func (Disconnect) isLobbyMsg() {}

type Status struct {
	Username string
	Reply    chan wire.GameStatus
}

func (Status) isLobbyMsg() {}

// Start marks the session started and replies with a snapshot to export.
type Start struct {
	Reply chan engine.Snapshot
}

func (Start) isLobbyMsg() {}

// End stamps the end time, replies with the final snapshot and stops the
// lobby. Only the first End gets a reply; later callers see ErrClosed.
type End struct {
	Reply chan engine.Snapshot
}

func (End) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	HasStarted bool
	Joined     int
	Record     wire.Record
}

type Lobby struct {
	inbox   chan Msg
	meta    engine.Meta
	session *engine.Session
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLobby(parent context.Context, session *engine.Session, now func() time.Time) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if now == nil {
		now = time.Now
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		meta:    session.Meta,
		session: session,
		now:     now,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	defer l.cancel()

	for {
		select {
		case <-l.ctx.Done():
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Connect:
				a, err := l.session.Connect(msg.Req)
				msg.Reply <- ConnectReply{Assignment: a, Err: err}

			case Action:
				if msg.Req.At.IsZero() {
					msg.Req.At = l.now()
				}
				f, err := l.session.Action(msg.Req)
				msg.Reply <- ActionReply{Frame: f, Err: err}

			case Disconnect:
				msg.Reply <- l.session.Disconnect(msg.Username)

			case Status:
				msg.Reply <- l.session.Status(msg.Username)

			case Start:
				l.session.Start()
				msg.Reply <- l.session.Snapshot()

			case End:
				l.session.End(l.now())
				msg.Reply <- l.session.Snapshot()
				return

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					HasStarted: l.session.HasStarted,
					Joined:     l.session.Game.Joined(),
					Record:     l.session.Snapshot().Record,
				}

			case Shutdown:
				return
			}
		}
	}
}

// Expose the inbox so tests or the hub can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby stopped processing messages.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Meta never changes after creation, so it is read without the loop.
func (l *Lobby) Meta() engine.Meta { return l.meta }

func (l *Lobby) Connect(ctx context.Context, req engine.JoinRequest) (engine.Assignment, error) {
	reply := make(chan ConnectReply, 1)
	r, err := ask(ctx, l, Connect{Req: req, Reply: reply}, reply)
	if err != nil {
		return engine.Assignment{}, err
	}
	return r.Assignment, r.Err
}

func (l *Lobby) Action(ctx context.Context, req engine.ActionRequest) (wire.ActionFrame, error) {
	reply := make(chan ActionReply, 1)
	r, err := ask(ctx, l, Action{Req: req, Reply: reply}, reply)
	if err != nil {
		return wire.ActionFrame{}, err
	}
	return r.Frame, r.Err
}

func (l *Lobby) Disconnect(ctx context.Context, username string) (bool, error) {
	reply := make(chan bool, 1)
	return ask(ctx, l, Disconnect{Username: username, Reply: reply}, reply)
}

func (l *Lobby) Status(ctx context.Context, username string) (wire.GameStatus, error) {
	reply := make(chan wire.GameStatus, 1)
	return ask(ctx, l, Status{Username: username, Reply: reply}, reply)
}

func (l *Lobby) Start(ctx context.Context) (engine.Snapshot, error) {
	reply := make(chan engine.Snapshot, 1)
	return ask(ctx, l, Start{Reply: reply}, reply)
}

func (l *Lobby) End(ctx context.Context) (engine.Snapshot, error) {
	reply := make(chan engine.Snapshot, 1)
	return ask(ctx, l, End{Reply: reply}, reply)
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	return ask(ctx, l, GetState{Reply: reply}, reply)
}

// ask delivers m and waits for its reply. Replies are buffered, so the loop
// never blocks on a caller that gave up.
func ask[T any](ctx context.Context, l *Lobby, m Msg, reply <-chan T) (T, error) {
	var zero T

	select {
	case l.inbox <- m:
	case <-l.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r, nil
	case <-l.done:
		// The loop may have answered right before stopping.
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
