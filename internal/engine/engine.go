package engine

import (
	"errors"
	"fmt"
	"time"

	wire "github.com/DoyleJ11/cinemagames-backend/pkg/types"
)

var ErrNotFound = errors.New("game not found")
var ErrValidation = errors.New("invalid request")
var ErrMismatch = errors.New("game type or location mismatch")
var ErrUnsupportedGameType = errors.New("unsupported game type")
var ErrCapacityExceeded = errors.New("game is full")
var ErrDuplicateUsername = errors.New("username already taken in this session")
var ErrAlreadyStarted = errors.New("game already started, no new players allowed")
var ErrNotJoined = errors.New("username has not joined this session")

type GameType string

const (
	GameDinoRun     GameType = "dino_run"
	GameTugOfWar    GameType = "tug_of_war"
	GameKernelChaos GameType = "kernel_chaos"
)

func ParseGameType(s string) (GameType, bool) {
	switch t := GameType(s); t {
	case GameDinoRun, GameTugOfWar, GameKernelChaos:
		return t, true
	default:
		return "", false
	}
}

// Meta is fixed when the host opens the session.
type Meta struct {
	Code                   string
	Type                   GameType
	Location               string
	AllowedNumberOfPlayers int
	Filename               string

	// PlayersPicked is how many dino_run racers the host will pick, as
	// sent in its session-init frame. Zero when absent.
	PlayersPicked int
}

type Rules struct {
	// StrictUsernames rejects a known username before the game starts
	// instead of treating it as a rejoin.
	StrictUsernames bool
}

type Session struct {
	Meta
	Rules Rules

	HasStarted     bool
	TimestampStart time.Time
	TimestampEnd   time.Time

	// TotalPlayersJoined is stamped when the session ends.
	TotalPlayersJoined int

	Game Handler
}

// Snapshot pairs the immutable metadata with a serialized record so it can
// be exported after the session is gone.
type Snapshot struct {
	Meta   Meta
	Record wire.Record
}

type JoinRequest struct {
	Username string
	Team     string
}

type ActionRequest struct {
	Username string
	Action   []byte
	At       time.Time
}

// Assignment is what a participant holds for the life of the session.
// Role is set for slot games, Team for team games. HostRole is the role
// announced to the host in the roleAssignment frame.
type Assignment struct {
	Username     string
	Role         string
	Team         string
	HostRole     string
	PlayerNumber int
	Rejoined     bool
}

// Slot is the identifier the host uses for this participant.
func (a Assignment) Slot() string {
	if a.Team != "" {
		return a.Team
	}
	return a.Role
}

// Handler is the per-game decision logic. Implementations own the
// participant roster and never perform I/O.
type Handler interface {
	Type() GameType
	Connect(s *Session, req JoinRequest) (Assignment, error)
	Action(s *Session, req ActionRequest) (wire.ActionFrame, error)
	// Disconnect reports whether a participant was removed.
	Disconnect(s *Session, username string) bool
	Status(s *Session, username string) wire.GameStatus
	// Joined counts distinct usernames holding an assignment.
	Joined() int
	Serialize(s *Session) wire.Record
}

func NewHandler(t GameType) (Handler, error) {
	switch t {
	case GameDinoRun:
		return NewDinoRun(), nil
	case GameTugOfWar:
		return NewTugOfWar(), nil
	case GameKernelChaos:
		return NewKernelChaos(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGameType, t)
	}
}

func NewSession(meta Meta, rules Rules, now time.Time) (*Session, error) {
	if meta.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	if meta.Location == "" {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if meta.AllowedNumberOfPlayers < 1 {
		return nil, fmt.Errorf("%w: allowedNumberOfPlayers must be positive", ErrValidation)
	}

	game, err := NewHandler(meta.Type)
	if err != nil {
		return nil, err
	}

	return &Session{
		Meta:           meta,
		Rules:          rules,
		TimestampStart: now.UTC(),
		Game:           game,
	}, nil
}

func (s *Session) Connect(req JoinRequest) (Assignment, error) {
	return s.Game.Connect(s, req)
}

func (s *Session) Action(req ActionRequest) (wire.ActionFrame, error) {
	return s.Game.Action(s, req)
}

func (s *Session) Disconnect(username string) bool {
	return s.Game.Disconnect(s, username)
}

func (s *Session) Status(username string) wire.GameStatus {
	return s.Game.Status(s, username)
}

// Start locks the roster against new joins. It is one-way.
func (s *Session) Start() {
	s.HasStarted = true
}

// End stamps the end time once and records the joined count.
func (s *Session) End(now time.Time) {
	if s.TimestampEnd.IsZero() {
		now = now.UTC()
		if now.Before(s.TimestampStart) {
			now = s.TimestampStart
		}
		s.TimestampEnd = now
	}
	s.TotalPlayersJoined = s.Game.Joined()
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{Meta: s.Meta, Record: s.Game.Serialize(s)}
}
