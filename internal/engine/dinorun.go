package engine

import (
	wire "github.com/DoyleJ11/cinemagames-backend/pkg/types"
)

const (
	dinoSlotPrefix = "player"
	dinoJoinRole   = "player"
)

// DinoRun hands out player1..playerN. Which players actually race and which
// spectate is decided later by the host, not here.
type DinoRun struct {
	players map[string]string // slot -> username
	roles   map[string]string // username -> join-time role
}

func NewDinoRun() *DinoRun {
	return &DinoRun{
		players: map[string]string{},
		roles:   map[string]string{},
	}
}

func (d *DinoRun) Type() GameType { return GameDinoRun }

func (d *DinoRun) Connect(s *Session, req JoinRequest) (Assignment, error) {
	return join(s, d, req)
}

func (d *DinoRun) lookup(username string) (Assignment, bool) {
	slot, ok := slotOf(d.players, username)
	if !ok {
		return Assignment{}, false
	}
	return Assignment{Username: username, Role: slot, HostRole: d.roles[username], PlayerNumber: slotNumber(slot, dinoSlotPrefix)}, true
}

func (d *DinoRun) count() int { return len(d.players) }

func (d *DinoRun) assign(s *Session, req JoinRequest) (Assignment, error) {
	slot, k, ok := firstFreeSlot(d.players, dinoSlotPrefix, s.AllowedNumberOfPlayers)
	if !ok {
		return Assignment{}, ErrCapacityExceeded
	}
	d.players[slot] = req.Username
	d.roles[req.Username] = dinoJoinRole
	return Assignment{Username: req.Username, Role: slot, HostRole: dinoJoinRole, PlayerNumber: k}, nil
}

func (d *DinoRun) Action(_ *Session, req ActionRequest) (wire.ActionFrame, error) {
	return relayAction(req)
}

func (d *DinoRun) Disconnect(s *Session, username string) bool {
	if s.HasStarted {
		return false
	}
	slot, ok := slotOf(d.players, username)
	if !ok {
		return false
	}
	delete(d.players, slot)
	delete(d.roles, username)
	return true
}

func (d *DinoRun) Status(s *Session, username string) wire.GameStatus {
	st := wire.GameStatus{GameStarted: s.HasStarted}
	if role, ok := d.roles[username]; ok {
		st.Role = &role
	}
	return st
}

func (d *DinoRun) Joined() int { return len(d.players) }

func (d *DinoRun) Serialize(s *Session) wire.Record {
	rec := baseRecord(s)
	picked := s.PlayersPicked
	rec.DinorunNumberOfPlayerPicked = &picked
	rec.TotalPlayersJoined = len(d.players)
	rec.Players = copyMap(d.players)
	rec.Roles = copyMap(d.roles)
	return rec
}
