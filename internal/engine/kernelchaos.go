package engine

import (
	"fmt"

	wire "github.com/DoyleJ11/cinemagames-backend/pkg/types"
)

const kernelSlotPrefix = "P"

// KernelChaos hands out P1..Pn like DinoRun, indexes the roster both ways
// and keeps every relayed action in an append-only log.
type KernelChaos struct {
	players map[string]string // slot -> username
	roles   map[string]string // username -> slot
	actions []wire.ActionLogEntry
}

func NewKernelChaos() *KernelChaos {
	return &KernelChaos{
		players: map[string]string{},
		roles:   map[string]string{},
	}
}

func (k *KernelChaos) Type() GameType { return GameKernelChaos }

func (k *KernelChaos) Connect(s *Session, req JoinRequest) (Assignment, error) {
	return join(s, k, req)
}

func (k *KernelChaos) lookup(username string) (Assignment, bool) {
	slot, ok := k.roles[username]
	if !ok {
		return Assignment{}, false
	}
	return Assignment{Username: username, Role: slot, HostRole: slot, PlayerNumber: slotNumber(slot, kernelSlotPrefix)}, true
}

func (k *KernelChaos) count() int { return len(k.players) }

func (k *KernelChaos) assign(s *Session, req JoinRequest) (Assignment, error) {
	slot, n, ok := firstFreeSlot(k.players, kernelSlotPrefix, s.AllowedNumberOfPlayers)
	if !ok {
		return Assignment{}, ErrCapacityExceeded
	}
	k.players[slot] = req.Username
	k.roles[req.Username] = slot
	return Assignment{Username: req.Username, Role: slot, HostRole: slot, PlayerNumber: n}, nil
}

// Action only accepts joined usernames and logs what it relays.
func (k *KernelChaos) Action(_ *Session, req ActionRequest) (wire.ActionFrame, error) {
	frame, err := relayAction(req)
	if err != nil {
		return wire.ActionFrame{}, err
	}
	if _, ok := k.roles[req.Username]; !ok {
		return wire.ActionFrame{}, fmt.Errorf("%w: %s", ErrNotJoined, req.Username)
	}

	k.actions = append(k.actions, wire.ActionLogEntry{
		T:        req.At.UnixMilli(),
		Username: req.Username,
		Action:   frame.Action,
	})
	return frame, nil
}

func (k *KernelChaos) Actions() []wire.ActionLogEntry {
	out := make([]wire.ActionLogEntry, len(k.actions))
	copy(out, k.actions)
	return out
}

func (k *KernelChaos) Disconnect(s *Session, username string) bool {
	if s.HasStarted {
		return false
	}
	slot, ok := k.roles[username]
	if !ok {
		return false
	}
	delete(k.players, slot)
	delete(k.roles, username)
	return true
}

func (k *KernelChaos) Status(s *Session, username string) wire.GameStatus {
	st := wire.GameStatus{GameStarted: s.HasStarted}
	if slot, ok := k.roles[username]; ok {
		st.Role = &slot
	}
	return st
}

func (k *KernelChaos) Joined() int { return len(k.players) }

func (k *KernelChaos) Serialize(s *Session) wire.Record {
	rec := baseRecord(s)
	started := s.HasStarted
	rec.HasStarted = &started
	rec.TotalPlayersJoined = len(k.players)
	rec.Players = copyMap(k.players)
	rec.Roles = copyMap(k.roles)
	rec.Actions = k.Actions()
	return rec
}
