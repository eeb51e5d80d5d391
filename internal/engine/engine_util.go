package engine

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	wire "github.com/DoyleJ11/cinemagames-backend/pkg/types"
)

// TimeLayout matches JavaScript's Date.toISOString, which hosts already parse.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// roster is the part every game shares: who holds what, and how a new
// username gets a place.
type roster interface {
	lookup(username string) (Assignment, bool)
	count() int
	assign(s *Session, req JoinRequest) (Assignment, error)
}

// join applies the rules common to all games: rejoin returns the existing
// assignment untouched, a started session takes no newcomers, and the
// roster never grows past AllowedNumberOfPlayers.
func join(s *Session, r roster, req JoinRequest) (Assignment, error) {
	if req.Username == "" {
		return Assignment{}, fmt.Errorf("%w: username is required", ErrValidation)
	}

	if a, ok := r.lookup(req.Username); ok {
		if s.Rules.StrictUsernames && !s.HasStarted {
			return Assignment{}, ErrDuplicateUsername
		}
		a.Rejoined = true
		return a, nil
	}

	if s.HasStarted {
		return Assignment{}, ErrAlreadyStarted
	}

	if r.count() >= s.AllowedNumberOfPlayers {
		return Assignment{}, ErrCapacityExceeded
	}

	return r.assign(s, req)
}

// firstFreeSlot returns the lowest prefixK in 1..n not present in taken.
func firstFreeSlot(taken map[string]string, prefix string, n int) (string, int, bool) {
	for k := 1; k <= n; k++ {
		key := prefix + strconv.Itoa(k)
		if _, used := taken[key]; !used {
			return key, k, true
		}
	}
	return "", 0, false
}

func slotNumber(slot, prefix string) int {
	k, err := strconv.Atoi(strings.TrimPrefix(slot, prefix))
	if err != nil {
		return 0
	}
	return k
}

func slotOf(players map[string]string, username string) (string, bool) {
	for slot, name := range players {
		if name == username {
			return slot, true
		}
	}
	return "", false
}

func relayAction(req ActionRequest) (wire.ActionFrame, error) {
	if req.Username == "" {
		return wire.ActionFrame{}, fmt.Errorf("%w: username is required", ErrValidation)
	}
	action := bytes.TrimSpace(req.Action)
	if len(action) == 0 || bytes.Equal(action, []byte("null")) {
		return wire.ActionFrame{}, fmt.Errorf("%w: action is required", ErrValidation)
	}
	return wire.ActionFrame{
		Type:     wire.FrameAction,
		Username: req.Username,
		Action:   append([]byte(nil), action...),
	}, nil
}

func baseRecord(s *Session) wire.Record {
	return wire.Record{
		Code:                   s.Code,
		Type:                   string(s.Type),
		Location:               s.Location,
		AllowedNumberOfPlayers: s.AllowedNumberOfPlayers,
		TimestampStart:         FormatTime(s.TimestampStart),
		TimestampEnd:           FormatTime(s.TimestampEnd),
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
