package engine

import (
	"slices"

	wire "github.com/DoyleJ11/cinemagames-backend/pkg/types"
)

type Team string

const (
	TeamA Team = "TeamA"
	TeamB Team = "TeamB"
)

func ParseTeam(s string) (Team, bool) {
	switch t := Team(s); t {
	case TeamA, TeamB:
		return t, true
	default:
		return "", false
	}
}

// TugOfWar splits participants into TeamA and TeamB. Pull counting lives in
// the host; the backend only tracks membership.
type TugOfWar struct {
	teams map[Team][]string
}

func NewTugOfWar() *TugOfWar {
	return &TugOfWar{teams: map[Team][]string{TeamA: {}, TeamB: {}}}
}

func (g *TugOfWar) Type() GameType { return GameTugOfWar }

func (g *TugOfWar) Connect(s *Session, req JoinRequest) (Assignment, error) {
	return join(s, g, req)
}

func (g *TugOfWar) teamOf(username string) (Team, bool) {
	for _, t := range []Team{TeamA, TeamB} {
		if slices.Contains(g.teams[t], username) {
			return t, true
		}
	}
	return "", false
}

func (g *TugOfWar) lookup(username string) (Assignment, bool) {
	t, ok := g.teamOf(username)
	if !ok {
		return Assignment{}, false
	}
	return Assignment{Username: username, Team: string(t), HostRole: string(t)}, true
}

func (g *TugOfWar) count() int { return len(g.teams[TeamA]) + len(g.teams[TeamB]) }

// assign honors an explicit team, otherwise balances toward the smaller
// team with ties going to TeamA. Capacity is checked across both teams by
// join before this runs.
func (g *TugOfWar) assign(_ *Session, req JoinRequest) (Assignment, error) {
	team, ok := ParseTeam(req.Team)
	if !ok {
		team = g.smallerTeam()
	}
	g.teams[team] = append(g.teams[team], req.Username)
	return Assignment{Username: req.Username, Team: string(team), HostRole: string(team)}, nil
}

func (g *TugOfWar) smallerTeam() Team {
	if len(g.teams[TeamA]) <= len(g.teams[TeamB]) {
		return TeamA
	}
	return TeamB
}

func (g *TugOfWar) Action(_ *Session, req ActionRequest) (wire.ActionFrame, error) {
	return relayAction(req)
}

func (g *TugOfWar) Disconnect(s *Session, username string) bool {
	if s.HasStarted {
		return false
	}
	t, ok := g.teamOf(username)
	if !ok {
		return false
	}
	i := slices.Index(g.teams[t], username)
	g.teams[t] = slices.Delete(g.teams[t], i, i+1)
	return true
}

func (g *TugOfWar) Status(s *Session, username string) wire.GameStatus {
	st := wire.GameStatus{GameStarted: s.HasStarted}
	if t, ok := g.teamOf(username); ok {
		team := string(t)
		st.Role = &team
	}
	return st
}

func (g *TugOfWar) Joined() int { return g.count() }

func (g *TugOfWar) Serialize(s *Session) wire.Record {
	rec := baseRecord(s)
	rec.TotalPlayersJoined = g.count()
	rec.Teams = map[string][]string{
		string(TeamA): slices.Clone(g.teams[TeamA]),
		string(TeamB): slices.Clone(g.teams[TeamB]),
	}
	return rec
}
