package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)

func newSession(t *testing.T, gt GameType, capacity int) *Session {
	t.Helper()
	s, err := NewSession(Meta{
		Code:                   "ABC123",
		Type:                   gt,
		Location:               "lobby-1",
		AllowedNumberOfPlayers: capacity,
		Filename:               "abc.json",
	}, Rules{}, t0)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func mustJoin(t *testing.T, s *Session, username, team string) Assignment {
	t.Helper()
	a, err := s.Connect(JoinRequest{Username: username, Team: team})
	if err != nil {
		t.Fatalf("join %s: %v", username, err)
	}
	return a
}

func TestNewSession_Validation(t *testing.T) {
	cases := []struct {
		name    string
		meta    Meta
		wantErr error
	}{
		{
			name:    "missing code",
			meta:    Meta{Type: GameDinoRun, Location: "x", AllowedNumberOfPlayers: 2},
			wantErr: ErrValidation,
		},
		{
			name:    "zero capacity",
			meta:    Meta{Code: "A", Type: GameDinoRun, Location: "x"},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown game",
			meta:    Meta{Code: "A", Type: "pong", Location: "x", AllowedNumberOfPlayers: 2},
			wantErr: ErrUnsupportedGameType,
		},
		{
			name: "ok",
			meta: Meta{Code: "A", Type: GameKernelChaos, Location: "x", AllowedNumberOfPlayers: 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSession(tc.meta, Rules{}, t0)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDinoRun_Scenario(t *testing.T) {
	s := newSession(t, GameDinoRun, 2)

	alice := mustJoin(t, s, "alice", "")
	if alice.Role != "player1" || alice.PlayerNumber != 1 {
		t.Fatalf("alice: got %+v", alice)
	}
	bob := mustJoin(t, s, "bob", "")
	if bob.Role != "player2" {
		t.Fatalf("bob: got %+v", bob)
	}

	if _, err := s.Connect(JoinRequest{Username: "carol"}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("carol: want ErrCapacityExceeded, got %v", err)
	}

	again := mustJoin(t, s, "alice", "")
	if again.Role != "player1" || !again.Rejoined {
		t.Fatalf("alice rejoin: got %+v", again)
	}
	if s.Game.Joined() != 2 {
		t.Fatalf("joined: want 2, got %d", s.Game.Joined())
	}
}

func TestSlotGames_LowestFreeIndex(t *testing.T) {
	cases := []struct {
		name   string
		gt     GameType
		prefix string
	}{
		{name: "dino_run", gt: GameDinoRun, prefix: "player"},
		{name: "kernel_chaos", gt: GameKernelChaos, prefix: "P"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t, tc.gt, 3)
			mustJoin(t, s, "a", "")
			mustJoin(t, s, "b", "")
			mustJoin(t, s, "c", "")

			if !s.Disconnect("b") {
				t.Fatalf("expected b to be removed")
			}

			d := mustJoin(t, s, "d", "")
			if d.Role != tc.prefix+"2" {
				t.Fatalf("want %s2, got %s", tc.prefix, d.Role)
			}

			if _, err := s.Connect(JoinRequest{Username: "e"}); !errors.Is(err, ErrCapacityExceeded) {
				t.Fatalf("want ErrCapacityExceeded, got %v", err)
			}
		})
	}
}

func TestTugOfWar_Scenario(t *testing.T) {
	s := newSession(t, GameTugOfWar, 4)

	steps := []struct {
		username string
		team     string
		want     Team
	}{
		{"a", "", TeamA},
		{"b", "", TeamB},
		{"c", "TeamA", TeamA},
		{"d", "", TeamB},
	}
	for _, st := range steps {
		got := mustJoin(t, s, st.username, st.team)
		if got.Team != string(st.want) {
			t.Fatalf("%s: want %s, got %s", st.username, st.want, got.Team)
		}
	}

	if _, err := s.Connect(JoinRequest{Username: "e"}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("fifth join: want ErrCapacityExceeded, got %v", err)
	}
}

func TestTugOfWar_InvalidTeamIsBalanced(t *testing.T) {
	s := newSession(t, GameTugOfWar, 10)
	mustJoin(t, s, "a", "TeamA")
	mustJoin(t, s, "b", "TeamA")

	got := mustJoin(t, s, "c", "Purple")
	if got.Team != string(TeamB) {
		t.Fatalf("want TeamB, got %s", got.Team)
	}
	got = mustJoin(t, s, "d", "")
	if got.Team != string(TeamB) {
		t.Fatalf("tie should not be reached yet; want TeamB, got %s", got.Team)
	}
	got = mustJoin(t, s, "e", "")
	if got.Team != string(TeamA) {
		t.Fatalf("tie goes to TeamA, got %s", got.Team)
	}
}

func TestStartedSession_LocksNewJoinsButAllowsRejoin(t *testing.T) {
	for _, gt := range []GameType{GameDinoRun, GameTugOfWar, GameKernelChaos} {
		t.Run(string(gt), func(t *testing.T) {
			s := newSession(t, gt, 4)
			first := mustJoin(t, s, "alice", "")
			s.Start()

			if _, err := s.Connect(JoinRequest{Username: "mallory"}); !errors.Is(err, ErrAlreadyStarted) {
				t.Fatalf("want ErrAlreadyStarted, got %v", err)
			}

			again := mustJoin(t, s, "alice", "TeamB")
			if again.Slot() != first.Slot() {
				t.Fatalf("rejoin changed assignment: %q -> %q", first.Slot(), again.Slot())
			}

			if s.Disconnect("alice") {
				t.Fatalf("disconnect after start must be a no-op")
			}
			if s.Game.Joined() != 1 {
				t.Fatalf("joined: want 1, got %d", s.Game.Joined())
			}
		})
	}
}

func TestStrictUsernames_RejectsDuplicateBeforeStart(t *testing.T) {
	s := newSession(t, GameDinoRun, 4)
	s.Rules.StrictUsernames = true
	mustJoin(t, s, "alice", "")

	if _, err := s.Connect(JoinRequest{Username: "alice"}); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("want ErrDuplicateUsername, got %v", err)
	}

	s.Start()
	a := mustJoin(t, s, "alice", "")
	if a.Role != "player1" {
		t.Fatalf("rejoin after start: got %+v", a)
	}
}

func TestConnect_RequiresUsername(t *testing.T) {
	s := newSession(t, GameTugOfWar, 2)
	if _, err := s.Connect(JoinRequest{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestAction(t *testing.T) {
	cases := []struct {
		name    string
		gt      GameType
		join    bool
		req     ActionRequest
		wantErr error
	}{
		{
			name: "dino relays",
			gt:   GameDinoRun,
			req:  ActionRequest{Username: "alice", Action: []byte(`"jump"`)},
		},
		{
			name:    "missing action",
			gt:      GameTugOfWar,
			req:     ActionRequest{Username: "alice", Action: []byte(` null `)},
			wantErr: ErrValidation,
		},
		{
			name:    "missing username",
			gt:      GameDinoRun,
			req:     ActionRequest{Action: []byte(`"jump"`)},
			wantErr: ErrValidation,
		},
		{
			name:    "kernel requires joined username",
			gt:      GameKernelChaos,
			req:     ActionRequest{Username: "ghost", Action: []byte(`{"key":"left"}`)},
			wantErr: ErrNotJoined,
		},
		{
			name: "kernel relays joined username",
			gt:   GameKernelChaos,
			join: true,
			req:  ActionRequest{Username: "alice", Action: []byte(`{"key":"left"}`), At: t0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t, tc.gt, 2)
			if tc.join {
				mustJoin(t, s, "alice", "")
			}
			frame, err := s.Action(tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if frame.Type != "action" || frame.Username != tc.req.Username {
				t.Fatalf("bad frame: %+v", frame)
			}
		})
	}
}

func TestKernelChaos_ActionLogIsAppendOnly(t *testing.T) {
	s := newSession(t, GameKernelChaos, 2)
	mustJoin(t, s, "alice", "")

	for i, a := range []string{`"up"`, `"down"`, `"up"`} {
		if _, err := s.Action(ActionRequest{Username: "alice", Action: []byte(a), At: t0.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("action %d: %v", i, err)
		}
	}

	rec := s.Snapshot().Record
	if len(rec.Actions) != 3 {
		t.Fatalf("want 3 logged actions, got %d", len(rec.Actions))
	}
	if rec.Actions[1].T != t0.Add(time.Second).UnixMilli() || string(rec.Actions[1].Action) != `"down"` {
		t.Fatalf("bad log entry: %+v", rec.Actions[1])
	}
	if rec.Roles["alice"] != "P1" || rec.Players["P1"] != "alice" {
		t.Fatalf("bad roster: %+v %+v", rec.Players, rec.Roles)
	}
}

func TestSerialize_TotalMatchesRoster(t *testing.T) {
	for _, gt := range []GameType{GameDinoRun, GameTugOfWar, GameKernelChaos} {
		t.Run(string(gt), func(t *testing.T) {
			s := newSession(t, gt, 5)
			for _, u := range []string{"a", "b", "c"} {
				mustJoin(t, s, u, "")
			}
			mustJoin(t, s, "a", "")
			s.Disconnect("c")

			rec := s.Snapshot().Record
			if rec.TotalPlayersJoined != 2 {
				t.Fatalf("totalPlayersJoined: want 2, got %d", rec.TotalPlayersJoined)
			}
			if rec.Type != string(gt) || rec.Code != "ABC123" {
				t.Fatalf("bad header: %+v", rec)
			}
		})
	}
}

func TestEnd_StampsOnce(t *testing.T) {
	s := newSession(t, GameDinoRun, 2)
	mustJoin(t, s, "alice", "")

	s.End(t0.Add(time.Minute))
	s.End(t0.Add(time.Hour))

	if !s.TimestampEnd.Equal(t0.Add(time.Minute)) {
		t.Fatalf("end overwritten: %v", s.TimestampEnd)
	}
	if s.TotalPlayersJoined != 1 {
		t.Fatalf("total: want 1, got %d", s.TotalPlayersJoined)
	}

	rec := s.Snapshot().Record
	if rec.TimestampStart != "2025-03-01T18:30:00.000Z" || rec.TimestampEnd != "2025-03-01T18:31:00.000Z" {
		t.Fatalf("timestamps: %s .. %s", rec.TimestampStart, rec.TimestampEnd)
	}
}

func TestEnd_NeverBeforeStart(t *testing.T) {
	s := newSession(t, GameTugOfWar, 2)
	s.End(t0.Add(-time.Hour))
	if s.TimestampEnd.Before(s.TimestampStart) {
		t.Fatalf("end %v before start %v", s.TimestampEnd, s.TimestampStart)
	}
}

func TestStatus(t *testing.T) {
	s := newSession(t, GameDinoRun, 2)
	mustJoin(t, s, "alice", "")

	st := s.Status("alice")
	if st.GameStarted || st.Role == nil || *st.Role != "player" {
		t.Fatalf("alice status: %+v", st)
	}
	st = s.Status("nobody")
	if st.Role != nil {
		t.Fatalf("unknown user should have nil role, got %q", *st.Role)
	}
}

func TestSerialize_EmptySessionKeepsSections(t *testing.T) {
	cases := []struct {
		game GameType
		want []string
		not  []string
	}{
		{GameDinoRun, []string{"players", "roles", "dinorunNumberOfPlayerPicked"}, []string{"teams", "actions"}},
		{GameTugOfWar, []string{"teams"}, []string{"players", "roles", "actions"}},
		{GameKernelChaos, []string{"players", "roles", "actions", "hasStarted"}, []string{"teams"}},
	}

	for _, tc := range cases {
		t.Run(string(tc.game), func(t *testing.T) {
			s := newSession(t, tc.game, 3)
			s.End(t0.Add(time.Minute))

			b, err := json.Marshal(s.Snapshot().Record)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var doc map[string]json.RawMessage
			if err := json.Unmarshal(b, &doc); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			for _, k := range tc.want {
				v, ok := doc[k]
				if !ok {
					t.Fatalf("missing %q in %s", k, b)
				}
				if string(v) == "null" {
					t.Fatalf("%q is null in %s", k, b)
				}
			}
			for _, k := range tc.not {
				if _, ok := doc[k]; ok {
					t.Fatalf("unexpected %q in %s", k, b)
				}
			}
		})
	}
}

func TestDinoRun_PlayersPickedFromMeta(t *testing.T) {
	s, err := NewSession(Meta{
		Code:                   "ABC123",
		Type:                   GameDinoRun,
		Location:               "lobby-1",
		AllowedNumberOfPlayers: 6,
		PlayersPicked:          2,
	}, Rules{}, t0)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	rec := s.Snapshot().Record
	if rec.DinorunNumberOfPlayerPicked == nil || *rec.DinorunNumberOfPlayerPicked != 2 {
		t.Fatalf("dinorunNumberOfPlayerPicked: got %v", rec.DinorunNumberOfPlayerPicked)
	}
}

func TestHostRole(t *testing.T) {
	cases := []struct {
		game GameType
		team string
		want string
	}{
		{GameDinoRun, "", "player"},
		{GameKernelChaos, "", "P1"},
		{GameTugOfWar, "TeamB", "TeamB"},
	}

	for _, tc := range cases {
		t.Run(string(tc.game), func(t *testing.T) {
			s := newSession(t, tc.game, 2)
			a := mustJoin(t, s, "alice", tc.team)
			if a.HostRole != tc.want {
				t.Fatalf("host role: want %q, got %q", tc.want, a.HostRole)
			}
			again := mustJoin(t, s, "alice", "")
			if again.HostRole != tc.want {
				t.Fatalf("rejoin host role: want %q, got %q", tc.want, again.HostRole)
			}
		})
	}
}
