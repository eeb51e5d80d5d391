package types

import "encoding/json"

// Record is the durable document written once per export of a session.
// Stored at {prefix}/{location}/{type}/{filename}.
//
// Participant sections by game type:
//
//	dino_run:     players (slot -> username), roles (username -> "player")
//	tug_of_war:   teams (team -> usernames)
//	kernel_chaos: players (slot -> username), roles (username -> slot), actions
type Record struct {
	Code                        string `json:"code"`
	Type                        string `json:"type"`
	Location                    string `json:"location"`
	AllowedNumberOfPlayers      int    `json:"allowedNumberOfPlayers"`
	DinorunNumberOfPlayerPicked *int   `json:"dinorunNumberOfPlayerPicked,omitempty"`
	TimestampStart              string `json:"timestampStart"`
	TimestampEnd                string `json:"timestampEnd,omitempty"`
	HasStarted                  *bool  `json:"hasStarted,omitempty"`
	TotalPlayersJoined          int    `json:"totalPlayersJoined"`

	// A nil section is left out; an empty one is written as {} or [].
	Players map[string]string   `json:"players,omitzero"`
	Roles   map[string]string   `json:"roles,omitzero"`
	Teams   map[string][]string `json:"teams,omitzero"`
	Actions []ActionLogEntry    `json:"actions,omitzero"`
}

// ActionLogEntry is one raw action kept by games that audit their input.
type ActionLogEntry struct {
	T        int64           `json:"t"` // unix millis
	Username string          `json:"username"`
	Action   json.RawMessage `json:"action"`
}
