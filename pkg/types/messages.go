// Package types holds the JSON shapes exchanged with hosts and web clients
// over HTTP and WebSocket, plus the persisted session record.
package types

import "encoding/json"

// Frame types sent by the server.
const (
	FramePlayerJoin     = "playerJoin"
	FrameRoleAssignment = "roleAssignment"
	FrameAction         = "action"
)

// Client -> Server (HTTP)

type ConnectRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
	GameType string `json:"gameType"`
	Location string `json:"location"`
	Team     string `json:"team,omitempty"`
}

type TriggerRequest struct {
	Code     string          `json:"code"`
	Username string          `json:"username"`
	Action   json.RawMessage `json:"action"`
}

type DisconnectRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
	GameType string `json:"gameType"`
}

// Server -> Client (HTTP)

// ConnectResponse is the body of a successful or "full" /connect.
// Callers must check Status before treating a 200 as a join.
type ConnectResponse struct {
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
	Team         string `json:"team,omitempty"`
	PlayerNumber int    `json:"playerNumber,omitempty"`
	Status       string `json:"status,omitempty"`
	Error        string `json:"error,omitempty"`
}

type TriggerResponse struct {
	Success bool `json:"success"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// GameStatus answers /game-status. Role is null until the username joined.
type GameStatus struct {
	GameStarted bool    `json:"gameStarted"`
	Role        *string `json:"role"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Server -> Host (WebSocket)

type PlayerJoinFrame struct {
	Type         string `json:"type"`
	Username     string `json:"username"`
	Role         string `json:"role,omitempty"`
	Team         string `json:"team,omitempty"`
	PlayerNumber int    `json:"playerNumber,omitempty"`
}

// RoleAssignmentFrame goes to the host after a join, and is relayed from
// the host to the participant once the game decides the final role.
type RoleAssignmentFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Code     string `json:"code"`
}

type ActionFrame struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	Action   json.RawMessage `json:"action"`
}
