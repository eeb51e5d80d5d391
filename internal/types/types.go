// Package types classifies inbound WebSocket frames. Each payload parses
// into exactly one Frame; anything that fits no known shape is Unrecognized.
package types

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Frame types sent by hosts and web clients.
const (
	TypeRegisterClient = "registerClient"
	TypeGameStart      = "gameStart"
	TypeGameEnd        = "gameEnd"
	TypeRoleAssignment = "roleAssignment"
)

type Frame interface{ isFrame() }

// SessionInit is the host handshake. Its Type field carries the game type,
// not a frame kind.
type SessionInit struct {
	Code                   string
	GameType               string
	Location               string
	AllowedNumberOfPlayers int
	Filename               string
	PlayersPicked          int
}

type RegisterClient struct {
	Username string
}

type GameStart struct {
	Code string
}

type GameEnd struct {
	Code string
}

// RoleAssignment is relayed to the participant as received.
type RoleAssignment struct {
	Code     string
	Username string
	Raw      json.RawMessage
}

type Unrecognized struct {
	Type   string
	Reason string
}

func (SessionInit) isFrame()    {}
func (RegisterClient) isFrame() {}
func (GameStart) isFrame()      {}
func (GameEnd) isFrame()        {}
func (RoleAssignment) isFrame() {}
func (Unrecognized) isFrame()   {}

type clientMessage struct {
	Type                   string  `json:"type"`
	Code                   string  `json:"code"`
	Username               string  `json:"username"`
	Location               string  `json:"location"`
	AllowedNumberOfPlayers flexInt `json:"allowedNumberOfPlayers"`
	Filename               string  `json:"filename"`
	PlayersPicked          flexInt `json:"dinorunNumberOfPlayerPicked"`
}

func ParseFrame(data []byte) Frame {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return Unrecognized{Reason: "invalid json: " + err.Error()}
	}

	switch m.Type {
	case TypeRegisterClient:
		if m.Username == "" {
			return Unrecognized{Type: m.Type, Reason: "missing username"}
		}
		return RegisterClient{Username: m.Username}

	case TypeGameStart:
		if m.Code == "" {
			return Unrecognized{Type: m.Type, Reason: "missing code"}
		}
		return GameStart{Code: m.Code}

	case TypeGameEnd:
		if m.Code == "" {
			return Unrecognized{Type: m.Type, Reason: "missing code"}
		}
		return GameEnd{Code: m.Code}

	case TypeRoleAssignment:
		if m.Code == "" || m.Username == "" {
			return Unrecognized{Type: m.Type, Reason: "missing code or username"}
		}
		return RoleAssignment{Code: m.Code, Username: m.Username, Raw: bytes.Clone(data)}
	}

	if m.Code != "" && m.Type != "" && m.Location != "" && m.AllowedNumberOfPlayers > 0 && m.Filename != "" {
		return SessionInit{
			Code:                   m.Code,
			GameType:               m.Type,
			Location:               m.Location,
			AllowedNumberOfPlayers: int(m.AllowedNumberOfPlayers),
			Filename:               m.Filename,
			PlayersPicked:          int(m.PlayersPicked),
		}
	}

	return Unrecognized{Type: m.Type, Reason: "unknown frame shape"}
}

// flexInt accepts 4 and "4"; hosts are not consistent about it.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			// Not a count; leave zero so the frame stays unrecognized.
			return nil
		}
		*n = flexInt(v)
		return nil
	}
	var v json.Number
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	i, err := v.Int64()
	if err != nil {
		f, ferr := v.Float64()
		if ferr != nil {
			return nil
		}
		i = int64(f)
	}
	*n = flexInt(i)
	return nil
}
