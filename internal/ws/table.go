package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Table maps each join code to its host socket and each (code, username)
// to a participant socket.
type Table struct {
	mu           sync.RWMutex
	hosts        map[string]*Conn
	participants map[string]map[string]*Conn // code -> username -> Conn
	logger       *zap.Logger
}

func NewTable(logger *zap.Logger) *Table {
	return &Table{
		hosts:        make(map[string]*Conn),
		participants: make(map[string]map[string]*Conn),
		logger:       logger.Named("connections"),
	}
}

func (t *Table) SetHost(code string, c *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hosts[code] = c
}

// RemoveHost drops the host entry only if it is still c.
func (t *Table) RemoveHost(code string, c *Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.hosts[code]; ok && cur == c {
		delete(t.hosts, code)
		return true
	}
	return false
}

func (t *Table) Host(code string) (*Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.hosts[code]
	return c, ok
}

// Register replaces any older socket for the same participant.
func (t *Table) Register(code, username string, c *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.participants[code] == nil {
		t.participants[code] = make(map[string]*Conn)
	}
	t.participants[code][username] = c
}

// Unregister removes the entry only if it is still c, so a stale socket
// closing late never removes its replacement.
func (t *Table) Unregister(code, username string, c *Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.participants[code]
	if !ok {
		return false
	}
	if cur, ok := conns[username]; !ok || cur != c {
		return false
	}
	delete(conns, username)
	if len(conns) == 0 {
		delete(t.participants, code)
	}
	return true
}

func (t *Table) Participant(code, username string) (*Conn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.participants[code][username]
	return c, ok
}

// SendToHost is a logged no-op when the host is missing or closed.
func (t *Table) SendToHost(code string, frame any) bool {
	c, ok := t.Host(code)
	if !ok || !c.Open() {
		t.logger.Warn("host not connected", zap.String("code", code))
		return false
	}
	return t.send(c, frame, zap.String("code", code))
}

// SendToParticipant is a logged no-op when the participant is missing or closed.
func (t *Table) SendToParticipant(code, username string, frame any) bool {
	c, ok := t.Participant(code, username)
	if !ok || !c.Open() {
		t.logger.Warn("participant not connected",
			zap.String("code", code),
			zap.String("username", username))
		return false
	}
	return t.send(c, frame, zap.String("code", code), zap.String("username", username))
}

func (t *Table) send(c *Conn, frame any, fields ...zap.Field) bool {
	payload, err := encode(frame)
	if err != nil {
		t.logger.Error("encode frame", append(fields, zap.Error(err))...)
		return false
	}
	return c.Send(payload)
}

// encode passes pre-encoded frames through untouched.
func encode(frame any) ([]byte, error) {
	switch f := frame.(type) {
	case json.RawMessage:
		return f, nil
	case []byte:
		return f, nil
	default:
		return json.Marshal(frame)
	}
}
