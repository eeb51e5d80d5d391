package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const outboxSize = 32

// Conn is one live socket. Frames are queued and written by a single
// writer goroutine; a full queue drops the frame instead of blocking the
// caller.
type Conn struct {
	ID string

	ws           *websocket.Conn
	out          chan []byte
	writeTimeout time.Duration
	logger       *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(c *websocket.Conn, writeTimeout time.Duration, logger *zap.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		ID:           id,
		ws:           c,
		out:          make(chan []byte, outboxSize),
		writeTimeout: writeTimeout,
		logger:       logger.With(zap.String("conn", id)),
		closed:       make(chan struct{}),
	}
}

// Send queues payload and reports whether it was accepted.
func (c *Conn) Send(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.out <- payload:
		return true
	case <-c.closed:
		return false
	default:
		c.logger.Warn("outbox full, dropping frame")
		return false
	}
}

func (c *Conn) Open() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Conn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case payload := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				c.Close()
				return
			}
		}
	}
}
