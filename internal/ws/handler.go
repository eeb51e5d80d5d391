package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

type Options struct {
	// OriginPatterns lists allowed browser origins; "*" allows any.
	OriginPatterns []string
	WriteTimeout   time.Duration
	ReadLimit      int64
}

func Handler(router *Router, opts Options, logger *zap.Logger) http.HandlerFunc {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	logger = logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Debug("accept failed", zap.Error(err))
			return
		}
		if opts.ReadLimit > 0 {
			conn.SetReadLimit(opts.ReadLimit)
		}

		c := newConn(conn, opts.WriteTimeout, logger)
		peer := NewPeer(c, CodeFromPath(r.URL.Path))
		ctx := r.Context()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(ctx)
		written := make(chan struct{})
		go func() {
			defer close(written)
			c.writePump(writeCtx)
		}()

		defer func() {
			c.Close()
			router.Closed(ctx, peer)
			writeCancel()
			<-written
			conn.Close(websocket.StatusNormalClosure, "bye")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					logger.Debug("socket closed", zap.String("conn", c.ID))
				default:
					if !errors.Is(err, context.Canceled) {
						logger.Debug("socket read failed", zap.String("conn", c.ID), zap.Error(err))
					}
				}
				return
			}

			router.Dispatch(ctx, peer, data)
		}
	}
}

// CodeFromPath returns the last path segment, which web clients use to
// name their session (ws://host/ABC123).
func CodeFromPath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p[strings.LastIndex(p, "/")+1:]
}
