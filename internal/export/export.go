// Package export writes session records to durable storage off the request
// path. Writes for one storage key run in submission order; different keys
// proceed independently.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/DoyleJ11/cinemagames-backend/internal/engine"
)

var ErrClosed = errors.New("exporter closed")

// Store is the durable side of an export.
type Store interface {
	Put(ctx context.Context, key string, body []byte) error
}

type Option func(*Exporter)

func WithPrefix(p string) Option { return func(e *Exporter) { e.prefix = p } }

// WithMaxRetries bounds the retries after a failed write. Zero means a
// single attempt.
func WithMaxRetries(n uint64) Option { return func(e *Exporter) { e.maxRetries = n } }

// WithTimeout bounds each write attempt.
func WithTimeout(d time.Duration) Option { return func(e *Exporter) { e.timeout = d } }

func WithInitialInterval(d time.Duration) Option {
	return func(e *Exporter) { e.initialInterval = d }
}

func WithLogger(l *zap.Logger) Option { return func(e *Exporter) { e.logger = l } }

type job struct {
	code string
	body []byte
}

type Exporter struct {
	store           Store
	prefix          string
	maxRetries      uint64
	timeout         time.Duration
	initialInterval time.Duration
	logger          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[string][]job // key -> pending writes, head is in flight
	closed bool
	wg     sync.WaitGroup
}

func New(store Store, opts ...Option) *Exporter {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Exporter{
		store:           store,
		prefix:          "cinemagames",
		maxRetries:      3,
		timeout:         10 * time.Second,
		initialInterval: 200 * time.Millisecond,
		logger:          zap.NewNop(),
		ctx:             ctx,
		cancel:          cancel,
		queues:          make(map[string][]job),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("export")
	return e
}

// Export queues snap and returns immediately.
func (e *Exporter) Export(snap engine.Snapshot) {
	key := Key(e.prefix, snap.Meta)
	body, err := json.MarshalIndent(snap.Record, "", "  ")
	if err != nil {
		e.logger.Error("encode record", zap.String("code", snap.Meta.Code), zap.Error(err))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.logger.Warn("export after close dropped", zap.String("code", snap.Meta.Code), zap.String("key", key))
		return
	}

	pending, busy := e.queues[key]
	e.queues[key] = append(pending, job{code: snap.Meta.Code, body: body})
	if !busy {
		e.wg.Add(1)
		go e.drain(key)
	}
}

// drain runs the queue for key until it is empty.
func (e *Exporter) drain(key string) {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		next := e.queues[key][0]
		e.mu.Unlock()

		e.write(key, next)

		e.mu.Lock()
		rest := e.queues[key][1:]
		if len(rest) == 0 {
			delete(e.queues, key)
			e.mu.Unlock()
			return
		}
		e.queues[key] = rest
		e.mu.Unlock()
	}
}

func (e *Exporter) write(key string, j job) {
	start := time.Now()
	attempts := 0

	op := func() error {
		attempts++
		ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
		defer cancel()
		err := e.store.Put(ctx, key, j.body)
		if err != nil && e.ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.maxRetries), e.ctx)

	if err := backoff.Retry(op, policy); err != nil {
		e.logger.Error("export failed",
			zap.String("code", j.code),
			zap.String("key", key),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return
	}

	e.logger.Info("session exported",
		zap.String("code", j.code),
		zap.String("key", key),
		zap.Int("attempts", attempts),
		zap.Duration("took", time.Since(start)))
}

// Close stops accepting exports and waits for queued ones. If ctx ends
// first, in-flight writes are cancelled and ctx.Err is returned.
func (e *Exporter) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return ctx.Err()
	}
}

// Key is where a session's record lives:
// {prefix}/{location}/{gameType}/{filename}, with {code}.json standing in
// for a missing filename.
func Key(prefix string, m engine.Meta) string {
	name := m.Filename
	if name == "" {
		name = m.Code + ".json"
	}
	key := m.Location + "/" + string(m.Type) + "/" + name
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
