package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/transfer"
)

// DefaultQueueSize is how many requests may wait for the executor before
// new requests block their coordinators.
const DefaultQueueSize = 64

// Config holds configuration for a Bridge
type Config struct {
	// BufferSize is the capacity of the shared region in bytes.
	// 0 means transfer.DefaultCapacity.
	BufferSize int

	// QueueSize bounds the executor's request queue.
	// 0 means DefaultQueueSize.
	QueueSize int
}

// Bridge runs engine compilations on a background executor while answering
// the engine's helper requests on the caller's side.
type Bridge struct {
	engine engine.Engine
	exec   *executor
	cfg    Config
	once   sync.Once
	nextID atomic.Uint64

	executors   atomic.Uint64
	regions     atomic.Uint64
	requests    atomic.Uint64
	helperCalls atomic.Uint64
	chunks      atomic.Uint64
}

// Stats is a snapshot of a Bridge's counters.
type Stats struct {
	ExecutorsStarted uint64
	RegionsAllocated uint64
	Requests         uint64
	HelperCalls      uint64
	Chunks           uint64
}

// New creates a bridge over eng. The executor is started by the first request.
func New(eng engine.Engine, cfg *Config) *Bridge {
	b := &Bridge{engine: eng}
	if cfg != nil {
		b.cfg = *cfg
	}
	if b.cfg.BufferSize <= 0 {
		b.cfg.BufferSize = transfer.DefaultCapacity
	}
	if b.cfg.QueueSize <= 0 {
		b.cfg.QueueSize = DefaultQueueSize
	}
	return b
}

// Engine returns the engine the bridge drives.
func (b *Bridge) Engine() engine.Engine {
	return b.engine
}

// Stats returns the current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		ExecutorsStarted: b.executors.Load(),
		RegionsAllocated: b.regions.Load(),
		Requests:         b.requests.Load(),
		HelperCalls:      b.helperCalls.Load(),
		Chunks:           b.chunks.Load(),
	}
}

func (b *Bridge) startExecutor() {
	b.exec = newExecutor(b.engine, b.cfg.BufferSize, b.cfg.QueueSize)
	b.executors.Add(1)
	b.regions.Add(1)
	go b.exec.loop()

	Logger().Info("executor started", zap.Int("buffer", b.exec.region.Cap()))
}

// Start submits payload and returns immediately. h answers the engine's
// helper requests; it is called on a goroutine owned by the bridge, one
// request at a time.
func (b *Bridge) Start(ctx context.Context, payload []byte, h Helper) *Pending {
	b.once.Do(b.startExecutor)
	b.requests.Add(1)

	p := newPending(b.nextID.Add(1))
	port := make(chan message, 1)
	go b.coordinate(ctx, p, port, payload, h)

	return p
}

// Run submits payload and waits for its result.
func (b *Bridge) Run(ctx context.Context, payload []byte, h Helper) ([]byte, error) {
	return b.Start(ctx, payload, h).Wait(ctx)
}

// coordinate hands the request to the executor and serves its port until
// the result arrives. Every callHelper is answered, even after p has been
// rejected, so the executor is never left parked.
func (b *Bridge) coordinate(ctx context.Context, p *Pending, port chan message, payload []byte, h Helper) {
	log := Logger().With(zap.Uint64("request", p.id))

	b.exec.tasks <- task{ctx: ctx, port: port, payload: payload, id: p.id}
	var encoded []byte

	for {
		msg := <-port
		switch msg.kind {
		case msgResult:
			if msg.err != nil {
				log.Debug("request failed", zap.Error(msg.err))
			} else {
				log.Debug("request finished", zap.Int("bytes", len(msg.result)))
			}
			p.settle(msg.result, msg.err)
			return

		case msgCallHelper:
			b.helperCalls.Add(1)
			encoded = []byte(b.dispatch(ctx, p, msg.input, h))
			log.Debug("helper answered", zap.Int("bytes", len(encoded)))
			b.announce(log, p, encoded, 0)

		case msgChunk:
			b.announce(log, p, encoded, msg.offset)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, p *Pending, desc []byte, h Helper) string {
	select {
	case <-p.done:
		return ErrorMarker(fmt.Errorf("request %d already settled", p.id))
	default:
	}

	in, err := DecodeInput(desc)
	if err != nil {
		Logger().Warn("malformed helper descriptor", zap.Uint64("request", p.id), zap.Error(err))
		p.settle(nil, err)
		return ErrorMarker(err)
	}
	out := answer(ctx, h, in)
	if len(out) > transfer.MaxPayload {
		return ErrorMarker(fmt.Errorf("helper result of %d bytes exceeds the transfer limit", len(out)))
	}
	return out
}

func (b *Bridge) announce(log *zap.Logger, p *Pending, payload []byte, offset int) {
	if err := b.exec.region.Announce(p.id, payload, offset); err != nil {
		log.Error("announce failed", zap.Int("offset", offset), zap.Error(err))
		p.settle(nil, err)
		b.exec.region.Abort()
		return
	}
	b.chunks.Add(1)
}
