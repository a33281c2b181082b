package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/transfer"
)

type messageKind int

const (
	msgResult messageKind = iota
	msgCallHelper
	msgChunk
)

func (k messageKind) String() string {
	switch k {
	case msgResult:
		return "result"
	case msgCallHelper:
		return "callHelper"
	case msgChunk:
		return "chunk"
	default:
		return "unknown"
	}
}

// message travels from the executor to the coordinator of one request.
type message struct {
	err    error
	input  []byte
	result []byte
	offset int
	kind   messageKind
}

// task is one request handed to the executor together with its port.
type task struct {
	ctx     context.Context
	port    chan<- message
	payload []byte
	id      uint64
}

// executor owns the region and runs requests one after another.
type executor struct {
	engine engine.Engine
	region *transfer.Region
	tasks  chan task
}

func newExecutor(eng engine.Engine, capacity, queue int) *executor {
	return &executor{
		engine: eng,
		region: transfer.NewRegion(capacity),
		tasks:  make(chan task, queue),
	}
}

// loop never returns. A goroutine does not hold the process open, so the
// executor needs no teardown.
func (x *executor) loop() {
	for t := range x.tasks {
		x.run(t)
	}
}

func (x *executor) run(t task) {
	result, err := x.compile(t)
	t.port <- message{kind: msgResult, result: result, err: err}
}

func (x *executor) compile(t task) ([]byte, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	if err := x.region.Acquire(t.id); err != nil {
		return nil, err
	}
	defer x.region.Release(t.id)

	Logger().Debug("executor running request", zap.Uint64("request", t.id), zap.Int("bytes", len(t.payload)))

	return compileSafely(t.ctx, x.engine, t.payload, func(desc []byte) string {
		data, err := x.region.Receive(func(offset int) {
			if offset == 0 {
				t.port <- message{kind: msgCallHelper, input: desc}
				return
			}
			t.port <- message{kind: msgChunk, offset: offset}
		})
		if err != nil {
			return ErrorMarker(err)
		}
		return string(data)
	})
}
