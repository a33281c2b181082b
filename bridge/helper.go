package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/errors"
)

// Helper answers helper requests on the host side. Implementations may
// block for as long as they need; the executor stays parked meanwhile.
type Helper interface {
	Call(ctx context.Context, in Input) (string, error)
}

// HelperFunc adapts an ordinary function to Helper.
type HelperFunc func(ctx context.Context, in Input) (string, error)

// Call implements Helper.
func (f HelperFunc) Call(ctx context.Context, in Input) (string, error) {
	return f(ctx, in)
}

// CallbackFunc is a helper that reports its answer through done, possibly
// from another goroutine and possibly after it has returned. Only the first
// call to done counts.
type CallbackFunc func(in Input, done func(string, error))

// Call implements Helper. It waits for done or for ctx to end.
func (f CallbackFunc) Call(ctx context.Context, in Input) (string, error) {
	type answer struct {
		out string
		err error
	}
	ch := make(chan answer, 1)
	f(in, func(out string, err error) {
		select {
		case ch <- answer{out, err}:
		default:
		}
	})

	select {
	case a := <-ch:
		return a.out, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ErrorMarker encodes err as the value engines recognise as a failed helper.
func ErrorMarker(err error) string {
	b, _ := json.Marshal(struct {
		Error string `json:"__error"`
	}{err.Error()})
	return string(b)
}

// answer runs the helper for one descriptor and always produces a reply.
// Failures and panics become error markers.
func answer(ctx context.Context, h Helper, in Input) (out string) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("helper panicked", zap.Any("panic", r))
			out = ErrorMarker(fmt.Errorf("helper panicked: %v", r))
		}
	}()

	if h == nil {
		return ErrorMarker(fmt.Errorf("no helper registered"))
	}
	out, err := h.Call(ctx, in)
	if err != nil {
		Logger().Warn("helper failed", zap.Error(err))
		return ErrorMarker(err)
	}
	return out
}

// Direct runs the engine on the calling goroutine, answering helper
// requests by calling h in place. No executor or region is involved.
// A malformed descriptor fails the compilation once the engine returns,
// as it does on the bridge.
func Direct(ctx context.Context, eng engine.Engine, payload []byte, h Helper) ([]byte, error) {
	var malformed error
	out, err := compileSafely(ctx, eng, payload, func(desc []byte) string {
		in, err := DecodeInput(desc)
		if err != nil {
			if malformed == nil {
				Logger().Warn("malformed helper descriptor", zap.Error(err))
				malformed = err
			}
			return ErrorMarker(err)
		}
		return answer(ctx, h, in)
	})
	if malformed != nil {
		return nil, malformed
	}
	return out, err
}

// compileSafely turns an engine panic into an error.
func compileSafely(ctx context.Context, eng engine.Engine, payload []byte, h engine.Helper) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.New(errors.PhaseEngine, errors.KindTrap).
				Detail("engine panicked: %v", r).
				Build()
		}
	}()
	return eng.Compile(ctx, payload, h)
}
