package sass

import (
	"context"
	"regexp"

	"github.com/wippyai/sassbridge/errors"
	"github.com/wippyai/sassbridge/value"
)

// Import is one stylesheet returned by an importer. Either File or
// Contents should be set.
type Import struct {
	File     string `json:"file,omitempty"`
	Contents string `json:"contents,omitempty"`
	Map      string `json:"map,omitempty"`
}

// Importer resolves @import rules. Returning no imports and no error
// passes the request on to the next importer.
type Importer interface {
	Import(ctx context.Context, file, prev string) ([]Import, error)
}

// ImporterFunc adapts a function to Importer.
type ImporterFunc func(ctx context.Context, file, prev string) ([]Import, error)

func (f ImporterFunc) Import(ctx context.Context, file, prev string) ([]Import, error) {
	return f(ctx, file, prev)
}

// ImporterCallback is an importer that reports through done, possibly
// later and from another goroutine. Only the first call to done counts.
type ImporterCallback func(file, prev string, done func([]Import, error))

func (f ImporterCallback) Import(ctx context.Context, file, prev string) ([]Import, error) {
	return await(ctx, func(done func([]Import, error)) { f(file, prev, done) })
}

// Function implements a custom Sass function.
type Function interface {
	Call(ctx context.Context, args []value.Value) (value.Value, error)
}

// FunctionFunc adapts a function to Function.
type FunctionFunc func(ctx context.Context, args []value.Value) (value.Value, error)

func (f FunctionFunc) Call(ctx context.Context, args []value.Value) (value.Value, error) {
	return f(ctx, args)
}

// FunctionCallback is a function that reports through done, possibly later
// and from another goroutine. Only the first call to done counts.
type FunctionCallback func(args []value.Value, done func(value.Value, error))

func (f FunctionCallback) Call(ctx context.Context, args []value.Value) (value.Value, error) {
	return await(ctx, func(done func(value.Value, error)) { f(args, done) })
}

func await[T any](ctx context.Context, start func(done func(T, error))) (T, error) {
	type answer struct {
		v   T
		err error
	}
	ch := make(chan answer, 1)
	start(func(v T, err error) {
		select {
		case ch <- answer{v, err}:
		default:
		}
	})

	select {
	case a := <-ch:
		return a.v, a.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

var (
	callSignature = regexp.MustCompile(`^\w+\(.*\)$`)
	bareSignature = regexp.MustCompile(`^\w+$`)
)

// normalizeSignature accepts special and full signatures as they are. A
// bare name becomes "name(...)" and its function receives the elements of
// the single list argument the engine passes.
func normalizeSignature(sig string, fn Function) (string, Function, error) {
	switch {
	case sig == "*", sig == "@warn", sig == "@error", sig == "@debug", callSignature.MatchString(sig):
		return sig, fn, nil
	case bareSignature.MatchString(sig):
		return sig + "(...)", spread{fn}, nil
	default:
		return "", nil, errors.InvalidInput(errors.PhaseOptions, "Bad function signature: "+sig)
	}
}

type spread struct {
	fn Function
}

func (s spread) Call(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return nil, errors.InvalidInput(errors.PhaseValue, "Expected a list from libsass")
	}
	list, ok := args[0].(*value.List)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseValue, "Expected a list from libsass")
	}
	spreadArgs := make([]value.Value, 0, list.Len()+len(args)-1)
	spreadArgs = append(spreadArgs, list.Values()...)
	spreadArgs = append(spreadArgs, args[1:]...)
	return s.fn.Call(ctx, spreadArgs)
}
