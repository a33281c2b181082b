package sass

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/sassbridge/bridge"
	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/errors"
)

// Version is the version of this module.
const Version = "0.1.0"

// emulatedVersion is the node-sass version reported by Info. Tooling that
// checks for node-sass ^4 accepts it.
const emulatedVersion = "4.12.0"

// Compiler renders stylesheets with one engine. Render goes through a
// bridge whose executor is shared by every Render call on this Compiler.
type Compiler struct {
	engine engine.Engine
	bridge *bridge.Bridge
}

// NewCompiler creates a compiler over eng. cfg configures the bridge used by
// Render and may be nil.
func NewCompiler(eng engine.Engine, cfg *bridge.Config) *Compiler {
	return &Compiler{engine: eng, bridge: bridge.New(eng, cfg)}
}

// Bridge returns the bridge used by Render.
func (c *Compiler) Bridge() *bridge.Bridge {
	return c.bridge
}

// Render compiles on the background executor. Importers and functions run
// on a bridge goroutine and may block or answer asynchronously.
func (c *Compiler) Render(ctx context.Context, opts *Options) (*Result, error) {
	comp, payload, err := prepare(opts)
	if err != nil {
		return nil, err
	}
	raw, err := c.bridge.Run(ctx, payload, comp)
	if err != nil {
		return nil, err
	}
	return finish(raw, comp)
}

// RenderCallback is Render reporting through callback on its own goroutine.
func (c *Compiler) RenderCallback(ctx context.Context, opts *Options, callback func(*Result, error)) {
	comp, payload, err := prepare(opts)
	if err != nil {
		go callback(nil, err)
		return
	}
	p := c.bridge.Start(ctx, payload, comp)
	go func() {
		raw, err := p.Wait(ctx)
		if err != nil {
			callback(nil, err)
			return
		}
		callback(finish(raw, comp))
	}()
}

// RenderSync calls the engine directly on the calling goroutine, bypassing
// the bridge. Importers and functions are called in place.
func (c *Compiler) RenderSync(ctx context.Context, opts *Options) (*Result, error) {
	comp, payload, err := prepare(opts)
	if err != nil {
		return nil, err
	}
	raw, err := bridge.Direct(ctx, c.engine, payload, comp)
	if err != nil {
		return nil, err
	}
	return finish(raw, comp)
}

// Info describes the emulated node-sass version, the engine and this module,
// one tab-separated line each.
func (c *Compiler) Info() string {
	engineVersion := "unknown"
	if v, ok := c.engine.(engine.Versioner); ok {
		engineVersion = v.Version()
	}
	return fmt.Sprintf("node-sass\t%s\t(compatible)\t[compatible]\n", emulatedVersion) +
		fmt.Sprintf("libsass  \t%s\t(Sass Compiler)\t[C/C++]\n", engineVersion) +
		fmt.Sprintf("sassbridge\t%s\t(Wrapper)\t[Go]", Version)
}

func prepare(opts *Options) (*compilation, []byte, error) {
	comp, err := preprocess(opts)
	if err != nil {
		return nil, nil, err
	}
	payload, err := json.Marshal(&comp.options)
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseOptions, errors.KindInvalidData, err, "encode options")
	}
	Logger().Debug("render",
		zap.Int("importers", len(comp.importers)),
		zap.Int("functions", len(comp.functions)),
		zap.Int("bytes", len(payload)))
	return comp, payload, nil
}

func finish(raw []byte, comp *compilation) (*Result, error) {
	res, err := postprocess(raw, comp)
	if err != nil {
		Logger().Debug("render failed", zap.Error(err))
		return nil, err
	}
	Logger().Debug("render finished",
		zap.Duration("duration", res.Stats.Duration),
		zap.Int("css", len(res.CSS)))
	return res, nil
}

var (
	defaultMu       sync.Mutex
	defaultCompiler *Compiler
)

// Default returns the process-wide compiler, creating it over a CSSEngine
// on first use.
func Default() *Compiler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCompiler == nil {
		defaultCompiler = NewCompiler(engine.NewCSSEngine(), nil)
	}
	return defaultCompiler
}

// SetDefault replaces the process-wide compiler.
func SetDefault(c *Compiler) {
	defaultMu.Lock()
	defaultCompiler = c
	defaultMu.Unlock()
}

// Render compiles with the default compiler. See Compiler.Render.
func Render(ctx context.Context, opts *Options) (*Result, error) {
	return Default().Render(ctx, opts)
}

// RenderCallback compiles with the default compiler. See Compiler.RenderCallback.
func RenderCallback(ctx context.Context, opts *Options, callback func(*Result, error)) {
	Default().RenderCallback(ctx, opts, callback)
}

// RenderSync compiles with the default compiler. See Compiler.RenderSync.
func RenderSync(ctx context.Context, opts *Options) (*Result, error) {
	return Default().RenderSync(ctx, opts)
}

// Info describes the default compiler. See Compiler.Info.
func Info() string {
	return Default().Info()
}
