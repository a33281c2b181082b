package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/sassbridge/errors"
)

// Guest ABI. All strings cross the boundary as (ptr, len) pairs in guest
// memory; functions returning a string pack it as ptr<<32 | len.
const (
	HostModule     = "sass_host"
	HostCallHelper = "call_helper" // (ptr, len i32) -> i64

	ExportMemory  = "memory"
	ExportAlloc   = "sass_alloc"   // (size i32) -> i32
	ExportCompile = "sass_compile" // (ptr, len i32) -> i64
	ExportVersion = "sass_version" // () -> i64, optional
)

// WasmConfig holds configuration for the WASM engine
type WasmConfig struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32

	// CompilationCache lets several engines share compiled machine code.
	CompilationCache wazero.CompilationCache
}

// WasmEngine runs a libsass build compiled to WebAssembly. Every Compile
// gets a fresh instance, so the engine is safe for concurrent use.
type WasmEngine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	version  string
}

type helperKey struct{}

// NewWasmEngine compiles the guest and checks that it exports the ABI.
func NewWasmEngine(ctx context.Context, wasmBytes []byte, cfg *WasmConfig) (*WasmEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CompilationCache != nil {
			runtimeCfg = runtimeCfg.WithCompilationCache(cfg.CompilationCache)
		}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Load("instantiate wasi", err)
	}

	_, err := rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithFunc(hostCallHelper).
		Export(HostCallHelper).
		Instantiate(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Load("instantiate host module", err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Load("compile module", err)
	}

	if err := checkExports(compiled); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	e := &WasmEngine{runtime: rt, compiled: compiled}
	if _, ok := compiled.ExportedFunctions()[ExportVersion]; ok {
		e.version, err = e.readVersion(ctx)
		if err != nil {
			Logger().Warn("read guest version", zap.Error(err))
		}
	}

	Logger().Debug("wasm engine ready",
		zap.Int("bytes", len(wasmBytes)),
		zap.String("version", e.version))
	return e, nil
}

func checkExports(compiled wazero.CompiledModule) error {
	funcs := compiled.ExportedFunctions()

	want := map[string][2][]api.ValueType{
		ExportAlloc:   {{api.ValueTypeI32}, {api.ValueTypeI32}},
		ExportCompile: {{api.ValueTypeI32, api.ValueTypeI32}, {api.ValueTypeI64}},
	}
	for name, sig := range want {
		def, ok := funcs[name]
		if !ok {
			return errors.NotFound(errors.PhaseLoad, "export", name)
		}
		if !sameTypes(def.ParamTypes(), sig[0]) || !sameTypes(def.ResultTypes(), sig[1]) {
			return errors.TypeMismatch(errors.PhaseLoad, []string{name},
				signature(sig[0], sig[1]), signature(def.ParamTypes(), def.ResultTypes()))
		}
	}
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return errors.NotFound(errors.PhaseLoad, "export", ExportMemory)
	}
	return nil
}

func sameTypes(a, b []api.ValueType) bool {
	return bytes.Equal(a, b)
}

// signature renders a function type as "(i32, i32) -> (i64)".
func signature(params, results []api.ValueType) string {
	names := func(types []api.ValueType) string {
		out := make([]string, len(types))
		for i, t := range types {
			out[i] = api.ValueTypeName(t)
		}
		return strings.Join(out, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", names(params), names(results))
}

// Version returns the version reported by the guest, if any.
func (e *WasmEngine) Version() string {
	if e.version == "" {
		return "unknown"
	}
	return e.version
}

// Compile instantiates the guest, hands it the options and runs sass_compile.
// Helper requests raised by the guest are answered by helper on this goroutine.
func (e *WasmEngine) Compile(ctx context.Context, options []byte, helper Helper) ([]byte, error) {
	mod, err := e.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	defer mod.Close(ctx)

	ptr, err := writeGuest(ctx, mod, options)
	if err != nil {
		return nil, err
	}

	callCtx := context.WithValue(ctx, helperKey{}, helper)
	res, err := mod.ExportedFunction(ExportCompile).Call(callCtx, uint64(ptr), uint64(len(options)))
	if err != nil {
		Logger().Debug("guest trapped", zap.Error(err))
		return nil, errors.Trap(ExportCompile, err)
	}

	out, err := readPacked(mod, res[0])
	if err != nil {
		return nil, err
	}
	if !json.Valid(out) {
		return nil, errors.InvalidData(errors.PhaseEngine, []string{ExportCompile}, "guest returned invalid JSON")
	}
	return out, nil
}

// Close releases the wazero runtime.
func (e *WasmEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *WasmEngine) instantiate(ctx context.Context) (api.Module, error) {
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize")
	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, cfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	return mod, nil
}

func (e *WasmEngine) readVersion(ctx context.Context) (string, error) {
	mod, err := e.instantiate(ctx)
	if err != nil {
		return "", err
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(ExportVersion)
	res, err := fn.Call(ctx)
	if err != nil {
		return "", errors.Trap(ExportVersion, err)
	}
	b, err := readPacked(mod, res[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// hostCallHelper is the guest's only way back into the host. It blocks
// until the helper bound to ctx answers.
func hostCallHelper(ctx context.Context, m api.Module, ptr, length uint32) uint64 {
	desc, ok := m.Memory().Read(ptr, length)
	if !ok {
		panic(errors.OutOfBounds(errors.PhaseEngine, []string{HostCallHelper}, int(ptr)+int(length), int(m.Memory().Size())))
	}
	desc = bytes.Clone(desc)

	var reply string
	if helper, _ := ctx.Value(helperKey{}).(Helper); helper != nil {
		reply = helper(desc)
	} else {
		reply = `{"__error":"no helper bound to this compilation"}`
	}

	out, err := writeGuest(ctx, m, []byte(reply))
	if err != nil {
		panic(err)
	}
	return pack(out, uint32(len(reply)))
}

func writeGuest(ctx context.Context, m api.Module, data []byte) (uint32, error) {
	alloc := m.ExportedFunction(ExportAlloc)
	if alloc == nil {
		return 0, errors.NotFound(errors.PhaseEngine, "export", ExportAlloc)
	}
	res, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, errors.Trap(ExportAlloc, err)
	}
	ptr := uint32(res[0])
	if !m.Memory().Write(ptr, data) {
		return 0, errors.OutOfBounds(errors.PhaseEngine, []string{ExportAlloc}, int(ptr)+len(data), int(m.Memory().Size()))
	}
	return ptr, nil
}

func readPacked(m api.Module, packed uint64) ([]byte, error) {
	ptr, length := unpack(packed)
	b, ok := m.Memory().Read(ptr, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseEngine, []string{"result"}, int(ptr)+int(length), int(m.Memory().Size()))
	}
	return bytes.Clone(b), nil
}

func pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

func (e *WasmEngine) String() string {
	return fmt.Sprintf("wasm(%s)", e.Version())
}
