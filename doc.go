// Package sassbridge compiles Sass through an engine that calls back into Go
// for @import resolution and custom functions.
//
// The engine call is synchronous, but importers and functions may block,
// do I/O or answer through a callback. The bridge runs the engine on a
// background executor and moves each helper answer back to it through a
// fixed-size shared region, one chunk at a time.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	sassbridge/
//	├── sass/       Public API: Options, Render, RenderSync, Importer, Function
//	├── bridge/     Coordinator, background executor and per-request ports
//	├── transfer/   Shared region and signal word for chunked transfer
//	├── engine/     Engine contract, libsass on wazero, esbuild CSS engine
//	├── value/      Serialized Sass values
//	├── script/     Importers and functions written in JavaScript (QuickJS)
//	├── errors/     Structured error types for debugging
//	└── cmd/sassc/  Command line compiler
//
// # Quick Start
//
// Compile a string with the default engine:
//
//	src := "a { color: red }"
//	res, err := sass.Render(ctx, &sass.Options{
//	    Data:        &src,
//	    OutputStyle: "compressed",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(string(res.CSS))
//
// Compile real Sass with a libsass WebAssembly build:
//
//	eng, err := engine.NewWasmEngine(ctx, wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//	sass.SetDefault(sass.NewCompiler(eng, nil))
//
// # Thread Safety
//
// Compiler is safe for concurrent use. All Render calls on one Compiler
// share a single executor and run one at a time; RenderSync runs on the
// caller's goroutine and may run concurrently with other calls.
//
// # Transfer Protocol
//
// A helper answer of any size crosses the shared region in chunks of at most
// the region capacity. The signal word carries the total length plus one, so
// an empty answer is distinguishable from "not yet written". The executor
// waits on the signal without spinning.
package sassbridge
