// Package engine defines the compilation engine contract and its two
// implementations.
//
// An engine takes JSON options and returns a JSON result. While compiling it
// may call the Helper any number of times, synchronously, with a descriptor
// for an importer or a custom function, and must use the returned string as
// the answer. A helper failure comes back as {"__error": "<message>"}.
//
// # Engines
//
//	WasmEngine - libsass compiled to WebAssembly, hosted by wazero
//	CSSEngine  - plain CSS bundling and minification with esbuild
//
// # Guest ABI
//
// The WASM guest exports memory, sass_alloc, sass_compile and optionally
// sass_version, and imports sass_host.call_helper. Strings cross the
// boundary as (ptr, len) pairs; returned strings are packed into one i64:
//
//	packed = uint64(ptr)<<32 | uint64(len)
//
// Each Compile instantiates the compiled module anew, so a WasmEngine is safe
// for concurrent use and no state leaks between compilations.
//
// # Result Format
//
//	{"css": "...", "map": "...", "includedFiles": ["..."]}
//	{"error": "<json: status, file, line, column, message, formatted>"}
//	{"optionsError": "..."}
//
// # CSS Engine
//
// CSSEngine resolves @import through the host importers in order, then
// through the include paths. It rejects indented syntax and custom functions
// with an options error.
package engine
