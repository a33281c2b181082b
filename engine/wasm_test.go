package engine

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/sassbridge/errors"
)

// echoGuest is a minimal guest implementing the ABI. sass_alloc is a bump
// allocator starting at 1024 and sass_compile forwards its input to
// call_helper, returning the helper's reply as the compile result.
var echoGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32 i32) -> i64, (i32) -> i32
	0x01, 0x0c, 0x02,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7e,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	// import sass_host.call_helper
	0x02, 0x19, 0x01,
	0x09, 's', 'a', 's', 's', '_', 'h', 'o', 's', 't',
	0x0b, 'c', 'a', 'l', 'l', '_', 'h', 'e', 'l', 'p', 'e', 'r',
	0x00, 0x00,
	// functions
	0x03, 0x03, 0x02, 0x01, 0x00,
	// memory, one page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// heap pointer global
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,
	// exports
	0x07, 0x26, 0x03,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x0a, 's', 'a', 's', 's', '_', 'a', 'l', 'l', 'o', 'c', 0x00, 0x01,
	0x0c, 's', 'a', 's', 's', '_', 'c', 'o', 'm', 'p', 'i', 'l', 'e', 0x00, 0x02,
	// code
	0x0a, 0x16, 0x02,
	0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b,
	0x08, 0x00, 0x20, 0x00, 0x20, 0x01, 0x10, 0x00, 0x0b,
}

func newEchoEngine(t *testing.T, cfg *WasmConfig) *WasmEngine {
	t.Helper()
	ctx := context.Background()
	e, err := NewWasmEngine(ctx, echoGuest, cfg)
	if err != nil {
		t.Fatalf("NewWasmEngine failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func TestNewWasmEngine_Configs(t *testing.T) {
	cache := wazero.NewCompilationCache()
	defer cache.Close(context.Background())

	tests := []struct {
		cfg  *WasmConfig
		name string
	}{
		{nil, "nil config"},
		{&WasmConfig{}, "default config"},
		{&WasmConfig{MemoryLimitPages: 16}, "1MB limit"},
		{&WasmConfig{CompilationCache: cache}, "shared cache"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEchoEngine(t, tc.cfg)
			if e.Version() != "unknown" {
				t.Errorf("Version() = %q, want unknown", e.Version())
			}
		})
	}
}

func TestWasmEngine_CompileRoundTrip(t *testing.T) {
	e := newEchoEngine(t, nil)

	options := []byte(`{"data":"a{color:red}"}`)
	calls := 0
	out, err := e.Compile(context.Background(), options, func(desc []byte) string {
		calls++
		if string(desc) != string(options) {
			t.Errorf("descriptor = %q, want %q", desc, options)
		}
		return `{"css":"a{color:red}"}`
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if string(out) != `{"css":"a{color:red}"}` {
		t.Errorf("Compile() = %s", out)
	}
	if calls != 1 {
		t.Errorf("helper called %d times, want 1", calls)
	}
}

func TestWasmEngine_ConcurrentCompiles(t *testing.T) {
	e := newEchoEngine(t, nil)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			want := `{"css":"` + string(rune('a'+i)) + `"}`
			out, err := e.Compile(context.Background(), []byte(want), func(desc []byte) string {
				return string(desc)
			})
			if err == nil && string(out) != want {
				err = stderrors.New("got " + string(out) + " want " + want)
			}
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestWasmEngine_NilHelperGetsMarker(t *testing.T) {
	e := newEchoEngine(t, nil)

	out, err := e.Compile(context.Background(), []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if string(out) != `{"__error":"no helper bound to this compilation"}` {
		t.Errorf("Compile() = %s", out)
	}
}

func TestWasmEngine_InvalidJSONResult(t *testing.T) {
	e := newEchoEngine(t, nil)

	_, err := e.Compile(context.Background(), []byte(`{}`), func([]byte) string {
		return "not json"
	})
	var se *errors.Error
	if !stderrors.As(err, &se) || se.Kind != errors.KindInvalidData {
		t.Fatalf("err = %v, want invalid data", err)
	}
}

func TestNewWasmEngine_MissingExports(t *testing.T) {
	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	_, err := NewWasmEngine(context.Background(), empty, nil)
	var se *errors.Error
	if !stderrors.As(err, &se) {
		t.Fatalf("err = %v, want structured error", err)
	}
	if se.Phase != errors.PhaseLoad || se.Kind != errors.KindNotFound {
		t.Errorf("err = %v, want load/not_found", se)
	}
}

// badSignatures exports sass_alloc and sass_compile, both typed () -> ().
func badSignatures() []byte {
	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, 0x01, 0x04, 0x01, 0x60, 0x00, 0x00) // type: () -> ()
	mod = append(mod, 0x03, 0x03, 0x02, 0x00, 0x00)       // two functions of type 0

	exports := []byte{0x02}
	for i, name := range []string{ExportAlloc, ExportCompile} {
		exports = append(exports, byte(len(name)))
		exports = append(exports, name...)
		exports = append(exports, 0x00, byte(i))
	}
	mod = append(mod, 0x07, byte(len(exports)))
	mod = append(mod, exports...)

	return append(mod, 0x0a, 0x07, 0x02, 0x02, 0x00, 0x0b, 0x02, 0x00, 0x0b)
}

func TestNewWasmEngine_WrongExportSignature(t *testing.T) {
	_, err := NewWasmEngine(context.Background(), badSignatures(), nil)
	var se *errors.Error
	if !stderrors.As(err, &se) {
		t.Fatalf("err = %v, want structured error", err)
	}
	if se.Phase != errors.PhaseLoad || se.Kind != errors.KindTypeMismatch {
		t.Errorf("err = %v, want load/type_mismatch", se)
	}
	if !strings.Contains(se.Detail, "got () -> ()") {
		t.Errorf("detail = %q", se.Detail)
	}
}

func TestSignature(t *testing.T) {
	got := signature([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64})
	if got != "(i32, i32) -> (i64)" {
		t.Errorf("signature = %q", got)
	}
}

func TestNewWasmEngine_InvalidBinary(t *testing.T) {
	_, err := NewWasmEngine(context.Background(), []byte("not wasm"), nil)
	if err == nil {
		t.Fatal("expected error for invalid binary")
	}
}

func TestPackUnpack(t *testing.T) {
	tests := []struct {
		ptr, length uint32
	}{
		{0, 0},
		{1024, 17},
		{0xFFFFFFFF, 0xFFFFFFFF},
	}
	for _, tt := range tests {
		p, l := unpack(pack(tt.ptr, tt.length))
		if p != tt.ptr || l != tt.length {
			t.Errorf("unpack(pack(%d, %d)) = (%d, %d)", tt.ptr, tt.length, p, l)
		}
	}
}
