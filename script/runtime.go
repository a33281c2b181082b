package script

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"modernc.org/quickjs"

	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/errors"
	"github.com/wippyai/sassbridge/sass"
	"github.com/wippyai/sassbridge/value"
)

// Config tunes the VM a script runs in.
type Config struct {
	// MemoryLimitMB caps the VM heap. Zero means no limit.
	MemoryLimitMB int
}

// Runtime holds one loaded script. Calls into the VM are serialized.
type Runtime struct {
	mu        sync.Mutex
	vm        *quickjs.VM
	importers int
	functions []string
	broken    error
}

const prelude = `
var sass = {
	NULL: null,
	TRUE: {_type: "boolean", _value: true},
	FALSE: {_type: "boolean", _value: false},
	boolean: function (b) { return b ? sass.TRUE : sass.FALSE; },
	number: function (v, unit) { return {_type: "number", _value: v, _unit: unit || ""}; },
	string: function (s, quoted) { return {_type: "string", _value: String(s), _quoted: !!quoted}; },
	color: function (r, g, b, a) {
		return {_type: "color", _r: r, _g: g, _b: b, _a: a === undefined ? 1 : a};
	},
	list: function (values, comma, bracketed) {
		return {_type: "list", _values: (values || []).map(sass.value), _separator: !!comma, _isBracketed: !!bracketed};
	},
	map: function (keys, values) {
		return {_type: "map", _keys: keys.map(sass.value), _values: values.map(sass.value)};
	},
	error: function (msg) { return {_type: "error", _message: String(msg)}; },
	warning: function (msg) { return {_type: "warning", _message: String(msg)}; },
	value: function (v) {
		if (v === undefined || v === null) return null;
		switch (typeof v) {
		case "boolean": return sass.boolean(v);
		case "number": return sass.number(v, "");
		case "string": return sass.string(v, false);
		}
		return v;
	}
};

var console = {
	log: function () { __sassLog("info", Array.prototype.join.call(arguments, " ")); },
	warn: function () { __sassLog("warn", Array.prototype.join.call(arguments, " ")); },
	error: function () { __sassLog("error", Array.prototype.join.call(arguments, " ")); }
};

function __sassFail(e) {
	return JSON.stringify({__error: String(e && e.message !== undefined ? e.message : e)});
}

function __sassImporters() {
	return typeof importers === "undefined" ? [] : importers;
}

function __sassFunctions() {
	return typeof functions === "undefined" ? {} : functions;
}

function __sassImport(i, file, prev) {
	try {
		var r = __sassImporters()[i](file, prev);
		return JSON.stringify(r === undefined ? null : r);
	} catch (e) {
		return __sassFail(e);
	}
}

function __sassCall(sig, args) {
	try {
		return JSON.stringify(sass.value(__sassFunctions()[sig].apply(null, args)));
	} catch (e) {
		return __sassFail(e);
	}
}
`

// New evaluates source in a fresh VM. The script registers helpers by
// defining the globals importers (an array of functions taking file and
// prev) and functions (an object keyed by signature).
func New(source string, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScript, errors.KindInstantiation, err, "create vm")
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}

	r := &Runtime{vm: vm}
	if err := r.load(source); err != nil {
		vm.Close()
		return nil, err
	}

	Logger().Debug("script loaded",
		zap.Int("importers", r.importers),
		zap.Strings("functions", r.functions))
	return r, nil
}

func (r *Runtime) load(source string) error {
	if err := r.vm.RegisterFunc("__sassLog", scriptLog, false); err != nil {
		return errors.Wrap(errors.PhaseScript, errors.KindInstantiation, err, "register console")
	}
	if _, err := r.vm.Eval(prelude, quickjs.EvalGlobal); err != nil {
		return errors.Wrap(errors.PhaseScript, errors.KindInstantiation, err, "evaluate prelude")
	}
	if _, err := r.vm.Eval(source, quickjs.EvalGlobal); err != nil {
		return errors.Wrap(errors.PhaseScript, errors.KindInvalidInput, err, "evaluate script")
	}

	n, err := r.vm.Eval(`__sassImporters().length`, quickjs.EvalGlobal)
	if err != nil {
		return errors.Wrap(errors.PhaseScript, errors.KindInvalidData, err, "read importers")
	}
	switch n := n.(type) {
	case int:
		r.importers = n
	case float64:
		r.importers = int(n)
	default:
		return errors.InvalidData(errors.PhaseScript, []string{"importers"}, "importers must be an array")
	}

	keys, err := r.vm.Eval(`JSON.stringify(Object.keys(__sassFunctions()))`, quickjs.EvalGlobal)
	if err != nil {
		return errors.Wrap(errors.PhaseScript, errors.KindInvalidData, err, "read functions")
	}
	if err := json.Unmarshal([]byte(fmt.Sprint(keys)), &r.functions); err != nil {
		return errors.InvalidData(errors.PhaseScript, []string{"functions"}, "functions must be an object")
	}
	sort.Strings(r.functions)
	return nil
}

func scriptLog(level, msg string) {
	switch level {
	case "warn":
		Logger().Warn(msg)
	case "error":
		Logger().Error(msg)
	default:
		Logger().Info(msg)
	}
}

// Importers returns one sass.Importer per entry of the script's importers.
func (r *Runtime) Importers() []sass.Importer {
	out := make([]sass.Importer, r.importers)
	for i := range out {
		out[i] = importer{rt: r, index: i}
	}
	return out
}

// Functions returns the script's functions keyed by signature.
func (r *Runtime) Functions() map[string]sass.Function {
	out := make(map[string]sass.Function, len(r.functions))
	for _, sig := range r.functions {
		out[sig] = function{rt: r, sig: sig}
	}
	return out
}

// Close releases the VM. Helpers obtained from the runtime fail afterwards.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vm == nil {
		return
	}
	r.vm.Close()
	r.vm = nil
}

// call evaluates js and returns its string result. Canceling ctx interrupts
// the script, after which the runtime refuses further calls.
func (r *Runtime) call(ctx context.Context, js string) (reply string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.vm == nil:
		return "", errors.NotInitialized(errors.PhaseScript, "script runtime")
	case r.broken != nil:
		return "", r.broken
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	vm := r.vm
	stop := context.AfterFunc(ctx, func() { vm.Interrupt() })
	defer func() {
		stop()
		if p := recover(); p != nil {
			err = errors.New(errors.PhaseScript, errors.KindTrap).Detail("script aborted: %v", p).Build()
		}
		if err != nil && ctx.Err() != nil {
			r.broken = errors.Wrap(errors.PhaseScript, errors.KindTrap, ctx.Err(), "script interrupted")
			err = r.broken
		}
	}()

	res, err := vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", errors.Wrap(errors.PhaseScript, errors.KindTrap, err, "evaluate helper")
	}
	return fmt.Sprint(res), nil
}

type importer struct {
	rt    *Runtime
	index int
}

func (i importer) Import(ctx context.Context, file, prev string) ([]sass.Import, error) {
	js := fmt.Sprintf("__sassImport(%d, %s, %s)", i.index, quote(file), quote(prev))
	reply, err := i.rt.call(ctx, js)
	if err != nil {
		return nil, err
	}
	parsed, err := engine.ParseImports(reply)
	if err != nil || len(parsed) == 0 {
		return nil, err
	}
	imports := make([]sass.Import, len(parsed))
	for n, p := range parsed {
		imports[n] = sass.Import{File: p.File, Contents: p.Contents, Map: p.Map}
	}
	return imports, nil
}

type function struct {
	rt  *Runtime
	sig string
}

func (f function) Call(ctx context.Context, args []value.Value) (value.Value, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScript, errors.KindInvalidData, err, "encode arguments")
	}
	js := fmt.Sprintf("__sassCall(%s, %s)", quote(f.sig), encoded)
	reply, err := f.rt.call(ctx, js)
	if err != nil {
		return nil, err
	}

	var marker struct {
		Error *string `json:"__error"`
	}
	if json.Unmarshal([]byte(reply), &marker) == nil && marker.Error != nil {
		return nil, errors.Callback(f.sig, fmt.Errorf("%s", *marker.Error))
	}
	return value.Decode([]byte(reply))
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
