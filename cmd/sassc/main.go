package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/sassbridge/bridge"
	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/sass"
	"github.com/wippyai/sassbridge/script"
)

var errorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FF6B6B"))

// includeFlag collects repeated -I values.
type includeFlag []string

func (f *includeFlag) String() string { return strings.Join(*f, string(os.PathListSeparator)) }
func (f *includeFlag) Set(v string) error {
	*f = append(*f, filepath.SplitList(v)...)
	return nil
}

type settings struct {
	style      string
	precision  int
	includes   includeFlag
	sourceMap  bool
	embedMap   bool
	outFile    string
	wasmFile   string
	scriptFile string
	async      bool
	brotli     bool
}

func main() {
	var (
		s           settings
		verbose     = flag.Bool("v", false, "Verbose logging")
		info        = flag.Bool("info", false, "Print version information and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.StringVar(&s.style, "style", "nested", "Output style: nested, expanded, compact or compressed")
	flag.IntVar(&s.precision, "precision", 0, "Decimal precision of numbers (0 keeps the engine default)")
	flag.Var(&s.includes, "I", "Include path (repeatable, or list-separator delimited)")
	flag.BoolVar(&s.sourceMap, "sourcemap", false, "Write a source map next to the output file")
	flag.BoolVar(&s.embedMap, "embed-map", false, "Embed the source map in the output")
	flag.StringVar(&s.outFile, "o", "", "Output file (stdout if empty)")
	flag.StringVar(&s.wasmFile, "wasm", os.Getenv("SASSC_WASM"), "libsass WASM module (default $SASSC_WASM, esbuild CSS engine if unset)")
	flag.StringVar(&s.scriptFile, "script", "", "JavaScript file defining importers and functions")
	flag.BoolVar(&s.async, "async", false, "Compile on the background executor")
	flag.BoolVar(&s.brotli, "brotli", false, "Also write a brotli-compressed copy of the output file")
	flag.Parse()

	if *verbose {
		installLogger()
	}

	ctx := context.Background()
	comp, closeEngine, err := newCompiler(ctx, s.wasmFile)
	if err != nil {
		fail(err)
	}
	defer closeEngine()

	switch {
	case *info:
		fmt.Println(comp.Info())
	case *interactive:
		err = runInteractive(comp, &s)
	default:
		err = run(ctx, comp, &s, flag.Arg(0))
	}
	if err != nil {
		closeEngine()
		fail(err)
	}
}

func installLogger() {
	l, err := zap.NewDevelopment()
	if err != nil {
		fail(err)
	}
	bridge.SetLogger(l.Named("bridge"))
	engine.SetLogger(l.Named("engine"))
	sass.SetLogger(l.Named("sass"))
	script.SetLogger(l.Named("script"))
}

// newCompiler picks the WASM engine when a module is named and the esbuild
// CSS engine otherwise.
func newCompiler(ctx context.Context, wasmFile string) (*sass.Compiler, func(), error) {
	if wasmFile == "" {
		return sass.NewCompiler(engine.NewCSSEngine(), nil), func() {}, nil
	}

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read wasm: %w", err)
	}
	eng, err := engine.NewWasmEngine(ctx, data, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load wasm: %w", err)
	}
	return sass.NewCompiler(eng, nil), func() { _ = eng.Close(ctx) }, nil
}

func (s *settings) options(data, file string) *sass.Options {
	opts := &sass.Options{
		File:           file,
		OutFile:        s.outFile,
		SourceMap:      s.sourceMap && s.outFile != "",
		SourceMapEmbed: s.embedMap,
		OutputStyle:    s.style,
		Precision:      s.precision,
		IncludePaths:   s.includes,
	}
	if file == "" {
		opts.Data = &data
	} else {
		opts.IndentedSyntax = strings.HasSuffix(file, ".sass")
	}
	return opts
}

// loadScript attaches the helpers of the -script file to opts. The
// returned function releases the script VM.
func (s *settings) loadScript(opts *sass.Options) (func(), error) {
	if s.scriptFile == "" {
		return func() {}, nil
	}
	src, err := os.ReadFile(s.scriptFile)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	rt, err := script.New(string(src), nil)
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	opts.Importers = rt.Importers()
	opts.Functions = rt.Functions()
	return rt.Close, nil
}

func run(ctx context.Context, comp *sass.Compiler, s *settings, input string) error {
	var opts *sass.Options
	if input == "" || input == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		opts = s.options(string(data), "")
	} else {
		opts = s.options("", input)
	}

	release, err := s.loadScript(opts)
	if err != nil {
		return err
	}
	defer release()

	render := comp.RenderSync
	if s.async {
		render = comp.Render
	}
	res, err := render(ctx, opts)
	if err != nil {
		return err
	}
	return s.write(res)
}

func (s *settings) write(res *sass.Result) error {
	if s.outFile == "" {
		_, err := os.Stdout.Write(res.CSS)
		return err
	}

	if err := os.WriteFile(s.outFile, res.CSS, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if len(res.Map) > 0 && !s.embedMap {
		if err := os.WriteFile(s.outFile+".map", res.Map, 0o644); err != nil {
			return fmt.Errorf("write source map: %w", err)
		}
	}
	if s.brotli {
		if err := writeBrotli(s.outFile+".br", res.CSS); err != nil {
			return fmt.Errorf("write brotli: %w", err)
		}
	}
	return nil
}

func writeBrotli(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := brotli.NewWriterLevel(f, brotli.BestCompression)
	if _, err := w.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// formatError styles err for a terminal and leaves it plain otherwise.
func formatError(err error, tty bool) string {
	msg := fmt.Sprintf("Error: %v", err)
	if tty {
		return errorStyle.Render(msg)
	}
	return msg
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, formatError(err, term.IsTerminal(int(os.Stderr.Fd()))))
	os.Exit(1)
}
