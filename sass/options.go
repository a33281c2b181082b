package sass

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/errors"
)

// Options configures one compilation. Either Data or File must be set.
// Data is a pointer so that an empty stylesheet differs from no data.
type Options struct {
	Data    *string
	File    string
	OutFile string

	// SourceMap enables a source map written next to OutFile.
	// SourceMapPath names the map explicitly and takes precedence.
	SourceMap     bool
	SourceMapPath string
	SourceMapRoot string

	// Linefeed is one of cr, crlf, lf or lfcr.
	Linefeed    string
	IndentWidth int
	// IndentType is "space" or "tab".
	IndentType string
	// OutputStyle is nested, expanded, compact or compressed.
	OutputStyle string
	Precision   int

	IndentedSyntax    bool
	SourceComments    bool
	OmitSourceMapURL  bool
	SourceMapEmbed    bool
	SourceMapContents bool

	IncludePaths []string

	// Importers are tried in order for every @import.
	Importers []Importer
	// Functions maps signatures such as "foo($a, $b)" to implementations.
	Functions map[string]Function
}

// compilation is the preprocessed form of Options plus the helpers that
// answer the engine's requests.
type compilation struct {
	start     time.Time
	options   engine.Options
	importers []Importer
	functions []Function
}

var linefeeds = map[string]string{
	"cr":   "\r",
	"crlf": "\r\n",
	"lf":   "\n",
	"lfcr": "\n\r",
}

func preprocess(opts *Options) (*compilation, error) {
	c := &compilation{start: time.Now()}
	if opts == nil {
		opts = &Options{}
	}
	o := &c.options

	if opts.Data != nil {
		data := *opts.Data
		o.Data = &data
	}
	if opts.File != "" {
		file, err := filepath.Abs(opts.File)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseOptions, errors.KindInvalidInput, err, "resolve file")
		}
		o.File = &file
	}
	if opts.OutFile != "" {
		out, err := filepath.Abs(opts.OutFile)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseOptions, errors.KindInvalidInput, err, "resolve outFile")
		}
		o.OutFile = out
	}

	switch {
	case opts.SourceMapPath != "":
		m, err := filepath.Abs(opts.SourceMapPath)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseOptions, errors.KindInvalidInput, err, "resolve sourceMap")
		}
		o.SourceMap = m
	case opts.SourceMap:
		if o.OutFile == "" {
			return nil, errors.InvalidInput(errors.PhaseOptions, "options.sourceMap is true but options.outFile is not set")
		}
		o.SourceMap = o.OutFile + ".map"
	}
	o.SourceMapRoot = opts.SourceMapRoot

	if opts.Linefeed != "" {
		lf, ok := linefeeds[opts.Linefeed]
		if !ok {
			lf = "\n"
		}
		o.Linefeed = lf
	}

	if opts.IndentWidth > 0 || opts.IndentType != "" {
		char := " "
		if opts.IndentType == "tab" {
			char = "\t"
		}
		width := opts.IndentWidth
		if width <= 0 {
			width = 2
		}
		o.Indent = strings.Repeat(char, width)
	}

	o.OutputStyle = opts.OutputStyle
	if opts.Precision > 0 {
		p := opts.Precision
		o.Precision = &p
	}
	o.IndentedSyntax = opts.IndentedSyntax
	o.SourceComments = opts.SourceComments
	o.OmitSourceMapURL = opts.OmitSourceMapURL
	o.SourceMapEmbed = opts.SourceMapEmbed
	o.SourceMapContents = opts.SourceMapContents

	o.IncludePaths = includePaths(opts.IncludePaths)

	c.importers = opts.Importers
	o.ImportersLength = len(c.importers)

	// Map order is random; sort so helper indices are stable.
	sigs := make([]string, 0, len(opts.Functions))
	for sig := range opts.Functions {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)

	o.FunctionSignatures = make([]string, 0, len(sigs))
	for _, sig := range sigs {
		normalized, fn, err := normalizeSignature(sig, opts.Functions[sig])
		if err != nil {
			return nil, err
		}
		o.FunctionSignatures = append(o.FunctionSignatures, normalized)
		c.functions = append(c.functions, fn)
	}

	return c, nil
}

// includePaths returns the working directory, then paths, then SASS_PATH.
func includePaths(paths []string) []string {
	out := make([]string, 0, len(paths)+2)
	if wd, err := os.Getwd(); err == nil {
		out = append(out, wd)
	}
	out = append(out, paths...)
	if env, ok := os.LookupEnv("SASS_PATH"); ok {
		out = append(out, filepath.SplitList(env)...)
	}
	return out
}

type optionsKey struct{}

// ProcessedOptions returns the options of the compilation an importer or
// function is running for.
func ProcessedOptions(ctx context.Context) (*engine.Options, bool) {
	o, ok := ctx.Value(optionsKey{}).(*engine.Options)
	return o, ok
}
