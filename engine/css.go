package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"

	"github.com/wippyai/sassbridge/errors"
)

// importerNamespace holds stylesheets whose contents came from an importer.
const importerNamespace = "sass-importer"

// stdinName is the entry name libsass reports for data compilations.
const stdinName = "stdin"

// CSSEngine compiles plain CSS with esbuild. It bundles @import rules,
// resolving each through the registered importers first and the include
// paths second. Custom functions and the indented syntax are not available.
type CSSEngine struct {
	workDir string
}

// NewCSSEngine creates an esbuild-backed engine rooted at the current directory.
func NewCSSEngine() *CSSEngine {
	wd, err := os.Getwd()
	if err != nil {
		wd = string(filepath.Separator)
	}
	return &CSSEngine{workDir: wd}
}

// Version identifies the engine.
func (e *CSSEngine) Version() string {
	return "esbuild-css"
}

// Compile implements Engine.
func (e *CSSEngine) Compile(ctx context.Context, options []byte, helper Helper) ([]byte, error) {
	var opts Options
	if err := json.Unmarshal(options, &opts); err != nil {
		return nil, errors.Wrap(errors.PhaseOptions, errors.KindInvalidData, err, "decode options")
	}

	switch {
	case opts.Data == nil && opts.File == nil:
		return encodeOutput(Output{OptionsError: "At least one of options.data or options.file must be set"})
	case opts.IndentedSyntax:
		return encodeOutput(Output{OptionsError: "options.indentedSyntax is not supported by the css engine"})
	case len(opts.FunctionSignatures) > 0:
		return encodeOutput(Output{OptionsError: "options.functions is not supported by the css engine"})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	build := e.buildOptions(&opts)

	var mu sync.Mutex
	build.Plugins = []api.Plugin{importerPlugin(&opts, helper, &mu, stdinPath(build))}

	result := api.Build(build)
	if len(result.Errors) > 0 {
		Logger().Debug("css build failed", zap.Int("errors", len(result.Errors)))
		return encodeFailure(failureFrom(result.Errors[0]))
	}

	out := Output{IncludedFiles: includedFiles(result.Metafile, e.workDir)}
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".map") {
			out.Map = string(f.Contents)
		} else {
			out.CSS = string(f.Contents)
		}
	}
	return encodeOutput(out)
}

func (e *CSSEngine) buildOptions(opts *Options) api.BuildOptions {
	outFile := opts.OutFile
	if outFile == "" {
		outFile = filepath.Join(e.workDir, "out.css")
	}

	build := api.BuildOptions{
		AbsWorkingDir:    e.workDir,
		Bundle:           true,
		Write:            false,
		Metafile:         true,
		LogLevel:         api.LogLevelSilent,
		Outfile:          outFile,
		MinifyWhitespace: opts.OutputStyle == "compressed",
		Loader: map[string]api.Loader{
			".css":  api.LoaderCSS,
			".scss": api.LoaderCSS,
		},
	}

	if opts.SourceMap != "" || opts.SourceMapEmbed {
		switch {
		case opts.SourceMapEmbed:
			build.Sourcemap = api.SourceMapInline
		case opts.OmitSourceMapURL:
			build.Sourcemap = api.SourceMapExternal
		default:
			build.Sourcemap = api.SourceMapLinked
		}
		build.SourceRoot = opts.SourceMapRoot
		if opts.SourceMapContents {
			build.SourcesContent = api.SourcesContentInclude
		} else {
			build.SourcesContent = api.SourcesContentExclude
		}
	}

	if opts.Data != nil {
		resolveDir := e.workDir
		sourceFile := stdinName
		if opts.File != nil {
			resolveDir = filepath.Dir(*opts.File)
			sourceFile = *opts.File
		}
		build.Stdin = &api.StdinOptions{
			Contents:   *opts.Data,
			ResolveDir: resolveDir,
			Sourcefile: sourceFile,
			Loader:     api.LoaderCSS,
		}
	} else {
		build.EntryPoints = []string{*opts.File}
	}
	return build
}

// stdinPath is the path esbuild reports as the importer of rules in an
// unnamed data entry. It is empty when the entry is a real file.
func stdinPath(build api.BuildOptions) string {
	if build.Stdin == nil || build.Stdin.Sourcefile != stdinName {
		return ""
	}
	return filepath.Join(build.Stdin.ResolveDir, stdinName)
}

// importerPlugin routes @import resolution through the host importers, in
// registration order, then through the include paths. Imports from the
// data entry report stdinName as their previous file.
func importerPlugin(opts *Options, helper Helper, mu *sync.Mutex, stdin string) api.Plugin {
	return api.Plugin{
		Name: "sass-importers",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				switch args.Kind {
				case api.ResolveCSSImportRule:
				case api.ResolveCSSURLToken:
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				default:
					return api.OnResolveResult{}, nil
				}

				prev := args.Importer
				if prev == "" || prev == "<stdin>" || (stdin != "" && prev == stdin) {
					prev = stdinName
				}

				for i := 0; i < opts.ImportersLength; i++ {
					mu.Lock()
					reply := helper(ImporterDescriptor(i, args.Path, prev))
					mu.Unlock()

					imports, err := ParseImports(reply)
					if err != nil {
						return api.OnResolveResult{}, err
					}
					if len(imports) == 0 {
						continue
					}
					return resolveImports(imports, args), nil
				}

				for _, dir := range opts.IncludePaths {
					if p, ok := findInDir(dir, args.Path); ok {
						return api.OnResolveResult{Path: p}, nil
					}
				}
				return api.OnResolveResult{}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: importerNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents, _ := args.PluginData.(string)
				return api.OnLoadResult{
					Contents:   &contents,
					Loader:     api.LoaderCSS,
					ResolveDir: filepath.Dir(args.Path),
				}, nil
			})
		},
	}
}

// resolveImports maps importer answers onto one esbuild module. Multiple
// entries with contents are concatenated in order.
func resolveImports(imports []Import, args api.OnResolveArgs) api.OnResolveResult {
	var contents []string
	name := ""
	for _, imp := range imports {
		if imp.Contents != "" {
			contents = append(contents, imp.Contents)
			if name == "" {
				name = imp.File
			}
		}
	}
	if len(contents) > 0 {
		if name == "" {
			name = args.Path
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(args.ResolveDir, name)
		}
		return api.OnResolveResult{
			Path:       name,
			Namespace:  importerNamespace,
			PluginData: strings.Join(contents, "\n"),
		}
	}

	file := imports[0].File
	if file == "" {
		return api.OnResolveResult{}
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(args.ResolveDir, file)
	}
	if p, ok := findInDir(filepath.Dir(file), filepath.Base(file)); ok {
		return api.OnResolveResult{Path: p}
	}
	return api.OnResolveResult{Path: file}
}

// findInDir tries name, name.css, name.scss and the _partial variants.
func findInDir(dir, name string) (string, bool) {
	base := filepath.Base(name)
	sub := filepath.Dir(name)
	candidates := []string{
		name,
		name + ".css",
		name + ".scss",
		filepath.Join(sub, "_"+base+".scss"),
		filepath.Join(sub, "_"+base+".css"),
	}
	for _, c := range candidates {
		p := c
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, c)
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

func failureFrom(msg api.Message) Failure {
	f := Failure{Status: 1, Message: msg.Text}
	if msg.Location != nil {
		f.File = msg.Location.File
		f.Line = msg.Location.Line
		f.Column = msg.Location.Column + 1
	}
	formatted := api.FormatMessages([]api.Message{msg}, api.FormatMessagesOptions{
		Kind: api.ErrorMessage,
	})
	if len(formatted) > 0 {
		f.Formatted = strings.TrimSpace(formatted[0])
	}
	return f
}

// includedFiles lists the stylesheets recorded in the esbuild metafile.
func includedFiles(metafile, workDir string) []string {
	if metafile == "" {
		return nil
	}
	var meta struct {
		Inputs map[string]json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		Logger().Warn("decode metafile", zap.Error(err))
		return nil
	}

	files := make([]string, 0, len(meta.Inputs))
	for in := range meta.Inputs {
		if in == "<stdin>" || in == stdinName {
			continue
		}
		if ns, rest, ok := strings.Cut(in, ":"); ok && ns == importerNamespace {
			files = append(files, rest)
			continue
		}
		if !filepath.IsAbs(in) {
			in = filepath.Join(workDir, in)
		}
		files = append(files, in)
	}
	sort.Strings(files)
	return files
}
