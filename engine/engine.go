package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/wippyai/sassbridge/errors"
)

// Helper answers a helper request raised by the engine during compilation.
// The descriptor is the JSON helper-input object; the returned string is the
// JSON-encoded answer. Helpers are called strictly one at a time.
type Helper func(descriptor []byte) string

// Engine is the compilation routine. Compile must call helper synchronously
// from its own goroutine and must not issue concurrent helper calls for a
// single compilation.
type Engine interface {
	Compile(ctx context.Context, options []byte, helper Helper) ([]byte, error)
}

// Versioner is implemented by engines that can report their version.
type Versioner interface {
	Version() string
}

// Options is the preprocessed option set handed to an engine.
type Options struct {
	Data               *string  `json:"data,omitempty"`
	File               *string  `json:"file,omitempty"`
	OutFile            string   `json:"outFile,omitempty"`
	SourceMap          string   `json:"sourceMap,omitempty"`
	SourceMapRoot      string   `json:"sourceMapRoot,omitempty"`
	Linefeed           string   `json:"linefeed,omitempty"`
	Indent             string   `json:"indent,omitempty"`
	OutputStyle        string   `json:"outputStyle,omitempty"`
	Precision          *int     `json:"precision,omitempty"`
	IndentedSyntax     bool     `json:"indentedSyntax"`
	SourceComments     bool     `json:"sourceComments"`
	OmitSourceMapURL   bool     `json:"omitSourceMapUrl"`
	SourceMapEmbed     bool     `json:"sourceMapEmbed"`
	SourceMapContents  bool     `json:"sourceMapContents"`
	IncludePaths       []string `json:"includePaths"`
	ImportersLength    int      `json:"importersLength"`
	FunctionSignatures []string `json:"functionSignatures"`
}

// Output is the engine result. Exactly one of OptionsError, Error or the
// CSS fields is meaningful.
type Output struct {
	CSS           string   `json:"css,omitempty"`
	Map           string   `json:"map,omitempty"`
	IncludedFiles []string `json:"includedFiles,omitempty"`
	Error         string   `json:"error,omitempty"`
	OptionsError  string   `json:"optionsError,omitempty"`
}

// Failure is the structured compile error, carried JSON-encoded in Output.Error.
type Failure struct {
	Status    int    `json:"status"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
	Message   string `json:"message"`
	Formatted string `json:"formatted,omitempty"`
}

// Descriptor is the wire shape of a helper request.
type Descriptor struct {
	Type  string          `json:"type"`
	Index int             `json:"index"`
	File  string          `json:"file,omitempty"`
	Prev  string          `json:"prev,omitempty"`
	Args  json.RawMessage `json:"args,omitempty"`
}

// ImporterDescriptor encodes an importer helper request.
func ImporterDescriptor(index int, file, prev string) []byte {
	b, _ := json.Marshal(Descriptor{Type: "importer", Index: index, File: file, Prev: prev})
	return b
}

// FunctionDescriptor encodes a custom function helper request.
func FunctionDescriptor(index int, args json.RawMessage) []byte {
	b, _ := json.Marshal(Descriptor{Type: "function", Index: index, Args: args})
	return b
}

// Import is one entry of an importer answer.
type Import struct {
	File     string `json:"file,omitempty"`
	Contents string `json:"contents,omitempty"`
	Map      string `json:"map,omitempty"`
	Error    string `json:"__error,omitempty"`
}

// ParseImports decodes an importer answer: null or false means "not handled",
// an object is a single import and an array is a list of imports. An error
// marker, at the top level or on any entry, is returned as an error.
func ParseImports(reply string) ([]Import, error) {
	data := bytes.TrimSpace([]byte(reply))
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("false")) {
		return nil, nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(errors.PhaseHelper, errors.KindInvalidData, err, "decode importer result")
		}
		imports := make([]Import, 0, len(raw))
		for i, r := range raw {
			imp, err := parseImport(fmt.Sprintf("imports[%d]", i), r)
			if err != nil {
				return nil, err
			}
			imports = append(imports, imp)
		}
		return imports, nil
	}

	imp, err := parseImport("result", data)
	if err != nil {
		return nil, err
	}
	return []Import{imp}, nil
}

func parseImport(name string, data []byte) (Import, error) {
	if len(data) == 0 || data[0] != '{' {
		return Import{}, errors.InvalidData(errors.PhaseHelper, []string{name},
			fmt.Sprintf("Importer error: %s must be an object", name))
	}
	var imp Import
	if err := json.Unmarshal(data, &imp); err != nil {
		return Import{}, errors.InvalidData(errors.PhaseHelper, []string{name},
			fmt.Sprintf("Importer error: %s has a field of the wrong type", name))
	}
	if imp.Error != "" {
		return Import{}, errors.Callback(name, fmt.Errorf("%s", imp.Error))
	}
	return imp, nil
}

func encodeOutput(out Output) ([]byte, error) {
	b, err := json.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidData, err, "encode result")
	}
	return b, nil
}

func encodeFailure(f Failure) ([]byte, error) {
	inner, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidData, err, "encode failure")
	}
	return encodeOutput(Output{Error: string(inner)})
}
