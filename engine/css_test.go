package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func compileCSS(t *testing.T, opts Options, helper Helper) Output {
	t.Helper()
	raw, err := json.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}
	out, err := NewCSSEngine().Compile(context.Background(), raw, helper)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	var res Output
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("decode output %s: %v", out, err)
	}
	return res
}

func strPtr(s string) *string { return &s }

func TestCSSEngine_Data(t *testing.T) {
	out := compileCSS(t, Options{Data: strPtr("a{color:red}")}, nil)
	if out.Error != "" || out.OptionsError != "" {
		t.Fatalf("unexpected failure: %+v", out)
	}
	if want := "/* stdin */\na {\n  color: red;\n}\n"; out.CSS != want {
		t.Errorf("css = %q, want %q", out.CSS, want)
	}
}

func TestStdinPath(t *testing.T) {
	e := NewCSSEngine()

	data := e.buildOptions(&Options{Data: strPtr("a{}")})
	if got, want := stdinPath(data), filepath.Join(e.workDir, stdinName); got != want {
		t.Errorf("stdinPath(data) = %q, want %q", got, want)
	}

	named := e.buildOptions(&Options{Data: strPtr("a{}"), File: strPtr("/src/main.css")})
	if got := stdinPath(named); got != "" {
		t.Errorf("stdinPath(named data) = %q, want empty", got)
	}

	file := e.buildOptions(&Options{File: strPtr("/src/main.css")})
	if got := stdinPath(file); got != "" {
		t.Errorf("stdinPath(file) = %q, want empty", got)
	}
}

func TestCSSEngine_Compressed(t *testing.T) {
	out := compileCSS(t, Options{Data: strPtr("a {\n  color: red;\n}\n"), OutputStyle: "compressed"}, nil)
	if strings.Contains(out.CSS, "\n  color") {
		t.Errorf("compressed output kept indentation: %q", out.CSS)
	}
}

func TestCSSEngine_OptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"no input", Options{}, "options.data or options.file"},
		{"indented", Options{Data: strPtr("a"), IndentedSyntax: true}, "indentedSyntax"},
		{"functions", Options{Data: strPtr("a"), FunctionSignatures: []string{"foo()"}}, "functions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compileCSS(t, tt.opts, nil)
			if !strings.Contains(out.OptionsError, tt.want) {
				t.Errorf("OptionsError = %q, want it to mention %q", out.OptionsError, tt.want)
			}
		})
	}
}

func TestCSSEngine_Importer(t *testing.T) {
	var seen []Descriptor
	helper := func(desc []byte) string {
		var d Descriptor
		if err := json.Unmarshal(desc, &d); err != nil {
			t.Errorf("bad descriptor %s: %v", desc, err)
		}
		seen = append(seen, d)
		if d.Index == 0 {
			return "null"
		}
		return `{"contents":"b{color:blue}"}`
	}

	out := compileCSS(t, Options{
		Data:            strPtr("@import \"foo\";\na{color:red}"),
		ImportersLength: 2,
	}, helper)
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if !strings.Contains(out.CSS, "color: blue") || !strings.Contains(out.CSS, "color: red") {
		t.Errorf("css = %q", out.CSS)
	}

	if len(seen) != 2 {
		t.Fatalf("helper saw %d requests, want 2", len(seen))
	}
	for i, d := range seen {
		if d.Type != "importer" || d.Index != i || d.File != "foo" || d.Prev != stdinName {
			t.Errorf("request %d = %+v", i, d)
		}
	}
}

func TestCSSEngine_ImporterErrorMarker(t *testing.T) {
	out := compileCSS(t, Options{
		Data:            strPtr("@import \"foo\";"),
		ImportersLength: 1,
	}, func([]byte) string {
		return `{"__error":"boom"}`
	})
	if out.Error == "" {
		t.Fatal("expected compile failure")
	}
	var f Failure
	if err := json.Unmarshal([]byte(out.Error), &f); err != nil {
		t.Fatalf("decode failure: %v", err)
	}
	if f.Status != 1 || !strings.Contains(f.Message, "boom") {
		t.Errorf("failure = %+v", f)
	}
}

func TestCSSEngine_IncludePaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "part.css"), []byte("p{color:green}"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := compileCSS(t, Options{
		Data:         strPtr("@import \"part\";"),
		IncludePaths: []string{dir},
	}, nil)
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}
	if !strings.Contains(out.CSS, "color: green") {
		t.Errorf("css = %q", out.CSS)
	}

	found := false
	for _, f := range out.IncludedFiles {
		if strings.HasSuffix(f, "part.css") {
			found = true
		}
	}
	if !found {
		t.Errorf("includedFiles = %v, want part.css", out.IncludedFiles)
	}
}

func TestCSSEngine_SourceMap(t *testing.T) {
	dir := t.TempDir()
	out := compileCSS(t, Options{
		Data:      strPtr("a{color:red}"),
		OutFile:   filepath.Join(dir, "out.css"),
		SourceMap: filepath.Join(dir, "out.css.map"),
	}, nil)
	if out.Map == "" {
		t.Fatal("expected a source map")
	}
	if !strings.Contains(out.CSS, "sourceMappingURL") {
		t.Errorf("css missing map link: %q", out.CSS)
	}
}

func TestParseImports(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    int
		wantErr bool
	}{
		{"null", "null", 0, false},
		{"false", "false", 0, false},
		{"empty", "", 0, false},
		{"object", `{"file":"a"}`, 1, false},
		{"array", `[{"file":"a"},{"contents":"b"}]`, 2, false},
		{"marker", `{"__error":"nope"}`, 0, true},
		{"marker in array", `[{"file":"a"},{"__error":"nope"}]`, 0, true},
		{"not object", `[1]`, 0, true},
		{"wrong field type", `{"file":3}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseImports(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseImports() err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
