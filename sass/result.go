package sass

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/errors"
)

// Result is a successful compilation.
type Result struct {
	CSS   []byte
	Map   []byte
	Stats Stats
}

// Stats describes a compilation.
type Stats struct {
	Start         time.Time
	End           time.Time
	Duration      time.Duration
	Entry         string
	IncludedFiles []string
}

// CompileError is a failure reported by the engine, such as a syntax error.
type CompileError struct {
	Message   string
	Formatted string
	File      string
	Status    int
	Line      int
	Column    int
}

func (e *CompileError) Error() string {
	if e.Formatted != "" {
		return e.Formatted
	}
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return e.Message
}

func postprocess(raw []byte, c *compilation) (*Result, error) {
	var out engine.Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidData, err, "decode engine result")
	}

	if out.OptionsError != "" {
		return nil, errors.InvalidInput(errors.PhaseOptions, out.OptionsError)
	}
	if out.Error != "" {
		var f engine.Failure
		if err := json.Unmarshal([]byte(out.Error), &f); err != nil {
			return nil, &CompileError{Status: 1, Message: out.Error}
		}
		return nil, &CompileError{
			Message:   f.Message,
			Formatted: f.Formatted,
			File:      f.File,
			Status:    f.Status,
			Line:      f.Line,
			Column:    f.Column,
		}
	}

	end := time.Now()
	entry := "data"
	if c.options.File != nil {
		entry = *c.options.File
	}

	res := &Result{
		CSS: []byte(out.CSS),
		Stats: Stats{
			Start:         c.start,
			End:           end,
			Duration:      end.Sub(c.start),
			Entry:         entry,
			IncludedFiles: out.IncludedFiles,
		},
	}
	if out.Map != "" {
		res.Map = []byte(out.Map)
	}
	return res, nil
}
