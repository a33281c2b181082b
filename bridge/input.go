package bridge

import (
	"encoding/json"

	"github.com/wippyai/sassbridge/engine"
	"github.com/wippyai/sassbridge/errors"
)

// Input is a decoded helper request. It is one of ImporterCall or FunctionCall.
type Input interface {
	// Descriptor re-encodes the input in its wire shape.
	Descriptor() []byte
	input()
}

// ImporterCall asks importer Index to resolve File, imported from Prev.
type ImporterCall struct {
	File  string
	Prev  string
	Index int
}

// FunctionCall asks custom function Index to evaluate Args, a serialized
// argument list.
type FunctionCall struct {
	Args  json.RawMessage
	Index int
}

func (ImporterCall) input() {}
func (FunctionCall) input() {}

// Descriptor implements Input.
func (c ImporterCall) Descriptor() []byte {
	return engine.ImporterDescriptor(c.Index, c.File, c.Prev)
}

// Descriptor implements Input.
func (c FunctionCall) Descriptor() []byte {
	return engine.FunctionDescriptor(c.Index, c.Args)
}

// DecodeInput parses a helper descriptor produced by an engine.
func DecodeInput(desc []byte) (Input, error) {
	var d engine.Descriptor
	if err := json.Unmarshal(desc, &d); err != nil {
		return nil, errors.Wrap(errors.PhaseDispatch, errors.KindInvalidData, err, "decode helper descriptor")
	}
	if d.Index < 0 {
		return nil, errors.OutOfBounds(errors.PhaseDispatch, []string{"index"}, d.Index, 0)
	}

	switch d.Type {
	case "importer":
		return ImporterCall{Index: d.Index, File: d.File, Prev: d.Prev}, nil
	case "function":
		if len(d.Args) == 0 {
			return nil, errors.InvalidData(errors.PhaseDispatch, []string{"args"}, "function call without arguments")
		}
		return FunctionCall{Index: d.Index, Args: d.Args}, nil
	default:
		return nil, errors.New(errors.PhaseDispatch, errors.KindUnsupported).
			Path("type").
			Value(d.Type).
			Detail("unknown helper type %q", d.Type).
			Build()
	}
}
