package sass

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/sassbridge/bridge"
	"github.com/wippyai/sassbridge/errors"
	"github.com/wippyai/sassbridge/value"
)

// Call implements bridge.Helper by routing each request to the registered
// importer or function. Errors are turned into error markers by the bridge.
func (c *compilation) Call(ctx context.Context, in bridge.Input) (string, error) {
	ctx = context.WithValue(ctx, optionsKey{}, &c.options)

	switch in := in.(type) {
	case bridge.ImporterCall:
		return c.callImporter(ctx, in)
	case bridge.FunctionCall:
		return c.callFunction(ctx, in)
	default:
		return "", errors.Unsupported(errors.PhaseDispatch, fmt.Sprintf("helper input %T", in))
	}
}

func (c *compilation) callImporter(ctx context.Context, in bridge.ImporterCall) (string, error) {
	if in.Index >= len(c.importers) {
		return "", errors.OutOfBounds(errors.PhaseDispatch, []string{"importers"}, in.Index, len(c.importers))
	}
	Logger().Debug("importer", zap.Int("index", in.Index), zap.String("file", in.File), zap.String("prev", in.Prev))

	imports, err := c.importers[in.Index].Import(ctx, in.File, in.Prev)
	if err != nil {
		return "", err
	}
	return encodeImports(imports)
}

func (c *compilation) callFunction(ctx context.Context, in bridge.FunctionCall) (string, error) {
	if in.Index >= len(c.functions) {
		return "", errors.OutOfBounds(errors.PhaseDispatch, []string{"functions"}, in.Index, len(c.functions))
	}
	args, err := value.DecodeList(in.Args)
	if err != nil {
		return "", err
	}
	Logger().Debug("function", zap.Int("index", in.Index), zap.Int("args", args.Len()))

	res, err := c.functions[in.Index].Call(ctx, args.Values())
	if err != nil {
		return "", err
	}
	b, err := value.Encode(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeImports writes null for no imports, an object for one and an
// array otherwise.
func encodeImports(imports []Import) (string, error) {
	var (
		b   []byte
		err error
	)
	switch len(imports) {
	case 0:
		return "null", nil
	case 1:
		b, err = json.Marshal(imports[0])
	default:
		b, err = json.Marshal(imports)
	}
	if err != nil {
		return "", errors.Wrap(errors.PhaseHelper, errors.KindInvalidData, err, "encode importer result")
	}
	return string(b), nil
}
