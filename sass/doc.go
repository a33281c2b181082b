// Package sass is the public compilation API.
//
// Render runs the engine on a background executor so that importers and
// custom functions may block, call out to the network or answer through a
// callback. RenderSync calls the engine on the caller's goroutine and is the
// cheaper choice when every helper answers immediately.
//
//	src := `@import "theme"; a { color: red }`
//	res, err := sass.Render(ctx, &sass.Options{
//		Data: &src,
//		Importers: []sass.Importer{
//			sass.ImporterFunc(func(ctx context.Context, file, prev string) ([]sass.Import, error) {
//				if file != "theme" {
//					return nil, nil
//				}
//				return []sass.Import{{Contents: "b { color: blue }"}}, nil
//			}),
//		},
//	})
//
// Functions are keyed by signature. A bare name such as "double" receives
// its arguments spread out of the argument list the engine passes.
//
// The default compiler uses the esbuild CSS engine. Call SetDefault with a
// compiler over an engine.WasmEngine to compile real Sass.
package sass
