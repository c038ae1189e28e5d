//go:build js && wasm

// Command tokenscope-wasm exposes the tokenizer session to JavaScript as
// globalThis.tokenscope with promise-returning init, load and tokenize
// functions, plus encode, encodeFast, encodeBatch, encodeBatchFast, decode
// and decodeBatch over the loaded tokenizer. An optional globalThis.tokenscopeConfig object may set
// "module" and "moduleDir" before the module starts.
package main

import (
	"context"
	"log/slog"
	"os"
	"syscall/js"

	"github.com/goccy/go-json"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/bootstrap"
	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/session"
)

func main() {
	log := logger.Build(os.Stderr, logger.Options{Level: slog.LevelInfo, Format: logger.FormatText})

	name, dir := binding.HFModuleName, ""
	if cfg := js.Global().Get("tokenscopeConfig"); cfg.Type() == js.TypeObject {
		if v := cfg.Get("module"); v.Type() == js.TypeString {
			name = v.String()
		}
		if v := cfg.Get("moduleDir"); v.Type() == js.TypeString {
			dir = v.String()
		}
	}
	mod, err := binding.Lookup(name)
	if err != nil {
		log.Error("tokenscope: unknown module", "module", name, "error", err)
		return
	}

	boot := bootstrap.New(mod, bootstrap.Options{BaseDir: dir, Logger: log})
	ctrl := session.NewController(boot, session.Options{
		Fetcher: session.NewHTTPFetcher(session.FetcherOptions{}),
		Logger:  log,
	})
	ctx := context.Background()

	js.Global().Set("tokenscope", js.ValueOf(map[string]any{
		"init": js.FuncOf(func(js.Value, []js.Value) any {
			return promise(func() (any, error) {
				return nil, boot.Initialize(ctx)
			})
		}),
		"load": js.FuncOf(func(_ js.Value, args []js.Value) any {
			source := argString(args, 0)
			return promise(func() (any, error) {
				if _, err := ctrl.LoadTokenizer(ctx, source); err != nil {
					return nil, err
				}
				return ctrl.Snapshot(), nil
			})
		}),
		"tokenize": js.FuncOf(func(_ js.Value, args []js.Value) any {
			text := argString(args, 0)
			return promise(func() (any, error) {
				return ctrl.Tokenize(ctx, text)
			})
		}),
		"encode":          encodeFunc(ctx, ctrl, true),
		"encodeFast":      encodeFunc(ctx, ctrl, false),
		"encodeBatch":     encodeBatchFunc(ctx, ctrl, true),
		"encodeBatchFast": encodeBatchFunc(ctx, ctrl, false),
		"decode": js.FuncOf(func(_ js.Value, args []js.Value) any {
			ids, skip := argIDs(args, 0), argBool(args, 1)
			return promise(func() (any, error) {
				texts, err := ctrl.DecodeBatch(ctx, [][]int{ids}, skip)
				if err != nil {
					return nil, err
				}
				return texts[0], nil
			})
		}),
		"decodeBatch": js.FuncOf(func(_ js.Value, args []js.Value) any {
			var batch [][]int
			if len(args) > 0 && args[0].Type() == js.TypeObject {
				for i := range args[0].Length() {
					batch = append(batch, idsOf(args[0].Index(i)))
				}
			}
			skip := argBool(args, 1)
			return promise(func() (any, error) {
				return ctrl.DecodeBatch(ctx, batch, skip)
			})
		}),
		"snapshot": js.FuncOf(func(js.Value, []js.Value) any {
			v, err := toJS(ctrl.Snapshot())
			if err != nil {
				return js.Null()
			}
			return v
		}),
		"strategy": string(boot.Strategy()),
	}))
	log.Info("tokenscope ready", "module", name, "strategy", string(boot.Strategy()))

	select {}
}

// encodeFunc exports encode(text, addSpecialTokens) for one text.
func encodeFunc(ctx context.Context, ctrl *session.Controller, withOffsets bool) js.Func {
	return js.FuncOf(func(_ js.Value, args []js.Value) any {
		text, add := argString(args, 0), argBool(args, 1)
		return promise(func() (any, error) {
			encs, err := ctrl.EncodeBatch(ctx, []string{text}, add, withOffsets)
			if err != nil {
				return nil, err
			}
			return encs[0], nil
		})
	})
}

func encodeBatchFunc(ctx context.Context, ctrl *session.Controller, withOffsets bool) js.Func {
	return js.FuncOf(func(_ js.Value, args []js.Value) any {
		texts, add := argStrings(args, 0), argBool(args, 1)
		return promise(func() (any, error) {
			return ctrl.EncodeBatch(ctx, texts, add, withOffsets)
		})
	})
}

func argString(args []js.Value, i int) string {
	if i >= len(args) || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

func argBool(args []js.Value, i int) bool {
	return i < len(args) && args[i].Type() == js.TypeBoolean && args[i].Bool()
}

func argStrings(args []js.Value, i int) []string {
	if i >= len(args) || args[i].Type() != js.TypeObject {
		return nil
	}
	out := make([]string, args[i].Length())
	for k := range out {
		out[k] = args[i].Index(k).String()
	}
	return out
}

func argIDs(args []js.Value, i int) []int {
	if i >= len(args) {
		return nil
	}
	return idsOf(args[i])
}

// idsOf converts a JS array or typed array of numbers.
func idsOf(v js.Value) []int {
	if v.Type() != js.TypeObject {
		return nil
	}
	out := make([]int, v.Length())
	for k := range out {
		out[k] = v.Index(k).Int()
	}
	return out
}

// promise runs fn off the event loop and settles a JS Promise with its
// JSON-converted result. Errors reject with the user-facing message.
func promise(fn func() (any, error)) js.Value {
	var executor js.Func
	executor = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer executor.Release()
			v, err := fn()
			if err == nil {
				var out js.Value
				if out, err = toJS(v); err == nil {
					resolve.Invoke(out)
					return
				}
			}
			reject.Invoke(js.Global().Get("Error").New(session.Message(err)))
		}()
		return nil
	})
	return js.Global().Get("Promise").New(executor)
}

func toJS(v any) (js.Value, error) {
	if v == nil {
		return js.Undefined(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return js.Undefined(), err
	}
	return js.Global().Get("JSON").Call("parse", string(b)), nil
}
