//go:build js && wasm

// Command zkwasm-js is the WebAssembly module loaded by browser and Node
// hosts. At start it loads the bindings and publishes a zkwasm object on the
// JS global:
//
//	zkwasm.invoke(requestJSON) -> Promise<resultJSON>
//	zkwasm.<op>(paramsJSON)    -> Promise<resultJSON>
//	zkwasm.mode, zkwasm.poolSize, zkwasm.version
//
// Configuration is read from globalThis.zkwasmConfig ({mode, poolSize,
// nodeUrl, logLevel}) when present. logLevel is one of debug, info, warn,
// error or off and logs go to the console through stderr. Load failures are
// published as zkwasm.loadError and every call, invoke and the per-op
// functions alike, rejects with that result JSON.
package main

import (
	"context"
	"encoding/json"

	"syscall/js"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm"
)

func main() {
	global := js.Global()
	api := js.Global().Get("Object").New()
	global.Set("zkwasm", api)

	b, err := load(global.Get("zkwasmConfig"))
	if err != nil {
		res := zkwasm.Result{Error: &zkwasm.ErrorValue{Kind: zkwasm.KindOf(err), Message: err.Error()}}
		raw, _ := json.Marshal(res)
		api.Set("loadError", string(raw))
		fail := js.FuncOf(func(js.Value, []js.Value) any {
			return rejected(string(raw))
		})
		for _, name := range entryPoints() {
			api.Set(name, fail)
		}
		select {}
	}

	api.Set("mode", b.Context().CurrentMode().String())
	api.Set("poolSize", b.Context().PoolSize())
	api.Set("version", zkwasm.WrapperVersion())
	api.Set("invoke", js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) != 1 || args[0].Type() != js.TypeString {
			return resolved(`{"ok":false,"error":{"kind":"InvalidInput","message":"invoke expects one JSON string"}}`)
		}
		raw := args[0].String()
		return promise(func() string {
			return string(b.InvokeJSON(context.Background(), []byte(raw)))
		})
	}))
	for _, op := range zkwasm.Ops() {
		op := op
		api.Set(string(op), js.FuncOf(func(_ js.Value, args []js.Value) any {
			params := "{}"
			if len(args) > 0 && args[0].Type() == js.TypeString {
				params = args[0].String()
			}
			return promise(func() string {
				res := b.Invoke(context.Background(), zkwasm.Request{Op: op, Params: json.RawMessage(params)})
				raw, err := json.Marshal(res)
				if err != nil {
					return `{"ok":false,"error":{"kind":"Internal","message":"encode result"}}`
				}
				return string(raw)
			})
		}))
	}

	// The module stays alive for the host's lifetime.
	select {}
}

func load(jsCfg js.Value) (*zkwasm.Bindings, error) {
	cfg, err := hostConfig(configValues(jsCfg))
	if err != nil {
		return nil, err
	}
	return zkwasm.Load(cfg)
}

// configValues copies the known zkwasmConfig fields into Go values.
func configValues(v js.Value) map[string]any {
	out := make(map[string]any)
	if v.Type() != js.TypeObject {
		return out
	}
	for _, key := range configKeys {
		f := v.Get(key)
		switch f.Type() {
		case js.TypeString:
			out[key] = f.String()
		case js.TypeNumber:
			out[key] = f.Float()
		case js.TypeBoolean:
			out[key] = f.Bool()
		}
	}
	return out
}

// promise runs fn on a new goroutine; callbacks must not block the JS
// event loop.
func promise(fn func() string) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve := args[0]
		go func() {
			defer handler.Release()
			resolve.Invoke(fn())
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

func resolved(s string) js.Value {
	return js.Global().Get("Promise").Call("resolve", s)
}

func rejected(s string) js.Value {
	return js.Global().Get("Promise").Call("reject", s)
}
