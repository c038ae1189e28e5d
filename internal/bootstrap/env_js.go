//go:build js && wasm

package bootstrap

import "syscall/js"

// HasBrowserGlobal reports whether the wasm module runs with a browser
// window object in scope. Node and worker hosts have no window.
func HasBrowserGlobal() bool {
	w := js.Global().Get("window")
	return !w.IsUndefined() && !w.IsNull()
}
