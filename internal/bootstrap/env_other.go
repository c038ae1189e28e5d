//go:build !(js && wasm)

package bootstrap

// HasBrowserGlobal is always false outside js/wasm builds.
func HasBrowserGlobal() bool { return false }
