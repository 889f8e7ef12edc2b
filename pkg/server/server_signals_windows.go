//go:build windows

package server

import "os"

// Windows has no SIGHUP; settings still reload through the file watcher.
func (h *SignalHandler) configureSignals() {}

func isReloadSignal(os.Signal) bool { return false }
