//go:build !windows

package server

import (
	"os"
	"os/signal"
	"syscall"
)

func (h *SignalHandler) configureSignals() {
	signal.Notify(h.signals, syscall.SIGHUP)
}

func isReloadSignal(sig os.Signal) bool {
	return sig == syscall.SIGHUP
}
