package server

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReloadFunc re-reads state that can change without a restart.
type ReloadFunc func(ctx context.Context) error

// SignalHandler reacts to process signals while a server runs. SIGINT and
// SIGTERM are left to signal.NotifyContext in the caller; this handles the
// rest (SIGHUP reloads settings on unix).
type SignalHandler struct {
	signals chan os.Signal
	reload  ReloadFunc
	logger  zerolog.Logger
}

// NewSignalHandler registers for the reload signal. Call Stop to release it.
func NewSignalHandler(reload ReloadFunc) *SignalHandler {
	h := &SignalHandler{
		signals: make(chan os.Signal, 1),
		reload:  reload,
		logger:  log.With().Str("component", "server").Logger(),
	}
	h.configureSignals()
	return h
}

// Run handles signals until ctx is done.
func (h *SignalHandler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-h.signals:
			if !ok {
				return
			}
			h.handle(ctx, sig)
		}
	}
}

func (h *SignalHandler) handle(ctx context.Context, sig os.Signal) {
	if !isReloadSignal(sig) {
		return
	}
	if h.reload == nil {
		h.logger.Debug().Str("signal", sig.String()).Msg("No reload hook, ignoring signal")
		return
	}
	h.logger.Info().Str("signal", sig.String()).Msg("Reloading settings")
	if err := h.reload(ctx); err != nil {
		h.logger.Error().Err(err).Msg("Reload failed, keeping current settings")
	}
}

// Stop unregisters the handler. Run returns once it notices.
func (h *SignalHandler) Stop() {
	signal.Stop(h.signals)
	close(h.signals)
}
