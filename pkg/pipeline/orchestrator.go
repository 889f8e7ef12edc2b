// Package pipeline drives a ticket through classification, knowledge search,
// response drafting and confidence scoring, then applies the auto-resolution
// gate.
//
// A failing step never aborts the run: its error is recorded in the result
// and later steps proceed with whatever earlier steps produced. The only
// error ProcessTicket returns is *InvalidTicketError.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskpilot/deskpilot/pkg/appctx"
	"github.com/deskpilot/deskpilot/pkg/gate"
	"github.com/deskpilot/deskpilot/pkg/settings"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// SettingsSource provides the settings snapshot a run reads from.
// *settings.Store implements it.
type SettingsSource interface {
	Snapshot() settings.Snapshot
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.With().Str("component", "pipeline").Logger()
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs the triage pipeline. It holds no per-ticket state and is
// safe for concurrent use.
type Orchestrator struct {
	c        Collaborators
	settings SettingsSource
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates an orchestrator. All four collaborators and the settings
// source are required.
func New(c Collaborators, src SettingsSource, opts ...Option) (*Orchestrator, error) {
	var missing []string
	if c.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if c.Knowledge == nil {
		missing = append(missing, "knowledge searcher")
	}
	if c.Responder == nil {
		missing = append(missing, "response generator")
	}
	if c.Scorer == nil {
		missing = append(missing, "confidence scorer")
	}
	if src == nil {
		missing = append(missing, "settings source")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing %v", missing)
	}

	o := &Orchestrator{
		c:        c,
		settings: src,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ProcessTicket runs every step over t and returns the assembled result.
func (o *Orchestrator) ProcessTicket(ctx context.Context, t ticket.Ticket) (*ticket.ProcessingResult, error) {
	start := o.now()

	t = t.Normalize()
	if t.ID == "" {
		return nil, &InvalidTicketError{Reason: "ticket id is required"}
	}

	snap := o.settings.Snapshot()
	ctx = appctx.WithSettings(ctx, snap)
	logger := o.logger.With().Str("ticket_id", t.ID).Int64("settings_revision", snap.Revision).Logger()

	result := &ticket.ProcessingResult{
		TicketID:         t.ID,
		Timestamp:        start,
		KnowledgeMatches: []ticket.KnowledgeMatch{},
		Errors:           []ticket.StageError{},
		SettingsRevision: snap.Revision,
	}

	o.step(result, logger, ticket.StepClassification, func() error {
		c, err := o.c.Classifier.Classify(ctx, t)
		if err != nil {
			return err
		}
		if c == nil {
			return errors.New("classifier returned no classification")
		}
		result.Classification = c
		return nil
	})

	o.step(result, logger, ticket.StepKnowledge, func() error {
		matches, err := o.c.Knowledge.Search(ctx, t, result.Classification)
		if err != nil {
			return err
		}
		if matches != nil {
			result.KnowledgeMatches = matches
		}
		return nil
	})

	o.step(result, logger, ticket.StepResponse, func() error {
		r, err := o.c.Responder.Generate(ctx, t, result.Classification, result.KnowledgeMatches)
		if err != nil {
			return err
		}
		result.SuggestedResponse = r
		return nil
	})

	o.step(result, logger, ticket.StepConfidence, func() error {
		score, err := o.c.Scorer.Score(ctx, t, result.Classification, result.KnowledgeMatches, result.SuggestedResponse)
		if err != nil {
			return err
		}
		if math.IsNaN(score) || score < 0 || score > 1 {
			return fmt.Errorf("confidence %v outside [0,1]", score)
		}
		result.Confidence = score
		return nil
	})

	decision := gate.Evaluate(result, t, snap.Settings)
	result.AutoResolve = decision.AutoResolve
	result.ResolutionBlockers = decision.Reasons
	result.ProcessingTimeMs = o.now().Sub(start).Milliseconds()

	logger.Info().
		Bool("auto_resolve", result.AutoResolve).
		Float64("confidence", result.Confidence).
		Int("errors", len(result.Errors)).
		Int64("duration_ms", result.ProcessingTimeMs).
		Msg("Ticket processed")
	return result, nil
}

// step runs fn and records its error, or panic, under name.
func (o *Orchestrator) step(result *ticket.ProcessingResult, logger zerolog.Logger, name string, fn func() error) {
	start := o.now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()

	elapsed := o.now().Sub(start)
	if err != nil {
		result.Errors = append(result.Errors, ticket.StageError{Step: name, Message: err.Error()})
		logger.Warn().Err(err).Str("step", name).Dur("elapsed", elapsed).Msg("Pipeline step failed")
		return
	}
	logger.Debug().Str("step", name).Dur("elapsed", elapsed).Msg("Pipeline step finished")
}
