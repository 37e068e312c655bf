// Package respond builds the text-back message for a missed call. Response
// sources are arranged in a fallback chain; each stage runs inside its own
// timeout and panic boundary, and the first stage to produce a non-empty
// message wins. The chain always terminates with a generic message, so
// callers always get a reply body.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/textback/textback/internal/directory"
)

// Input is the context a reply is generated from.
type Input struct {
	Tenant       *directory.Tenant
	CallerNumber string
	EventID      string
}

// Candidate is a generated reply plus the stage that produced it.
type Candidate struct {
	Body  string
	Stage string
}

// Stage is one source in the fallback chain. Run returns an empty string to
// pass to the next stage; an error or panic is logged and also passes.
type Stage struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context, in Input) (string, error)
}

// Engine evaluates the stage chain.
type Engine struct {
	stages []Stage
	logger *slog.Logger
}

// NewEngine creates an Engine over the given stages. Stages are tried in
// order.
func NewEngine(stages []Stage, logger *slog.Logger) *Engine {
	return &Engine{
		stages: stages,
		logger: logger.With("subsystem", "respond"),
	}
}

// Respond runs the chain and returns the winning candidate. It never
// returns an empty body: if every stage passes, a terminal generic message
// is used.
func (e *Engine) Respond(ctx context.Context, in Input) Candidate {
	for _, stage := range e.stages {
		body := e.runStage(ctx, stage, in)
		if body != "" {
			e.logger.Info("reply selected",
				"event_id", in.EventID,
				"stage", stage.Name,
			)
			return Candidate{Body: body, Stage: stage.Name}
		}
	}

	// Terminal fallback; reached only if the chain was built without a
	// generic stage.
	return Candidate{Body: genericMessage, Stage: StageGeneric}
}

// runStage executes one stage inside its timeout and panic boundary. Any
// failure degrades to an empty result.
func (e *Engine) runStage(ctx context.Context, stage Stage, in Input) (body string) {
	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("response stage panicked",
				"event_id", in.EventID,
				"stage", stage.Name,
				"panic", fmt.Sprint(r),
			)
			body = ""
		}
	}()

	out, err := stage.Run(ctx, in)
	if err != nil {
		e.logger.Warn("response stage failed, falling through",
			"event_id", in.EventID,
			"stage", stage.Name,
			"error", err,
		)
		return ""
	}
	return out
}
