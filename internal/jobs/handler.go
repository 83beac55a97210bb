package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-agent/internal/domain"
	"github.com/dvloznov/finance-agent/internal/history"
	"github.com/dvloznov/finance-agent/internal/logger"
	"github.com/dvloznov/finance-agent/internal/state"
)

// historyWindow is how many prior messages a query job sees.
const historyWindow = 20

// Engine runs queries. *workflow.Engine satisfies it.
type Engine interface {
	Process(ctx context.Context, query string, hist []state.Message) state.Envelope
	RunModule(ctx context.Context, name, query string) (state.Envelope, error)
}

// NewQueryHandler returns a handler that runs jobs through engine and stores
// the envelope on the job. When the job has a session and store is non-nil,
// prior messages are passed to the run and the exchange is appended after it
// as one write, so a retried job cannot leave a half-stored exchange.
// A run that ends in the ERROR intent is returned as an error so the queue
// retries it.
func NewQueryHandler(engine Engine, store history.Store) JobHandler {
	return func(ctx context.Context, job *QueryJob) error {
		log := logger.FromContext(ctx)

		var env state.Envelope
		if job.Module != "" {
			var err error
			env, err = engine.RunModule(ctx, job.Module, job.Query)
			if err != nil {
				return fmt.Errorf("QueryHandler: %w", err)
			}
		} else {
			var hist []state.Message
			if store != nil && job.SessionID != "" {
				msgs, err := store.List(ctx, job.SessionID, historyWindow)
				if err != nil {
					log.Warn().Err(err).Str("session_id", job.SessionID).Msg("Failed to load history")
				}
				hist = history.ToState(msgs)
			}
			env = engine.Process(ctx, job.Query, hist)
		}
		job.Result = &env

		if env.Intent == domain.IntentError {
			return fmt.Errorf("QueryHandler: workflow failed: %s", lastExplanation(env))
		}

		if store != nil && job.SessionID != "" {
			if _, err := store.AppendExchange(ctx, job.SessionID, job.Query, env.Response); err != nil {
				return fmt.Errorf("QueryHandler: appending history: %w", err)
			}
		}
		return nil
	}
}

func lastExplanation(env state.Envelope) string {
	if len(env.Explanations) == 0 {
		return "no explanation"
	}
	e := env.Explanations[len(env.Explanations)-1]
	return e.Step + ": " + e.What
}
