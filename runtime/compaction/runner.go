package compaction

import (
	"context"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/runtime/apperrors"
	"github.com/streetrace-ai/streetrace-go/runtime/session/model"
	"github.com/streetrace-ai/streetrace-go/runtime/telemetry"
)

// AgentRun is one invocation of an underlying agent run (an ADK-Runner
// analogue): given a context and the session/message to continue from, it
// streams events on the returned channel and reports the terminal error (if
// any, nil on clean completion) on the error channel. The run MUST honor
// ctx cancellation between events — cancelling ctx is how Runner aborts a
// stream for compaction, per spec.md §9.
type AgentRun func(ctx context.Context, session model.Session, message *model.Event) (<-chan model.Event, <-chan error)

// SessionRefresher re-fetches the authoritative session after an abort, so
// compaction operates on every event the aborted run actually produced
// (some of which may not yet be visible to the caller's in-memory copy).
type SessionRefresher func(ctx context.Context, app, user, id string) (model.Session, bool, error)

// SessionReplacer persists a strategy's compacted event list back to
// durable storage, preserving the session's identity and state.
type SessionReplacer func(ctx context.Context, s model.Session, newEvents []model.Event) (model.Session, error)

// Runner wraps an AgentRun with mid-run token accounting and compaction,
// per spec.md §4.4's control loop.
type Runner struct {
	Strategy  Strategy
	MaxTokens int
	Model     string
	Estimator TokenEstimator
	Refresh   SessionRefresher
	Replace   SessionReplacer
	Logger    telemetry.Logger
}

// NewRunner builds a Runner. A nil Estimator defaults to
// EstimateEventTokens; a zero MaxTokens defaults to DefaultContextWindow.
func NewRunner(strategy Strategy, refresh SessionRefresher, replace SessionReplacer, logger telemetry.Logger) *Runner {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Runner{
		Strategy:  strategy,
		Estimator: EstimateEventTokens,
		Refresh:   refresh,
		Replace:   replace,
		Logger:    logger,
	}
}

func (r *Runner) estimator() TokenEstimator {
	if r.Estimator != nil {
		return r.Estimator
	}
	return EstimateEventTokens
}

func (r *Runner) threshold() int {
	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultContextWindow
	}
	ratio := r.Strategy.ThresholdRatio()
	if ratio <= 0 {
		ratio = DefaultThresholdRatio
	}
	return int(float64(maxTokens) * ratio)
}

// Run drives run across as many (abort, compact, restart) cycles as the
// threshold requires, forwarding every event it sees to out. Run returns
// when the underlying agent run completes without crossing the threshold,
// or when ctx is cancelled, or on an unrecoverable error.
func (r *Runner) Run(ctx context.Context, run AgentRun, session model.Session, message *model.Event, out chan<- model.Event) error {
	threshold := r.threshold()
	estimator := r.estimator()
	runningTokens := estimateSessionTokens(session.Events, r.Model, estimator)

	currentSession := session
	currentMessage := message

	for {
		runCtx, cancel := context.WithCancel(ctx)
		events, errc := run(runCtx, currentSession, currentMessage)

		compactionNeeded := false
		lastEventWasToolCall := false

	drain:
		for {
			select {
			case e, ok := <-events:
				if !ok {
					break drain
				}
				runningTokens += eventTokenCount(e, r.Model, estimator)
				select {
				case out <- e:
				case <-ctx.Done():
					cancel()
					return ctx.Err()
				}

				lastEventWasToolCall = e.HasFunctionCall() && !e.HasFunctionResponse()

				if runningTokens >= threshold && !lastEventWasToolCall {
					r.Logger.Info(ctx, "compaction: token threshold reached, aborting stream",
						"running_tokens", runningTokens, "threshold", threshold)
					compactionNeeded = true
					cancel()
					break drain
				}
			case <-ctx.Done():
				cancel()
				return ctx.Err()
			}
		}

		runErr := <-errc
		cancel()
		if !compactionNeeded {
			if runErr != nil && !apperrors.IsCompactionAborted(runErr) {
				return runErr
			}
			return nil
		}

		updated, found, err := r.Refresh(ctx, currentSession.AppName, currentSession.UserID, currentSession.ID)
		if err != nil {
			return fmt.Errorf("compaction: refresh session: %w", err)
		}
		if !found {
			r.Logger.Warn(ctx, "compaction: session not found after abort, stopping", "session_id", currentSession.ID)
			return nil
		}

		compactedEvents, err := r.Strategy.Compact(ctx, updated.Events)
		if err != nil {
			return fmt.Errorf("compaction: compact: %w", err)
		}
		compacted, err := r.Replace(ctx, updated, compactedEvents)
		if err != nil {
			return fmt.Errorf("compaction: replace events: %w", err)
		}

		runningTokens = estimateSessionTokens(compacted.Events, r.Model, estimator)
		currentSession = compacted
		currentMessage = &model.Event{
			Author:  "user",
			Content: []model.Part{model.TextPart{Text: ContinuationText}},
		}

		r.Logger.Info(ctx, "compaction: complete, restarting run", "running_tokens", runningTokens)
	}
}
