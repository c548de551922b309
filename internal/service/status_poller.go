package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gradeflow-go-api/internal/observability"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultPollMaxAttempts = 60
	defaultPollConcurrency = 8
)

// StatusFetcher retrieves the current backend status of one submission.
type StatusFetcher interface {
	SubmissionStatus(ctx context.Context, submissionID int64) (gradingapi.SubmissionStatusResponse, error)
}

// StatusObserver receives every fetched snapshot, terminal or not, so
// downstream consumers always see the latest state.
type StatusObserver func(status gradingapi.SubmissionStatusResponse)

// PollOutcome is the explicit result of a finished polling session.
type PollOutcome string

const (
	// PollOutcomeAllTerminal means every tracked submission reached completed or failed.
	PollOutcomeAllTerminal PollOutcome = "all_terminal"
	// PollOutcomeBudgetExhausted means the attempt budget ran out with work remaining.
	PollOutcomeBudgetExhausted PollOutcome = "budget_exhausted"
	// PollOutcomeCanceled means the session context was canceled.
	PollOutcomeCanceled PollOutcome = "canceled"
)

// PollerConfig tunes a polling session.
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	// Concurrency caps simultaneous status fetches within one round so a
	// large batch does not turn into a request storm.
	Concurrency int
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = defaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultPollMaxAttempts
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultPollConcurrency
	}
	return c
}

// StatusPoller repeatedly fetches submission statuses until every tracked id
// is terminal or the attempt budget is exhausted.
type StatusPoller struct {
	fetcher StatusFetcher
	cfg     PollerConfig
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewStatusPoller constructs a poller around the given fetcher.
func NewStatusPoller(fetcher StatusFetcher, cfg PollerConfig, logger zerolog.Logger) *StatusPoller {
	return &StatusPoller{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "status_poller").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/gradeflow-go-api/internal/service/status_poller"),
	}
}

// Poll drives rounds of status fetches for the given ids. The observer is
// invoked for every successful fetch. Ids leave the working set once their
// status is terminal; fetch errors are logged and retried on the next round.
// Poll blocks until the session finishes and returns its outcome.
func (p *StatusPoller) Poll(ctx context.Context, ids []int64, observe StatusObserver) PollOutcome {
	ctx, span := p.tracer.Start(ctx, "poller.session", trace.WithAttributes(
		attribute.Int("poll.tracked_ids", len(ids)),
	))
	defer span.End()

	working := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		working[id] = struct{}{}
	}

	outcome := PollOutcomeAllTerminal
	attempts := 0

	for len(working) > 0 {
		if ctx.Err() != nil {
			outcome = PollOutcomeCanceled
			break
		}
		if attempts >= p.cfg.MaxAttempts {
			outcome = PollOutcomeBudgetExhausted
			break
		}

		attempts++
		p.round(ctx, working, observe)

		if len(working) == 0 || attempts >= p.cfg.MaxAttempts {
			continue
		}

		select {
		case <-ctx.Done():
			outcome = PollOutcomeCanceled
		case <-time.After(p.cfg.Interval):
		}
		if outcome == PollOutcomeCanceled {
			break
		}
	}

	if outcome == PollOutcomeAllTerminal && len(working) > 0 {
		outcome = PollOutcomeBudgetExhausted
	}

	observability.PollSessions().WithLabelValues(string(outcome)).Inc()
	span.SetAttributes(
		attribute.String("poll.outcome", string(outcome)),
		attribute.Int("poll.attempts", attempts),
		attribute.Int("poll.remaining", len(working)),
	)

	p.logger.Info().
		Str("outcome", string(outcome)).
		Int("attempts", attempts).
		Int("remaining", len(working)).
		Msg("polling session finished")

	return outcome
}

// round fetches every id still in the working set, bounded by the configured
// concurrency cap, and removes ids that came back terminal.
func (p *StatusPoller) round(ctx context.Context, working map[int64]struct{}, observe StatusObserver) {
	observability.PollRounds().Inc()

	ids := make([]int64, 0, len(working))
	for id := range working {
		ids = append(ids, id)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, p.cfg.Concurrency)
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			status, err := p.fetcher.SubmissionStatus(ctx, id)
			if err != nil {
				observability.PollFetchErrors().Inc()
				p.logger.Warn().Err(err).Int64("submission_id", id).Msg("status fetch failed, will retry next round")
				return
			}

			// Results racing a canceled session are discarded, never
			// applied to torn-down state.
			if ctx.Err() != nil {
				return
			}

			observe(status)

			if status.Status.IsTerminal() {
				mu.Lock()
				delete(working, id)
				mu.Unlock()
			}
		}(id)
	}

	wg.Wait()
}
