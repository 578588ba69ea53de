package creation

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"talkingphoto/internal/domain"
	"talkingphoto/internal/infra"
)

// StatusReader is the single remote read the poll loop depends on.
type StatusReader interface {
	JobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error)
}

// TickFunc receives the progress snapshot after every successful status
// read, including reads where the provider reports the same status again.
type TickFunc func(progress int, message string)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 90 // with the default interval, about 7.5 minutes
)

// Poller drives a job from submission to a terminal status with a bounded
// number of fixed-interval reads. A failed read is tolerated and counted
// against the same attempt bound as a successful non-terminal one; only
// exhausting the bound, a terminal provider status, or cancellation ends
// the loop.
type Poller struct {
	status      StatusReader
	interval    time.Duration
	maxAttempts int
	logger      *infra.Logger
}

// PollerOptions configures a Poller. Zero values pick the defaults.
type PollerOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      *infra.Logger
}

// NewPoller constructs a Poller reading statuses from the given reader.
func NewPoller(status StatusReader, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Poller{status: status, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// PollUntilTerminal repeatedly reads the job status until it is terminal,
// the attempt bound is exhausted, or ctx is canceled. onTick may be nil.
// Exhausting the bound returns domain.ErrPollTimeout, distinct from a
// provider-reported failure; the terminal job itself is returned even when
// its status is failed or canceled, so the caller decides how to surface it.
func (p *Poller) PollUntilTerminal(ctx context.Context, jobID string, onTick TickFunc) (*domain.GenerationJob, error) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job, err := p.status.JobStatus(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient read failure: keep polling until the bound runs out.
			p.logger.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("poll: status read failed")
		default:
			if onTick != nil {
				onTick(job.Progress, job.Message)
			}
			if job.Status.Terminal() {
				return job, nil
			}
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}
	return nil, domain.ErrPollTimeout
}
