package chat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the number of retries after the initial request.
	DefaultMaxRetries = 10
	// DefaultBaseDelay is multiplied by 2^retry to get the wait before a retry.
	DefaultBaseDelay = time.Second
	// DefaultErrorMessage is appended once the retry budget is exhausted.
	DefaultErrorMessage = "Sorry, there was an error processing your message."
	// MaxBackoff caps a single wait between attempts.
	MaxBackoff = time.Hour
)

// Outcome is how a pipeline settled.
type Outcome int

const (
	OutcomeReplied Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result describes one settled pipeline.
type Result struct {
	PipelineID string
	Outcome    Outcome
	Attempts   int
	Reply      string
	Err        error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the wait before retry number retry (1-based): base * 2^retry,
// saturating at MaxBackoff.
func Backoff(base time.Duration, retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if base <= 0 {
		return 0
	}
	if retry >= 62 || base > MaxBackoff>>uint(retry) {
		return MaxBackoff
	}
	return base << uint(retry)
}

type pipelineIDKey struct{}

// ContextWithPipelineID tags ctx so transports can attribute requests.
func ContextWithPipelineID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, pipelineIDKey{}, id)
}

// PipelineIDFromContext returns the ID set by ContextWithPipelineID, or "".
func PipelineIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(pipelineIDKey{}).(string)
	return id
}

// Pipeline sends a message and retries failures with exponential backoff.
type Pipeline struct {
	client       Client
	maxRetries   int
	baseDelay    time.Duration
	errorMessage string
	sleep        Sleeper
	logger       *zap.Logger
}

type PipelineOption func(*Pipeline)

func WithMaxRetries(n int) PipelineOption {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

func WithBaseDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.baseDelay = d
		}
	}
}

func WithErrorMessage(msg string) PipelineOption {
	return func(p *Pipeline) {
		if msg != "" {
			p.errorMessage = msg
		}
	}
}

func WithSleeper(s Sleeper) PipelineOption {
	return func(p *Pipeline) {
		if s != nil {
			p.sleep = s
		}
	}
}

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPipeline(client Client, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		client:       client,
		maxRetries:   DefaultMaxRetries,
		baseDelay:    DefaultBaseDelay,
		errorMessage: DefaultErrorMessage,
		sleep:        SleepContext,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run delivers text and appends either the reply or the terminal error message
// to sink. Every failure is retried the same way until maxRetries retries have
// failed. A cancelled ctx stops the loop without appending anything.
func (p *Pipeline) Run(ctx context.Context, id string, text string, sink Appender) Result {
	log := p.logger.With(zap.String("pipeline", id))
	res := Result{PipelineID: id}
	ctx = ContextWithPipelineID(ctx, id)

	for retry := 0; ; retry++ {
		if retry > 0 {
			delay := Backoff(p.baseDelay, retry)
			log.Debug("retrying send", zap.Int("retry", retry), zap.Duration("delay", delay))
			if err := p.sleep(ctx, delay); err != nil {
				return p.cancelled(log, res, err)
			}
		}

		res.Attempts++
		reply, err := p.client.Send(ctx, text)
		if err == nil {
			sink.Append(reply, SenderBot)
			res.Outcome = OutcomeReplied
			res.Reply = reply
			log.Debug("reply received", zap.Int("attempts", res.Attempts))
			return res
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.cancelled(log, res, ctxErr)
		}

		res.Err = err
		log.Debug("send attempt failed", zap.Int("attempt", res.Attempts), zap.Error(err))
		if retry >= p.maxRetries {
			break
		}
	}

	sink.Append(p.errorMessage, SenderBot)
	res.Outcome = OutcomeFailed
	log.Warn("giving up after retries", zap.Int("attempts", res.Attempts), zap.Error(res.Err))
	return res
}

func (p *Pipeline) cancelled(log *zap.Logger, res Result, err error) Result {
	res.Outcome = OutcomeCancelled
	res.Err = err
	log.Debug("pipeline cancelled", zap.Int("attempts", res.Attempts))
	return res
}
