package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientFunc func(ctx context.Context, text string) (string, error)

func (f clientFunc) Send(ctx context.Context, text string) (string, error) { return f(ctx, text) }

// recordingSleeper returns immediately and remembers each requested delay.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 1024 * time.Second},
		{-1, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(time.Second, tt.retry), "retry %d", tt.retry)
	}
	assert.Equal(t, 40*time.Millisecond, Backoff(10*time.Millisecond, 2))
}

func TestBackoffSaturates(t *testing.T) {
	for _, retry := range []int{12, 34, 62, 63, 64, 1000} {
		assert.Equal(t, MaxBackoff, Backoff(time.Second, retry), "retry %d", retry)
	}
	assert.Equal(t, MaxBackoff, Backoff(2*time.Hour, 0))
	assert.Equal(t, time.Duration(0), Backoff(0, 5))

	prev := time.Duration(0)
	for retry := 0; retry <= 100; retry++ {
		d := Backoff(time.Millisecond, retry)
		assert.GreaterOrEqual(t, d, prev, "retry %d", retry)
		prev = d
	}
}

func TestPipelineTagsRequestContext(t *testing.T) {
	var seen string
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		seen = PipelineIDFromContext(ctx)
		return "ok", nil
	})

	NewPipeline(client).Run(context.Background(), "p-7", "x", NewTranscript())

	assert.Equal(t, "p-7", seen)
	assert.Empty(t, PipelineIDFromContext(context.Background()))
}

func TestPipelineLargeRetryBudgetNeverSkipsWaits(t *testing.T) {
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		return "", ErrSendFailed
	})
	sleeper := &recordingSleeper{}

	res := NewPipeline(client, WithMaxRetries(70), WithSleeper(sleeper.Sleep)).
		Run(context.Background(), "p", "x", NewTranscript())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 71, res.Attempts)
	delays := sleeper.Delays()
	require.Len(t, delays, 70)
	for i, d := range delays {
		assert.Positive(t, d, "wait %d", i)
		assert.LessOrEqual(t, d, MaxBackoff, "wait %d", i)
	}
}

func TestPipelineReplyWithoutRetry(t *testing.T) {
	calls := 0
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		calls++
		assert.Equal(t, "hello", text)
		return "hi", nil
	})
	sleeper := &recordingSleeper{}
	tr := NewTranscript()

	res := NewPipeline(client, WithSleeper(sleeper.Sleep)).Run(context.Background(), "p1", "hello", tr)

	assert.Equal(t, OutcomeReplied, res.Outcome)
	assert.Equal(t, "p1", res.PipelineID)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "hi", res.Reply)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.Delays())

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, SenderBot, msgs[0].Sender)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestPipelineExhaustsRetries(t *testing.T) {
	calls := 0
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		calls++
		return "", ErrSendFailed
	})
	sleeper := &recordingSleeper{}
	tr := NewTranscript()

	res := NewPipeline(client, WithSleeper(sleeper.Sleep)).Run(context.Background(), "p", "hello", tr)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, DefaultMaxRetries+1, calls)
	assert.Equal(t, DefaultMaxRetries+1, res.Attempts)
	assert.ErrorIs(t, res.Err, ErrSendFailed)

	want := []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second,
		64 * time.Second, 128 * time.Second, 256 * time.Second, 512 * time.Second, 1024 * time.Second,
	}
	assert.Equal(t, want, sleeper.Delays())

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, Message{ID: msgs[0].ID, Text: DefaultErrorMessage, Sender: SenderBot}, msgs[0])
}

func TestPipelineRecoversAfterFailures(t *testing.T) {
	calls := 0
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		calls++
		if calls <= 3 {
			return "", errors.New("connection refused")
		}
		return "finally", nil
	})
	sleeper := &recordingSleeper{}
	tr := NewTranscript()

	res := NewPipeline(client, WithSleeper(sleeper.Sleep)).Run(context.Background(), "p", "x", tr)

	assert.Equal(t, OutcomeReplied, res.Outcome)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, sleeper.Delays())
	require.Equal(t, 1, tr.Len())
	last, _ := tr.Last()
	assert.Equal(t, "finally", last.Text)
}

func TestPipelineOptions(t *testing.T) {
	calls := 0
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		calls++
		return "", ErrSendFailed
	})
	sleeper := &recordingSleeper{}
	tr := NewTranscript()

	p := NewPipeline(client,
		WithSleeper(sleeper.Sleep),
		WithMaxRetries(2),
		WithBaseDelay(10*time.Millisecond),
		WithErrorMessage("nope"),
		WithLogger(nil),
	)
	res := p.Run(context.Background(), "p", "x", tr)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 40 * time.Millisecond}, sleeper.Delays())
	last, _ := tr.Last()
	assert.Equal(t, "nope", last.Text)
}

func TestPipelineZeroRetries(t *testing.T) {
	calls := 0
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		calls++
		return "", ErrSendFailed
	})
	tr := NewTranscript()

	res := NewPipeline(client, WithMaxRetries(0)).Run(context.Background(), "p", "x", tr)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, tr.Len())
}

func TestPipelineCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		return "", ErrSendFailed
	})
	sleeper := func(ctx context.Context, d time.Duration) error {
		cancel()
		return SleepContext(ctx, d)
	}
	tr := NewTranscript()

	res := NewPipeline(client, WithSleeper(sleeper)).Run(ctx, "p", "x", tr)

	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, tr.Len())
}

func TestPipelineCancelledDuringRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := clientFunc(func(ctx context.Context, text string) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	tr := NewTranscript()

	res := NewPipeline(client).Run(ctx, "p", "x", tr)

	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Zero(t, tr.Len())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "replied", OutcomeReplied.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
