package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Widget ties the draft, the transcript and the send pipeline together. Each
// submission runs its own pipeline; submissions are not serialised, so replies
// may interleave with later user messages.
type Widget struct {
	transcript *Transcript
	draft      Draft

	mu       sync.RWMutex
	pipeline *Pipeline

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight  atomic.Int32
	onSettled func(Result)
	newID     func() string
}

type WidgetOption func(*Widget)

// WithSettledHook registers fn to run after a pipeline settles and the draft
// has been cleared.
func WithSettledHook(fn func(Result)) WidgetOption {
	return func(w *Widget) { w.onSettled = fn }
}

// WithPipelineIDs overrides the pipeline ID source.
func WithPipelineIDs(fn func() string) WidgetOption {
	return func(w *Widget) { w.newID = fn }
}

// NewWidget creates a widget whose pipelines live until Close or until parent
// is cancelled.
func NewWidget(parent context.Context, transcript *Transcript, pipeline *Pipeline, opts ...WidgetOption) *Widget {
	if parent == nil {
		parent = context.Background()
	}
	if transcript == nil {
		transcript = NewTranscript()
	}
	ctx, cancel := context.WithCancel(parent)
	w := &Widget{
		transcript: transcript,
		pipeline:   pipeline,
		ctx:        ctx,
		cancel:     cancel,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Widget) Transcript() *Transcript { return w.transcript }

func (w *Widget) SetDraft(s string) { w.draft.Set(s) }

func (w *Widget) Draft() string { return w.draft.Value() }

// SetSettledHook replaces the settled hook.
func (w *Widget) SetSettledHook(fn func(Result)) {
	w.mu.Lock()
	w.onSettled = fn
	w.mu.Unlock()
}

// SetPipeline swaps the pipeline used by later submissions. Running pipelines
// keep the one they started with.
func (w *Widget) SetPipeline(p *Pipeline) {
	w.mu.Lock()
	w.pipeline = p
	w.mu.Unlock()
}

// InFlight reports how many pipelines are still running.
func (w *Widget) InFlight() int { return int(w.inFlight.Load()) }

// Submit sends the current draft. A draft that is empty after trimming is
// ignored and Submit returns false. Otherwise the untrimmed text is appended
// as a user message before Submit returns, and the pipeline continues in the
// background.
func (w *Widget) Submit() (string, bool) {
	text := w.draft.Value()
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	if w.ctx.Err() != nil {
		return "", false
	}

	w.mu.RLock()
	p := w.pipeline
	w.mu.RUnlock()

	id := w.newID()
	w.transcript.Append(text, SenderUser)

	w.inFlight.Add(1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		res := p.Run(w.ctx, id, text, w.transcript)
		w.inFlight.Add(-1)
		if res.Outcome != OutcomeCancelled {
			w.draft.Clear()
		}

		w.mu.RLock()
		hook := w.onSettled
		w.mu.RUnlock()
		if hook != nil {
			hook(res)
		}
	}()
	return id, true
}

// Wait blocks until every started pipeline has settled.
func (w *Widget) Wait() { w.wg.Wait() }

// Close cancels pending retries and in-flight requests, then waits for them.
func (w *Widget) Close() {
	w.cancel()
	w.wg.Wait()
}
