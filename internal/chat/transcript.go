package chat

import "sync"

// Appender is the write side of the transcript used by pipelines.
type Appender interface {
	Append(text string, sender Sender) Message
}

// Transcript is the ordered, append-only message list of one view session.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
	ids      *IDGenerator
	onAppend func(Message)
}

type TranscriptOption func(*Transcript)

// WithAppendHook registers fn to run after every append. The terminal UI uses it
// to schedule a re-render and a scroll to the bottom.
func WithAppendHook(fn func(Message)) TranscriptOption {
	return func(t *Transcript) { t.onAppend = fn }
}

// WithIDGenerator overrides the message ID source.
func WithIDGenerator(g *IDGenerator) TranscriptOption {
	return func(t *Transcript) { t.ids = g }
}

func NewTranscript(opts ...TranscriptOption) *Transcript {
	t := &Transcript{ids: NewIDGenerator()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetAppendHook replaces the append hook. It exists because the bubbletea
// program is created after the transcript it renders.
func (t *Transcript) SetAppendHook(fn func(Message)) {
	t.mu.Lock()
	t.onAppend = fn
	t.mu.Unlock()
}

// Append adds a message at the end and fires the append hook outside the lock.
func (t *Transcript) Append(text string, sender Sender) Message {
	t.mu.Lock()
	msg := Message{ID: t.ids.Next(), Text: text, Sender: sender}
	t.messages = append(t.messages, msg)
	hook := t.onAppend
	t.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return msg
}

// Messages returns a copy of the transcript in display order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// LastFrom returns the most recent message from sender.
func (t *Transcript) LastFrom(sender Sender) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Sender == sender {
			return t.messages[i], true
		}
	}
	return Message{}, false
}
