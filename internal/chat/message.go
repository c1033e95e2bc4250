// Package chat holds the chat widget core: the transcript store, the draft, and
// the send pipeline that posts a message and retries with exponential backoff.
package chat

import (
	"sync"
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single transcript entry. Messages are never mutated after creation.
type Message struct {
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// IDGenerator hands out strictly increasing message IDs seeded from the wall
// clock in milliseconds.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns the current time in milliseconds, or last+1 when the clock has
// not moved past the previously issued ID.
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
