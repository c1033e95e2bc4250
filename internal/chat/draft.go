package chat

import "sync"

// Draft is the text typed but not yet sent.
type Draft struct {
	mu    sync.Mutex
	value string
}

func (d *Draft) Set(s string) {
	d.mu.Lock()
	d.value = s
	d.mu.Unlock()
}

func (d *Draft) Value() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

func (d *Draft) Clear() {
	d.Set("")
}
