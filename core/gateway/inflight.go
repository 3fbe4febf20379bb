package gateway

import (
	"context"
	"sync"
)

// inflightTable tracks cancel funcs for streams currently being delivered so
// the stop endpoint can reach into them. Entries are removed when the stream
// handler returns; stopping an unknown or finished request is a no-op.
type inflightTable struct {
	mu      sync.Mutex
	entries map[string]*inflightEntry
}

type inflightEntry struct {
	cancel  context.CancelFunc
	stopped bool
}

func newInflightTable() *inflightTable {
	return &inflightTable{entries: make(map[string]*inflightEntry)}
}

func (t *inflightTable) register(requestID string, cancel context.CancelFunc) {
	t.mu.Lock()
	t.entries[requestID] = &inflightEntry{cancel: cancel}
	t.mu.Unlock()
}

// stop cancels the stream for requestID. It reports whether a live stream was
// actually cancelled; repeated calls are safe.
func (t *inflightTable) stop(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[requestID]
	if !ok || entry.stopped {
		return false
	}
	entry.stopped = true
	entry.cancel()
	return true
}

// wasStopped reports whether requestID was cancelled through stop, as opposed
// to a client disconnect or natural completion.
func (t *inflightTable) wasStopped(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[requestID]
	return ok && entry.stopped
}

func (t *inflightTable) remove(requestID string) {
	t.mu.Lock()
	delete(t.entries, requestID)
	t.mu.Unlock()
}

func (t *inflightTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
