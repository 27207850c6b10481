package coordinator

import "sync"

// snapshotBox holds the latest published Snapshot plus a "changed"
// channel subscribers can select on — the standard broadcast-by-closing
// pattern, so readers never block a writer and never need their own
// lock. Version increases by exactly one on every set, giving the UI a
// monotonic sequence to detect drops.
type snapshotBox struct {
	mu      sync.Mutex
	current *Snapshot
	waiters chan struct{}
}

func newSnapshotBox() *snapshotBox {
	return &snapshotBox{waiters: make(chan struct{})}
}

func (b *snapshotBox) set(s *Snapshot) {
	b.mu.Lock()
	if b.current != nil {
		s.Version = b.current.Version + 1
	} else {
		s.Version = 1
	}
	b.current = s
	old := b.waiters
	b.waiters = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

func (b *snapshotBox) latest() (*Snapshot, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.waiters
}
