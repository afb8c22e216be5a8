package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fincore/ledger-engine/internal/errs"
)

// lockTable hands out one exclusive slot per account. Slots are buffered
// channels of size one: send acquires, receive releases, and a select on
// the send gives bounded waiting.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (t *lockTable) slot(id string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[id]
	if !ok {
		s = make(chan struct{}, 1)
		t.slots[id] = s
	}
	return s
}

// acquireAll takes the locks for ids in canonical (sorted) order, which
// gives all operations a total lock order and rules out deadlock cycles
// between transfers touching the same accounts in opposite directions.
// The timeout bounds the whole acquisition; on timeout or cancellation
// every lock taken so far is released and nothing has mutated.
func (t *lockTable) acquireAll(ctx context.Context, timeout time.Duration, ids ...string) (release func(), err error) {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var held []chan struct{}
	release = func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range sorted {
		s := t.slot(id)
		select {
		case s <- struct{}{}:
			held = append(held, s)
		case <-timer.C:
			release()
			return nil, errs.New(errs.KindLockTimeout, "timed out acquiring lock on account %s", id)
		case <-ctx.Done():
			release()
			return nil, errs.Wrap(errs.KindLockTimeout, ctx.Err(), "canceled acquiring lock on account %s", id)
		}
	}
	return release, nil
}
