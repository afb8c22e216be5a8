package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
)

// LedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Entries are held in append order; nothing is ever rewritten or removed.
type LedgerStore struct {
	mu      sync.Mutex
	entries []models.Entry
	byID    map[string]int
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{byID: make(map[string]int)}
}

func (s *LedgerStore) Append(ctx context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.append(entry)
	return nil
}

// AppendLinked persists all entries under the mutex, so a reader never
// observes a partial pair.
func (s *LedgerStore) AppendLinked(ctx context.Context, entries []models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		s.append(entry)
	}
	return nil
}

func (s *LedgerStore) append(entry models.Entry) {
	s.byID[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
}

func (s *LedgerStore) Get(ctx context.Context, id string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return models.Entry{}, errs.New(errs.KindNotFound, "ledger entry %s not found", id)
	}
	return s.entries[idx], nil
}

func (s *LedgerStore) ListForAccount(ctx context.Context, accountID string, filter models.EntryFilter) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Entry
	for _, entry := range s.entries {
		if entry.AccountID != accountID {
			continue
		}
		if !matchesFilter(entry, filter) {
			continue
		}
		matched = append(matched, entry)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]models.Entry, len(matched))
	copy(out, matched)
	return out, nil
}

func matchesFilter(entry models.Entry, filter models.EntryFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if entry.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && entry.CreatedAt.After(*filter.To) {
		return false
	}
	return true
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
