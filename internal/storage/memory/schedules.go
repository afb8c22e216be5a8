package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
)

// ScheduleStore is an in-memory implementation of interfaces.ScheduleStore.
type ScheduleStore struct {
	mu        sync.Mutex
	schedules map[string]models.ScheduledTransfer
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{schedules: make(map[string]models.ScheduledTransfer)}
}

func (s *ScheduleStore) Insert(ctx context.Context, st models.ScheduledTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules[st.ID] = st
	return nil
}

func (s *ScheduleStore) Due(ctx context.Context, now time.Time) ([]models.ScheduledTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.ScheduledTransfer
	for _, st := range s.schedules {
		if st.Status == models.SchedulePending && !st.ExecuteAt.After(now) {
			due = append(due, st)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExecuteAt.Before(due[j].ExecuteAt) })
	return due, nil
}

func (s *ScheduleStore) MarkExecuted(ctx context.Context, id string) error {
	return s.setStatus(id, models.ScheduleExecuted, "")
}

func (s *ScheduleStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.setStatus(id, models.ScheduleFailed, reason)
}

func (s *ScheduleStore) HasPendingForAccount(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.schedules {
		if st.Status == models.SchedulePending && (st.SourceID == accountID || st.DestID == accountID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *ScheduleStore) setStatus(id string, status models.ScheduleStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.schedules[id]
	if !ok {
		return errs.New(errs.KindNotFound, "scheduled transfer %s not found", id)
	}
	st.Status = status
	st.LastError = reason
	s.schedules[id] = st
	return nil
}

var _ interfaces.ScheduleStore = (*ScheduleStore)(nil)
