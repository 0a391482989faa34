package reservation

import (
	"context"
	"sort"
	"sync"
	"time"

	"salonbook/internal/model"
)

// HoldStore persists reservation holds. Implementations keep at most one hold
// per session; expiry is decided by the Ledger, never by the store.
type HoldStore interface {
	// BySession returns the session's hold or nil if there is none.
	BySession(ctx context.Context, sessionID string) (*model.ReservationHold, error)
	// ByStaff returns every stored hold of the staff member, expired ones included.
	ByStaff(ctx context.Context, staffID string) ([]model.ReservationHold, error)
	// Put stores hold, replacing any previous hold of the same session.
	Put(ctx context.Context, hold model.ReservationHold) error
	// Delete removes the session's hold and returns it, or nil if there was none.
	Delete(ctx context.Context, sessionID string) (*model.ReservationHold, error)
	// PurgeExpired removes holds expired at now and reports how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is an in-process HoldStore.
type MemoryStore struct {
	mu        sync.RWMutex
	bySession map[string]model.ReservationHold
	byStaff   map[string]map[string]struct{} // staffID -> set of sessionIDs
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySession: make(map[string]model.ReservationHold),
		byStaff:   make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) BySession(_ context.Context, sessionID string) (*model.ReservationHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.bySession[sessionID]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *MemoryStore) ByStaff(_ context.Context, staffID string) ([]model.ReservationHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.byStaff[staffID]
	out := make([]model.ReservationHold, 0, len(sessions))
	for sessionID := range sessions {
		out = append(out, s.bySession[sessionID])
	}
	sortHolds(out)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, hold model.ReservationHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(hold.SessionID)
	s.bySession[hold.SessionID] = hold
	staff, ok := s.byStaff[hold.StaffID]
	if !ok {
		staff = make(map[string]struct{})
		s.byStaff[hold.StaffID] = staff
	}
	staff[hold.SessionID] = struct{}{}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) (*model.ReservationHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(sessionID), nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sessionID, h := range s.bySession {
		if h.ExpiredAt(now) {
			s.removeLocked(sessionID)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) removeLocked(sessionID string) *model.ReservationHold {
	h, ok := s.bySession[sessionID]
	if !ok {
		return nil
	}
	delete(s.bySession, sessionID)
	if staff := s.byStaff[h.StaffID]; staff != nil {
		delete(staff, sessionID)
		if len(staff) == 0 {
			delete(s.byStaff, h.StaffID)
		}
	}
	return &h
}

func sortHolds(holds []model.ReservationHold) {
	sort.Slice(holds, func(i, j int) bool {
		if !holds[i].StartTime.Equal(holds[j].StartTime) {
			return holds[i].StartTime.Before(holds[j].StartTime)
		}
		return holds[i].SessionID < holds[j].SessionID
	})
}
