package notifier

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Store and LogStore for tests and local
// development. It applies the same transition guards as the Postgres
// implementation.
type MemoryStorage struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*Notification
	byKey map[string]uuid.UUID
	logs  map[uuid.UUID][]DeliveryLog
	nowFn func() time.Time
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:  make(map[uuid.UUID]*Notification),
		byKey: make(map[string]uuid.UUID),
		logs:  make(map[uuid.UUID][]DeliveryLog),
		nowFn: time.Now,
	}
}

func (s *MemoryStorage) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[n.IdempotencyKey]; exists {
		return ErrDuplicateKey
	}

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = StatusPending
	}
	now := s.nowFn()
	n.CreatedAt = now
	n.UpdatedAt = now

	clone := *n
	s.byID[clone.ID] = &clone
	s.byKey[clone.IdempotencyKey] = clone.ID
	return nil
}

func (s *MemoryStorage) GetByID(_ context.Context, id uuid.UUID) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return *n, nil
}

func (s *MemoryStorage) FindByIdempotencyKey(_ context.Context, key string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return *s.byID[id], nil
}

func (s *MemoryStorage) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []Notification
	for _, n := range s.byID {
		if n.UserID == userID {
			list = append(list, *n)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (s *MemoryStorage) UpdateStatus(_ context.Context, id uuid.UUID, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(id, to, func(n *Notification) {})
}

func (s *MemoryStorage) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(id, StatusSent, func(n *Notification) {
		now := s.nowFn()
		n.SentAt = &now
		n.ErrorMessage = ""
	})
}

func (s *MemoryStorage) MarkRetrying(_ context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(id, StatusRetrying, func(n *Notification) {
		n.ErrorMessage = errorMessage
	})
}

func (s *MemoryStorage) MarkFailed(_ context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(id, StatusFailed, func(n *Notification) {
		n.ErrorMessage = errorMessage
	})
}

// transition applies the guard and mutation under the write lock.
func (s *MemoryStorage) transition(id uuid.UUID, to Status, mutate func(*Notification)) error {
	n, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !n.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.Status, to)
	}
	n.Status = to
	n.UpdatedAt = s.nowFn()
	mutate(n)
	return nil
}

func (s *MemoryStorage) IncrementRetryCount(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	n.RetryCount++
	n.UpdatedAt = s.nowFn()
	return n.RetryCount, nil
}

func (s *MemoryStorage) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byKey, n.IdempotencyKey)
	delete(s.byID, id)
	delete(s.logs, id)
	return nil
}

func (s *MemoryStorage) Append(_ context.Context, params AppendLogParams) (DeliveryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[params.NotificationID]; !ok {
		return DeliveryLog{}, ErrNotFound
	}

	entry := DeliveryLog{
		ID:               uuid.New(),
		NotificationID:   params.NotificationID,
		Attempt:          len(s.logs[params.NotificationID]) + 1,
		Status:           params.Status,
		ErrorMessage:     params.ErrorMessage,
		ProviderResponse: params.ProviderResponse,
		CreatedAt:        s.nowFn(),
	}
	s.logs[params.NotificationID] = append(s.logs[params.NotificationID], entry)
	return entry, nil
}

func (s *MemoryStorage) ListByNotification(_ context.Context, notificationID uuid.UUID) ([]DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs[notificationID]), nil
}

func (s *MemoryStorage) Latest(_ context.Context, notificationID uuid.UUID) (DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[notificationID]
	if len(entries) == 0 {
		return DeliveryLog{}, ErrLogNotFound
	}
	return entries[len(entries)-1], nil
}

func (s *MemoryStorage) CountByStatus(_ context.Context, status LogStatus, window time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	cutoff := s.windowCutoff(window)
	for _, entries := range s.logs {
		for _, entry := range entries {
			if entry.Status == status && !entry.CreatedAt.Before(cutoff) {
				count++
			}
		}
	}
	return count, nil
}

func (s *MemoryStorage) SuccessRate(_ context.Context, window time.Duration) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, sent int
	cutoff := s.windowCutoff(window)
	for _, entries := range s.logs {
		for _, entry := range entries {
			if entry.CreatedAt.Before(cutoff) {
				continue
			}
			total++
			if entry.Status == LogStatusSent {
				sent++
			}
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(sent) / float64(total) * 100, nil
}

func (s *MemoryStorage) windowCutoff(window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return s.nowFn().Add(-window)
}
