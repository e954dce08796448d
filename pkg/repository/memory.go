package repository

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Memory keeps the workspace in process memory
type Memory struct {
	mu            sync.RWMutex
	customers     []*model.Customer
	segmentations []*model.Segmentation
	docs          []*model.OnboardingDoc
	emails        []*model.EmailRecord
	runs          []*model.FollowupRun
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) PutCustomers(ctx context.Context, customers []*model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = slices.Clone(customers)
	return nil
}

func (m *Memory) ListCustomers(ctx context.Context) ([]*model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.customers), nil
}

func (m *Memory) PutSegmentation(ctx context.Context, seg *model.Segmentation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segmentations = append(m.segmentations, seg)
	return nil
}

func (m *Memory) GetLatestSegmentation(ctx context.Context) (*model.Segmentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *model.Segmentation
	for _, s := range m.segmentations {
		if latest == nil || !s.CreatedAt.Before(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *Memory) PutOnboardingDoc(ctx context.Context, doc *model.OnboardingDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	return nil
}

func (m *Memory) ListOnboardingDocs(ctx context.Context) ([]*model.OnboardingDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.docs), nil
}

func (m *Memory) PutEmail(ctx context.Context, email *model.EmailRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	return nil
}

func (m *Memory) GetEmail(ctx context.Context, id model.EmailID) (*model.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.emails {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "email not found", goerr.V("id", id))
}

func (m *Memory) ListEmails(ctx context.Context, limit int) ([]*model.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Clone(m.emails)
	slices.SortStableFunc(out, func(a, b *model.EmailRecord) int {
		return b.SentAt.Compare(a.SentAt)
	})
	return truncate(out, limit), nil
}

func (m *Memory) PutFollowupRun(ctx context.Context, run *model.FollowupRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListFollowupRuns(ctx context.Context, limit int) ([]*model.FollowupRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Clone(m.runs)
	slices.SortStableFunc(out, func(a, b *model.FollowupRun) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return truncate(out, limit), nil
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
