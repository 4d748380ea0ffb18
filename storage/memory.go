package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sanjayganvkar/adfdoc/types"
)

// Errors
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrReportNotFound   = errors.New("report not found")
)

// MemoryStorage is an in-memory implementation of the Storage interface.
type MemoryStorage struct {
	templates map[uint64]types.Template
	reports   map[uint64]types.FactoryReport
	mu        sync.RWMutex
}

// NewMemoryStorage creates a new MemoryStorage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		templates: make(map[uint64]types.Template),
		reports:   make(map[uint64]types.FactoryReport),
	}
}

// getItem is a standalone generic helper function.
func getItem[T any](ctx context.Context, mu *sync.RWMutex, m map[uint64]T, id uint64, errNotFound error) (T, error) {
	return withContext(ctx, func() (T, error) {
		mu.RLock()
		defer mu.RUnlock()
		item, ok := m[id]
		if !ok {
			var zero T
			return zero, fmt.Errorf("%w: id=%d", errNotFound, id)
		}
		return item, nil
	})
}

// SaveTemplate saves a template to memory.
func (s *MemoryStorage) SaveTemplate(ctx context.Context, tpl types.Template) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.templates[tpl.ID] = tpl
		return struct{}{}, nil
	})
	return err
}

// GetTemplate retrieves a template from memory.
func (s *MemoryStorage) GetTemplate(ctx context.Context, id uint64) (types.Template, error) {
	return getItem(ctx, &s.mu, s.templates, id, ErrTemplateNotFound)
}

// SaveReport saves a factory report to memory.
func (s *MemoryStorage) SaveReport(ctx context.Context, rep types.FactoryReport) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.reports[rep.ID] = rep
		return struct{}{}, nil
	})
	return err
}

// GetReport retrieves a factory report from memory.
func (s *MemoryStorage) GetReport(ctx context.Context, id uint64) (types.FactoryReport, error) {
	return getItem(ctx, &s.mu, s.reports, id, ErrReportNotFound)
}

// ClearReports removes reports generated before the given unix-milli cutoff.
func (s *MemoryStorage) ClearReports(ctx context.Context, before int64) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, rep := range s.reports {
			if rep.GeneratedAt < before {
				delete(s.reports, id)
			}
		}
		return struct{}{}, nil
	})
	return err
}
