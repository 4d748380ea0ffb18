package storage

import (
	"context"

	"github.com/sanjayganvkar/adfdoc/types"
)

// Storage persists registered templates and generated reports.
type Storage interface {
	// SaveTemplate saves a parsed ARM template.
	SaveTemplate(ctx context.Context, tpl types.Template) error

	// GetTemplate retrieves a template by ID.
	GetTemplate(ctx context.Context, id uint64) (types.Template, error)

	// SaveReport saves a generated factory report.
	SaveReport(ctx context.Context, rep types.FactoryReport) error

	// GetReport retrieves a factory report by ID.
	GetReport(ctx context.Context, id uint64) (types.FactoryReport, error)
}

// withContext is a standalone generic helper function.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return fn()
	}
}
