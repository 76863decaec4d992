package income

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/ledgerlane/invoicer/internal/invoice"
)

// Service serves income reports, cached per range.
type Service struct {
	source Source
	cache  *Cache
	group  singleflight.Group
}

// NewService builds Service instance. cache may be nil.
func NewService(source Source, cache *Cache) *Service {
	return &Service{source: source, cache: cache}
}

// GetIncomeReport returns the monthly income series and range total.
func (s *Service) GetIncomeReport(ctx context.Context, r Range) (Report, error) {
	if r.End.Before(r.Start) {
		return Report{}, invoice.ValidationErrors{{Field: "end", Message: "must not be before start"}}
	}
	key, err := s.cache.BuildKey(ctx, keyMonthly(r)...)
	if err != nil {
		return s.compute(ctx, r)
	}
	value, err, _ := s.group.Do(key, func() (any, error) {
		var rep Report
		err := s.cache.FetchJSON(ctx, key, &rep, func(ctx context.Context) (any, error) {
			return s.compute(ctx, r)
		})
		return rep, err
	})
	if err != nil {
		return Report{}, err
	}
	return value.(Report), nil
}

// Bump invalidates cached reports after invoice writes.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) compute(ctx context.Context, r Range) (Report, error) {
	months, err := s.source.IncomeByMonth(ctx, r)
	if err != nil {
		return Report{}, fmt.Errorf("income report %s: %w", r.Key(), err)
	}
	return Summarize(months, r), nil
}
