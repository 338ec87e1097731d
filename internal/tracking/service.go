package tracking

import (
	"context"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
)

// Service runs tracking cycles by entity kind.
type Service struct {
	cycles map[models.EntityKind]*Cycle
}

// NewService registers the given cycles. A later cycle of the same kind
// replaces an earlier one.
func NewService(cycles ...*Cycle) *Service {
	s := &Service{cycles: make(map[models.EntityKind]*Cycle, len(cycles))}
	for _, c := range cycles {
		if c != nil {
			s.cycles[c.Kind()] = c
		}
	}
	return s
}

// Run runs the cycle for kind.
func (s *Service) Run(ctx context.Context, kind models.EntityKind) (Summary, error) {
	c, ok := s.cycles[kind]
	if !ok {
		return Summary{}, errors.Wrapf(errors.ErrInvalidEntity, "no tracking cycle for kind %q", kind)
	}
	return c.Run(ctx), nil
}
