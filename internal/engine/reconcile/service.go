package reconcile

import (
	"context"
	"fmt"

	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/docstore"
)

// BusinessChecker confirms that a tenant exists.
type BusinessChecker interface {
	Exists(ctx context.Context, businessID string) (bool, error)
}

// Service runs the reconciliation pipeline: validate, plan against
// committed state, then commit the plan as one atomic batch.
type Service struct {
	store      docstore.Store
	businesses BusinessChecker
	planner    *Planner
	metrics    *Metrics
}

func NewService(store docstore.Store, businesses BusinessChecker, metrics *Metrics) *Service {
	return &Service{
		store:      store,
		businesses: businesses,
		planner:    NewPlanner(store, logger.With("reconcile"), metrics),
		metrics:    metrics,
	}
}

func (s *Service) Reconcile(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		s.metrics.outcome("invalid")
		return nil, err
	}

	exists, err := s.businesses.Exists(ctx, req.BusinessID)
	if err != nil {
		s.metrics.outcome("failed")
		return nil, fmt.Errorf("look up business %s: %w", req.BusinessID, err)
	}
	if !exists {
		s.metrics.outcome("not_found")
		return nil, fmt.Errorf("%s: %w", req.BusinessID, ErrBusinessNotFound)
	}

	plan, err := s.planner.Plan(ctx, req)
	if err != nil {
		s.metrics.outcome("failed")
		return nil, err
	}

	if !plan.HasWrites() {
		s.metrics.outcome("noop")
		return plan.Result(false), nil
	}

	if err := s.Commit(ctx, plan); err != nil {
		s.metrics.outcome("failed")
		return nil, err
	}

	s.metrics.outcome("committed")
	s.metrics.batchWrites(len(plan.Writes))
	return plan.Result(true), nil
}

// Commit applies every write of plan in a single batch.
func (s *Service) Commit(ctx context.Context, plan *Plan) error {
	batch := s.store.NewBatch()
	plan.Apply(batch)
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit reconciliation batch: %w", err)
	}
	return nil
}
