package revenue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/infrastructure/metrics"
)

// defaultMaxParallel bounds concurrent decompositions in a batch
const defaultMaxParallel = 8

// BatchResult is the outcome of decomposing several reservations. A failed
// reservation shows up in Failures and never affects the others.
type BatchResult struct {
	Revenues []*revenue.ReservationRevenue `json:"revenues"`
	Failures []statement.ReservationFailure `json:"failures"`
}

// Service decomposes and allocates reservation revenue
type Service struct {
	decomposer   *revenue.Decomposer
	allocator    *revenue.Allocator
	reservations revenue.ReservationSource
	models       revenue.BusinessModelSource
	reporter     shared.ErrorReporter
	logger       *zap.Logger
	maxParallel  int
}

// Option configures a Service
type Option func(*Service)

// WithDecomposer replaces the default decomposer
func WithDecomposer(d *revenue.Decomposer) Option {
	return func(s *Service) {
		if d != nil {
			s.decomposer = d
		}
	}
}

// WithReporter sets where per-reservation failures are reported
func WithReporter(r shared.ErrorReporter) Option {
	return func(s *Service) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxParallel bounds concurrent decompositions in batch calls
func WithMaxParallel(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// NewService creates a revenue Service
func NewService(
	reservations revenue.ReservationSource,
	models revenue.BusinessModelSource,
	opts ...Option,
) *Service {
	s := &Service{
		decomposer:   revenue.NewDecomposer(),
		allocator:    revenue.NewAllocator(),
		reservations: reservations,
		models:       models,
		reporter:     shared.NopReporter{},
		logger:       zap.NewNop(),
		maxParallel:  defaultMaxParallel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decompose computes and allocates one reservation from facts the caller
// already holds.
func (s *Service) Decompose(
	ctx context.Context,
	facts revenue.RawReservationFacts,
	model revenue.BusinessModel,
) (*revenue.ReservationRevenue, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveDecompose(result, time.Since(start))
	}()

	raw, err := s.decomposer.Decompose(facts, model)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	rev, err := s.allocator.Allocate(raw, model)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	if len(rev.UnrecognizedFeeTypes) > 0 {
		s.logger.Warn("unrecognized fee types booked as other",
			zap.String("reservation_id", rev.ReservationID),
			zap.String("listing_id", rev.ListingID),
			zap.Strings("fee_types", rev.UnrecognizedFeeTypes),
		)
	}
	return rev, nil
}

// DecomposeReservation loads a reservation and its listing's business model
// and decomposes it.
func (s *Service) DecomposeReservation(ctx context.Context, reservationID string) (*revenue.ReservationRevenue, error) {
	facts, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}
	if facts == nil {
		return nil, shared.NewDomainErrorf(shared.CodeNotFound, "reservation %s not found", reservationID)
	}
	model, err := s.businessModel(ctx, facts.ListingID)
	if err != nil {
		return nil, err
	}
	return s.Decompose(ctx, *facts, *model)
}

// DecomposeReservations decomposes reservations concurrently. Individual
// failures are collected, reported and returned alongside the successes;
// only cancellation of ctx aborts the batch.
func (s *Service) DecomposeReservations(ctx context.Context, reservationIDs []string) (*BatchResult, error) {
	metrics.ObserveBatchSize(len(reservationIDs))

	revenues := make([]*revenue.ReservationRevenue, len(reservationIDs))
	failures := make([]*statement.ReservationFailure, len(reservationIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, id := range reservationIDs {
		g.Go(func() error {
			rev, err := s.DecomposeReservation(gctx, id)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				f := s.fail(gctx, id, "", err)
				failures[i] = &f
				return nil
			}
			revenues[i] = rev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return collect(revenues, failures), nil
}

// RevenueForPeriod decomposes every reservation of a listing that checks out
// inside [from, to). A missing business model fails the whole period since
// no reservation could be split without it.
func (s *Service) RevenueForPeriod(
	ctx context.Context,
	listingID string,
	from, to time.Time,
) ([]*revenue.ReservationRevenue, []statement.ReservationFailure, error) {
	model, err := s.businessModel(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	facts, err := s.reservations.ListCheckingOut(ctx, listingID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list reservations for listing %s: %w", listingID, err)
	}

	revenues := make([]*revenue.ReservationRevenue, len(facts))
	failures := make([]*statement.ReservationFailure, len(facts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i := range facts {
		g.Go(func() error {
			rev, err := s.Decompose(gctx, facts[i], *model)
			if err != nil {
				f := s.fail(gctx, facts[i].ReservationID, listingID, err)
				failures[i] = &f
				return nil
			}
			revenues[i] = rev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	batch := collect(revenues, failures)
	return batch.Revenues, batch.Failures, nil
}

func (s *Service) businessModel(ctx context.Context, listingID string) (*revenue.BusinessModel, error) {
	model, err := s.models.GetBusinessModel(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("get business model for listing %s: %w", listingID, err)
	}
	if model == nil {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidBusinessModel,
			"listing %s has no business model configured", listingID)
	}
	return model, nil
}

func (s *Service) fail(ctx context.Context, reservationID, listingID string, err error) statement.ReservationFailure {
	f := statement.FailureFromError(reservationID, err)
	tags := map[string]string{"reservation_id": reservationID, "code": f.Code}
	if listingID != "" {
		tags["listing_id"] = listingID
	}

	var de *shared.DomainError
	if errors.As(err, &de) {
		s.logger.Warn("reservation left out of batch",
			zap.String("reservation_id", reservationID),
			zap.String("code", de.Code),
			zap.String("reason", de.Message),
		)
	} else {
		s.logger.Error("reservation decomposition failed",
			zap.String("reservation_id", reservationID),
			zap.Error(err),
		)
	}
	s.reporter.Report(ctx, err, tags)
	return f
}

func collect(revenues []*revenue.ReservationRevenue, failures []*statement.ReservationFailure) *BatchResult {
	out := &BatchResult{
		Revenues: make([]*revenue.ReservationRevenue, 0, len(revenues)),
		Failures: make([]statement.ReservationFailure, 0),
	}
	for i := range revenues {
		if revenues[i] != nil {
			out.Revenues = append(out.Revenues, revenues[i])
		}
		if failures[i] != nil {
			out.Failures = append(out.Failures, *failures[i])
		}
	}
	return out
}
