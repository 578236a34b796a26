package statement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/domain/reconciliation"
	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/infrastructure/metrics"
)

const defaultLockTTL = 30 * time.Second

// RevenueProvider decomposes every reservation of a listing checking out
// inside [from, to).
type RevenueProvider interface {
	RevenueForPeriod(ctx context.Context, listingID string, from, to time.Time) (
		[]*revenue.ReservationRevenue, []statement.ReservationFailure, error)
}

// Exporter renders a statement into a downloadable document
type Exporter interface {
	Format() string
	ContentType() string
	Export(stmt *statement.OwnerStatement) ([]byte, error)
}

// ExportFile is a rendered statement
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Service builds, locks and exports owner statements
type Service struct {
	aggregator   *statement.Aggregator
	revenues     RevenueProvider
	expenses     statement.ExpenseSource
	locks        statement.LockRepository
	guard        shared.LockGuard
	publisher    shared.EventPublisher
	transactions reconciliation.BankTransactionSource
	exporters    map[string]Exporter
	reporter     shared.ErrorReporter
	logger       *zap.Logger
	now          func() time.Time
	lockTTL      time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithCurrency sets the statement currency
func WithCurrency(c valueobject.Currency) Option {
	return func(s *Service) {
		s.aggregator = statement.NewAggregator(c)
	}
}

// WithLockGuard sets the fast-path single-writer guard
func WithLockGuard(g shared.LockGuard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

// WithPublisher sets where domain events go after a lock is persisted
func WithPublisher(p shared.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithBankTransactions enables reconciled locking
func WithBankTransactions(src reconciliation.BankTransactionSource) Option {
	return func(s *Service) {
		s.transactions = src
	}
}

// WithExporters registers statement exporters by format
func WithExporters(exporters ...Exporter) Option {
	return func(s *Service) {
		for _, e := range exporters {
			s.exporters[strings.ToLower(e.Format())] = e
		}
	}
}

// WithReporter sets the error reporter
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

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockTTL sets how long a guard claim lives
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// NewService creates a statement Service
func NewService(
	revenues RevenueProvider,
	expenses statement.ExpenseSource,
	locks statement.LockRepository,
	opts ...Option,
) *Service {
	s := &Service{
		aggregator: statement.NewAggregator(valueobject.DefaultCurrency),
		revenues:   revenues,
		expenses:   expenses,
		locks:      locks,
		exporters:  make(map[string]Exporter),
		reporter:   shared.NopReporter{},
		logger:     zap.NewNop(),
		now:        time.Now,
		lockTTL:    defaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildStatement aggregates already allocated reservations into a draft.
// It touches no storage.
func (s *Service) BuildStatement(
	ctx context.Context,
	listingID string,
	month, year int,
	reservations []*revenue.ReservationRevenue,
	expenses []statement.ExpenseLine,
) (*statement.OwnerStatement, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementBuild(result, time.Since(start))
	}()

	stmt, err := s.aggregator.Build(listingID, month, year, reservations, expenses)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return stmt, nil
}

// GetStatement returns the locked snapshot when the period is frozen,
// otherwise a draft rebuilt from the sources.
func (s *Service) GetStatement(ctx context.Context, listingID string, month, year int) (*statement.OwnerStatement, error) {
	period, err := statement.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	locked, err := s.findLocked(ctx, listingID, period)
	if err != nil {
		return nil, err
	}
	if locked != nil {
		return locked, nil
	}
	return s.draft(ctx, listingID, period)
}

// ListLocked returns every locked statement of a listing
func (s *Service) ListLocked(ctx context.Context, listingID string) ([]*statement.OwnerStatement, error) {
	stmts, err := s.locks.ListLocked(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("list locked statements for listing %s: %w", listingID, err)
	}
	for _, stmt := range stmts {
		if err := stmt.VerifySnapshot(); err != nil {
			s.reporter.Report(ctx, err, map[string]string{"listing_id": listingID, "period": stmt.Period.String()})
			return nil, err
		}
	}
	return stmts, nil
}

// LockStatement freezes the period's statement. A second lock for the same
// listing and period fails with ALREADY_LOCKED.
func (s *Service) LockStatement(ctx context.Context, listingID string, month, year int) (*statement.OwnerStatement, error) {
	return s.lock(ctx, listingID, month, year, nil)
}

// LockReconciled freezes the statement only when its payouts reconcile with
// the selected bank transactions. An empty selection covers the whole
// period.
func (s *Service) LockReconciled(
	ctx context.Context,
	listingID string,
	month, year int,
	sel reconciliation.TransactionSelection,
) (*statement.OwnerStatement, error) {
	if s.transactions == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "bank transactions are not configured")
	}
	return s.lock(ctx, listingID, month, year, func(stmt *statement.OwnerStatement) error {
		res, err := s.reconcile(ctx, stmt, sel)
		if err != nil {
			return err
		}
		if !res.CanReconcile {
			return shared.NewDomainErrorf(shared.CodeNotReconciled,
				"statement for listing %s %s does not reconcile with the selected transactions", listingID, stmt.Period)
		}
		return nil
	})
}

// Reconcile compares a statement's payouts with the selected bank
// transactions without changing anything.
func (s *Service) Reconcile(
	ctx context.Context,
	listingID string,
	month, year int,
	sel reconciliation.TransactionSelection,
) (reconciliation.Result, error) {
	if s.transactions == nil {
		return reconciliation.Result{}, shared.NewDomainError(shared.CodeInvalidState, "bank transactions are not configured")
	}
	stmt, err := s.GetStatement(ctx, listingID, month, year)
	if err != nil {
		return reconciliation.Result{}, err
	}
	return s.reconcile(ctx, stmt, sel)
}

// Export renders the period's statement in format (xlsx or pdf)
func (s *Service) Export(ctx context.Context, listingID string, month, year int, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	exporter, ok := s.exporters[format]
	if !ok {
		metrics.ObserveStatementExport(format, metrics.ResultError, 0)
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "unsupported export format %q", format)
	}
	stmt, err := s.GetStatement(ctx, listingID, month, year)
	if err != nil {
		metrics.ObserveStatementExport(format, metrics.ResultError, 0)
		return nil, err
	}
	data, err := exporter.Export(stmt)
	if err != nil {
		metrics.ObserveStatementExport(format, metrics.ResultError, 0)
		return nil, fmt.Errorf("export statement as %s: %w", format, err)
	}
	metrics.ObserveStatementExport(format, metrics.ResultSuccess, len(data))

	return &ExportFile{
		Name:        fmt.Sprintf("statement-%s-%s-%s.%s", listingID, stmt.Period, strings.ToLower(stmt.Status.String()), format),
		ContentType: exporter.ContentType(),
		Data:        data,
	}, nil
}

func (s *Service) lock(
	ctx context.Context,
	listingID string,
	month, year int,
	check func(*statement.OwnerStatement) error,
) (_ *statement.OwnerStatement, err error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementLock(result, time.Since(start))
	}()
	defer func() {
		switch {
		case err == nil:
		case shared.IsCode(err, shared.CodeAlreadyLocked):
			result = metrics.ResultAlreadyLocked
		case shared.IsCode(err, shared.CodeNotReconciled):
			result = metrics.ResultNotReconciled
		default:
			result = metrics.ResultError
		}
	}()

	period, err := statement.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("listing_id", listingID), zap.String("period", period.String()))

	existing, err := s.findLocked(ctx, listingID, period)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info("statement already locked")
		return nil, alreadyLocked(listingID, period)
	}

	key := guardKey(listingID, period)
	if s.guard != nil {
		claimed, err := s.guard.Acquire(ctx, key, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire statement lock guard: %w", err)
		}
		if !claimed {
			logger.Info("statement lock already in progress")
			return nil, alreadyLocked(listingID, period)
		}
	}
	release := func() {
		if s.guard == nil {
			return
		}
		if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			logger.Warn("failed to release statement lock guard", zap.Error(err))
		}
	}

	stmt, err := s.draft(ctx, listingID, period)
	if err != nil {
		release()
		return nil, err
	}
	if check != nil {
		if err := check(stmt); err != nil {
			release()
			return nil, err
		}
	}
	if err := stmt.Lock(s.now()); err != nil {
		release()
		return nil, err
	}
	if err := s.locks.PersistLock(ctx, stmt); err != nil {
		release()
		if shared.IsCode(err, shared.CodeAlreadyLocked) {
			logger.Info("statement locked concurrently")
			return nil, err
		}
		s.reporter.Report(ctx, err, map[string]string{"listing_id": listingID, "period": period.String()})
		return nil, fmt.Errorf("persist statement lock: %w", err)
	}

	logger.Info("statement locked",
		zap.String("statement_id", stmt.ID.String()),
		zap.String("snapshot_hash", stmt.SnapshotHash),
		zap.Int("reservations", stmt.ReservationCount),
		zap.Int("failures", len(stmt.Failures)),
	)
	s.publish(ctx, stmt)
	return stmt, nil
}

func (s *Service) publish(ctx context.Context, stmt *statement.OwnerStatement) {
	events := stmt.GetDomainEvents()
	stmt.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish statement events",
			zap.String("statement_id", stmt.ID.String()),
			zap.Error(err),
		)
		s.reporter.Report(ctx, err, map[string]string{"listing_id": stmt.ListingID, "period": stmt.Period.String()})
	}
}

func (s *Service) draft(ctx context.Context, listingID string, period statement.Period) (*statement.OwnerStatement, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementBuild(result, time.Since(start))
	}()

	revs, failures, err := s.revenues.RevenueForPeriod(ctx, listingID, period.Start(), period.End())
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	expenses, err := s.expenses.GetExpensesForPeriod(ctx, listingID, period)
	if err != nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("get expenses for listing %s %s: %w", listingID, period, err)
	}
	stmt, err := s.aggregator.Build(listingID, int(period.Month), period.Year, revs, expenses)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	stmt.Failures = append(failures, stmt.Failures...)
	if stmt.Failures == nil {
		stmt.Failures = []statement.ReservationFailure{}
	}
	return stmt, nil
}

func (s *Service) findLocked(ctx context.Context, listingID string, period statement.Period) (*statement.OwnerStatement, error) {
	locked, err := s.locks.FindLocked(ctx, listingID, period)
	if err != nil {
		return nil, fmt.Errorf("find locked statement for listing %s %s: %w", listingID, period, err)
	}
	if locked == nil {
		return nil, nil
	}
	if err := locked.VerifySnapshot(); err != nil {
		s.logger.Error("locked statement failed verification",
			zap.String("listing_id", listingID),
			zap.String("period", period.String()),
			zap.Error(err),
		)
		s.reporter.Report(ctx, err, map[string]string{"listing_id": listingID, "period": period.String()})
		return nil, err
	}
	return locked, nil
}

func (s *Service) reconcile(
	ctx context.Context,
	stmt *statement.OwnerStatement,
	sel reconciliation.TransactionSelection,
) (reconciliation.Result, error) {
	if sel.IsEmpty() {
		from, to := stmt.Period.Start(), stmt.Period.End().AddDate(0, 0, -1)
		sel.From, sel.To = &from, &to
	}
	txs, err := s.transactions.GetBankTransactions(ctx, stmt.ListingID, sel)
	if err != nil {
		return reconciliation.Result{}, fmt.Errorf("get bank transactions for listing %s: %w", stmt.ListingID, err)
	}
	txs = sel.Filter(txs)

	payouts := stmt.Payouts()
	res := reconciliation.Reconcile(payouts, reconciliation.Amounts(txs))
	metrics.IncReconcile(res.Outcome())

	s.logger.Info("statement reconciliation",
		zap.String("listing_id", stmt.ListingID),
		zap.String("period", stmt.Period.String()),
		zap.Int("payouts", len(payouts)),
		zap.Int("transactions", len(txs)),
		zap.Bool("can_reconcile", res.CanReconcile),
	)
	return res, nil
}

func guardKey(listingID string, period statement.Period) string {
	return "statement-lock:" + listingID + ":" + period.String()
}

func alreadyLocked(listingID string, period statement.Period) error {
	return shared.NewDomainErrorf(shared.CodeAlreadyLocked,
		"statement for listing %s %s is already locked", listingID, period)
}

