//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"

	"github.com/stayledger/backend/internal/domain/reconciliation"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/infrastructure/config"
	"github.com/stayledger/backend/internal/infrastructure/migration"
	"github.com/stayledger/backend/internal/infrastructure/persistence/models"
	"github.com/stayledger/backend/migrations"
)

// newPostgresDB starts a throwaway PostgreSQL container and applies the
// embedded migrations to it
func newPostgresDB(t *testing.T) (*Database, *migration.Migrator) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stayledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(gormpostgres.Open(dsn), &config.DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 5,
	}, nil, "silent")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrations.FS, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db, m
}

func TestPostgres_Migrations(t *testing.T) {
	db, m := newPostgresDB(t)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var count int64
	require.NoError(t, db.DB.Raw(
		`SELECT COUNT(*) FROM pg_indexes WHERE indexname = 'idx_statement_locks_period'`,
	).Scan(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, m.Up())
}

func TestPostgres_ConcurrentLocks(t *testing.T) {
	db, _ := newPostgresDB(t)
	repo := NewGormStatementLockRepository(db.DB)
	ctx := context.Background()

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		refused int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.PersistLock(ctx, lockedMarch(t))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case shared.IsCode(err, shared.CodeAlreadyLocked):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, refused)

	march, err := statement.NewPeriod(2024, 3)
	require.NoError(t, err)
	found, err := repo.FindLocked(ctx, "listing-1", march)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.NoError(t, found.VerifySnapshot())
	assert.True(t, found.IsLocked())
}

func TestPostgres_SourceQueries(t *testing.T) {
	db, _ := newPostgresDB(t)
	ctx := context.Background()

	require.NoError(t, db.DB.Create(&[]models.ReservationModel{
		{ID: "feb-last", ListingID: "listing-1", Channel: "DIRECT", CheckIn: day(2, 27), CheckOut: day(2, 29), NightlyRate: dec("100")},
		{ID: "mar-first", ListingID: "listing-1", Channel: "AIRBNB", CheckIn: day(2, 28), CheckOut: day(3, 1), NightlyRate: dec("100")},
		{ID: "mar-last", ListingID: "listing-1", Channel: "VRBO", CheckIn: day(3, 29), CheckOut: day(3, 31), NightlyRate: dec("100")},
		{ID: "apr-first", ListingID: "listing-1", Channel: "DIRECT", CheckIn: day(3, 30), CheckOut: day(4, 1), NightlyRate: dec("100")},
		{ID: "cancelled", ListingID: "listing-1", Channel: "DIRECT", Status: models.ReservationStatusCancelled, CheckIn: day(3, 10), CheckOut: day(3, 12), NightlyRate: dec("100")},
	}).Error)

	reservations := NewGormReservationSource(db.DB)
	facts, err := reservations.ListCheckingOut(ctx, "listing-1", day(3, 1), day(4, 1))
	require.NoError(t, err)
	ids := make([]string, len(facts))
	for i, f := range facts {
		ids[i] = f.ReservationID
	}
	assert.Equal(t, []string{"mar-first", "mar-last"}, ids)

	require.NoError(t, db.DB.Create(&[]models.BankTransactionModel{
		{ID: "tx-1", ListingID: "listing-1", Amount: dec("180.00"), Date: day(3, 2), Vendor: "Airbnb"},
		{ID: "tx-2", ListingID: "listing-1", Amount: dec("190.00"), Date: day(3, 31), Vendor: " AIRBNB "},
		{ID: "tx-3", ListingID: "listing-1", Amount: dec("-25.00"), Date: day(3, 15), Vendor: "Cleaner"},
		{ID: "tx-4", ListingID: "listing-1", Amount: dec("200.00"), Date: day(4, 1), Vendor: "Airbnb"},
	}).Error)

	from, to := day(3, 1), day(3, 31)
	txSource := NewGormBankTransactionSource(db.DB)
	txs, err := txSource.GetBankTransactions(ctx, "listing-1", reconciliation.TransactionSelection{
		Vendor: "airbnb",
		From:   &from,
		To:     &to,
	})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx-1", txs[0].ID)
	assert.Equal(t, "tx-2", txs[1].ID)

	txs, err = txSource.GetBankTransactions(ctx, "listing-1", reconciliation.TransactionSelection{Sign: reconciliation.SignDebit})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-3", txs[0].ID)
}
