package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	reconciliationapp "github.com/stayledger/backend/internal/application/reconciliation"
	revenueapp "github.com/stayledger/backend/internal/application/revenue"
	statementapp "github.com/stayledger/backend/internal/application/statement"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
	"github.com/stayledger/backend/internal/infrastructure/cache"
	"github.com/stayledger/backend/internal/infrastructure/export"
	"github.com/stayledger/backend/internal/infrastructure/persistence"
	"github.com/stayledger/backend/internal/infrastructure/persistence/models"
	"github.com/stayledger/backend/internal/interfaces/http/dto"
	"github.com/stayledger/backend/internal/interfaces/http/middleware"
	"github.com/stayledger/backend/internal/interfaces/http/router"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every goroutine on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func marchDay(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

// seed stores one two-night direct stay at 100.00 a night that checks out
// in March 2024 and the 200.00 Stripe deposit that paid it
func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.BusinessModelModel{
		ListingID: "listing-1",
		PMCShare:  decimal.RequireFromString("0.8"),
	}).Error)
	require.NoError(t, db.Create(&models.ReservationModel{
		ID:          "res-1",
		ListingID:   "listing-1",
		Channel:     "DIRECT",
		Status:      "CONFIRMED",
		CheckIn:     marchDay(3),
		CheckOut:    marchDay(5),
		Guests:      2,
		NightlyRate: decimal.RequireFromString("100.00"),
	}).Error)
	require.NoError(t, db.Create(&models.BankTransactionModel{
		ID:        "tx-1",
		ListingID: "listing-1",
		Amount:    decimal.RequireFromString("200.00"),
		Date:      marchDay(6),
		Vendor:    "Stripe",
	}).Error)
}

func newTestServer(t *testing.T, checkers ...HealthChecker) *testServer {
	t.Helper()
	db := setupTestDB(t)
	seed(t, db)

	guard := cache.NewInMemoryLockGuard()
	t.Cleanup(func() { _ = guard.Close() })

	revenues := revenueapp.NewService(
		persistence.NewGormReservationSource(db),
		persistence.NewGormBusinessModelSource(db),
	)
	statements := statementapp.NewService(
		revenues,
		persistence.NewGormExpenseSource(db),
		persistence.NewGormStatementLockRepository(db),
		statementapp.WithLockGuard(guard),
		statementapp.WithBankTransactions(persistence.NewGormBankTransactionSource(db)),
		statementapp.WithExporters(export.NewXLSX(), export.NewPDF()),
		statementapp.WithClock(func() time.Time { return time.Date(2024, time.April, 2, 9, 0, 0, 0, time.UTC) }),
	)
	reconciliations := reconciliationapp.NewService(statements, valueobject.USD, nil)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", NewHealthHandler(checkers...).Health)

	recHandler := NewReconciliationHandler(reconciliations, valueobject.USD)
	router.NewRouter(engine).
		Register(
			RevenueRoutes(NewRevenueHandler(revenues)),
			StatementRoutes(NewStatementHandler(statements), recHandler),
			ReconciliationRoutes(recHandler),
		).
		Setup()

	return &testServer{engine: engine, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	env := decode(t, w)
	require.True(t, env.Success, w.Body.String())
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func amountAt(t *testing.T, data map[string]any, keys ...string) string {
	t.Helper()
	var cur any = data
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		require.True(t, ok, "missing %s", k)
		cur = m[k]
	}
	s, ok := cur.(string)
	require.True(t, ok, "%v is not an amount string", cur)
	return s
}

func directStay() map[string]any {
	return map[string]any{
		"reservation_id": "res-9",
		"listing_id":     "listing-1",
		"channel":        "DIRECT",
		"check_in":       "2024-03-03T00:00:00Z",
		"check_out":      "2024-03-05T00:00:00Z",
		"guests":         2,
		"nightly_rate":   "100.00",
	}
}

func TestRevenueHandler_Decompose(t *testing.T) {
	s := newTestServer(t)

	t.Run("splits the reservation", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose", map[string]any{
			"facts":          directStay(),
			"business_model": map[string]any{"listing_id": "listing-1", "pmc_share": "0.8"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		data := decodeData(t, w)
		assert.Equal(t, "res-9", data["reservation_id"])
		assert.Equal(t, true, data["allocated"])
		assert.Equal(t, "200.00", amountAt(t, data, "payout_amount", "amount"))
		assert.Equal(t, "USD", data["payout_amount"].(map[string]any)["currency"])
	})

	t.Run("missing business model is a validation error", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose", map[string]any{"facts": directStay()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		require.NotEmpty(t, env.Error.Details)
		assert.Equal(t, "business_model", env.Error.Details[0].Field)
	})

	t.Run("check-out before check-in is bad revenue input", func(t *testing.T) {
		facts := directStay()
		facts["check_out"] = "2024-03-01T00:00:00Z"
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose", map[string]any{
			"facts":          facts,
			"business_model": map[string]any{"listing_id": "listing-1", "pmc_share": "0.8"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidRevenueInput, decode(t, w).Error.Code)
	})

	t.Run("share above one is an invalid business model", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose", map[string]any{
			"facts":          directStay(),
			"business_model": map[string]any{"listing_id": "listing-1", "pmc_share": "1.5"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidBusinessModel, decode(t, w).Error.Code)
	})

	t.Run("missing pmc share is an invalid business model", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose", map[string]any{
			"facts":          directStay(),
			"business_model": map[string]any{"listing_id": "listing-1", "tax_rates": map[string]any{"municipal": "0.08"}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, dto.ErrCodeInvalidBusinessModel, decode(t, w).Error.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose", `{"facts":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, w).Error.Code)
	})
}

func TestRevenueHandler_StoredReservations(t *testing.T) {
	s := newTestServer(t)

	t.Run("single reservation", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/reservations/res-1/revenue", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeData(t, w)
		assert.Equal(t, "listing-1", data["listing_id"])
		assert.Equal(t, "200.00", amountAt(t, data, "payout_amount", "amount"))
	})

	t.Run("unknown reservation", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/reservations/nope/revenue", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decode(t, w).Error.Code)
	})

	t.Run("batch keeps going past failures", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose/batch", map[string]any{
			"reservation_ids": []string{"res-1", "nope"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var result struct {
			Revenues []map[string]any `json:"revenues"`
			Failures []struct {
				ReservationID string `json:"reservation_id"`
				Code          string `json:"code"`
			} `json:"failures"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
		require.Len(t, result.Revenues, 1)
		assert.Equal(t, "res-1", result.Revenues[0]["reservation_id"])
		require.Len(t, result.Failures, 1)
		assert.Equal(t, "nope", result.Failures[0].ReservationID)
		assert.Equal(t, "NOT_FOUND", result.Failures[0].Code)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/revenue/decompose/batch", map[string]any{
			"reservation_ids": []string{},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
	})
}

func TestStatementHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/listings/listing-1/statements"

	w := s.do(t, http.MethodGet, base+"/2024/3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft := decodeData(t, w)
	assert.Equal(t, "DRAFT", draft["status"])
	assert.EqualValues(t, 1, draft["reservation_count"])
	assert.Equal(t, "200.00", amountAt(t, draft, "totals", "payout", "amount"))

	w = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	w = s.do(t, http.MethodPost, base+"/2024/3/lock", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	locked := decodeData(t, w)
	assert.Equal(t, "LOCKED", locked["status"])
	assert.NotEmpty(t, locked["snapshot_hash"])

	w = s.do(t, http.MethodPost, base+"/2024/3/lock", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeAlreadyLocked, decode(t, w).Error.Code)

	// a later reservation must not leak into the locked month
	require.NoError(t, s.db.Create(&models.ReservationModel{
		ID:          "res-2",
		ListingID:   "listing-1",
		Channel:     "DIRECT",
		Status:      "CONFIRMED",
		CheckIn:     marchDay(20),
		CheckOut:    marchDay(22),
		NightlyRate: decimal.RequireFromString("150.00"),
	}).Error)

	w = s.do(t, http.MethodGet, base+"/2024/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	frozen := decodeData(t, w)
	assert.Equal(t, "LOCKED", frozen["status"])
	assert.EqualValues(t, 1, frozen["reservation_count"])
	assert.Equal(t, locked["snapshot_hash"], frozen["snapshot_hash"])

	w = s.do(t, http.MethodGet, base, nil)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "LOCKED", list[0]["status"])
}

func TestStatementHandler_LockReconciled(t *testing.T) {
	base := "/api/v1/listings/listing-1/statements/2024/3"

	t.Run("selection that does not cover the payouts", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, base+"/lock", map[string]any{
			"selection": map[string]any{"vendor": "Airbnb"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, dto.ErrCodeNotReconciled, decode(t, w).Error.Code)

		// the failed attempt leaves the month open
		w = s.do(t, http.MethodGet, base, nil)
		assert.Equal(t, "DRAFT", decodeData(t, w)["status"])
	})

	t.Run("matching vendor locks", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, base+"/lock", map[string]any{
			"selection": map[string]any{"vendor": "  stripe "},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "LOCKED", decodeData(t, w)["status"])
	})

	t.Run("unknown selection field type", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, base+"/lock", map[string]any{
			"selection": map[string]any{"ids": "tx-1"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, w).Error.Code)
	})
}

func TestStatementHandler_Build(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/reservations/res-1/revenue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rev json.RawMessage = decode(t, w).Data

	w = s.do(t, http.MethodPost, "/api/v1/statements/build", map[string]any{
		"listing_id":   "listing-1",
		"month":        3,
		"year":         2024,
		"reservations": []json.RawMessage{rev},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData(t, w)
	assert.Equal(t, "DRAFT", data["status"])
	assert.Equal(t, "200.00", amountAt(t, data, "totals", "payout", "amount"))

	var tampered map[string]any
	require.NoError(t, json.Unmarshal(rev, &tampered))
	tampered["payout_amount"] = map[string]any{"amount": "200.005", "currency": "USD"}
	w = s.do(t, http.MethodPost, "/api/v1/statements/build", map[string]any{
		"listing_id":   "listing-1",
		"month":        3,
		"year":         2024,
		"reservations": []any{tampered},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w).Error.Code)

	w = s.do(t, http.MethodPost, "/api/v1/statements/build", map[string]any{
		"listing_id": "listing-1",
		"month":      13,
		"year":       2024,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
}

func TestStatementHandler_Export(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/listings/listing-1/statements/2024/3/export"

	w := s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statement-listing-1-2024-03-draft.xlsx")
	assert.Equal(t, "PK", w.Body.String()[:2])

	w = s.do(t, http.MethodGet, base+"?format=pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", w.Body.String()[:4])

	w = s.do(t, http.MethodGet, base+"?format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/listings/listing-1/statements/2024/0/export", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconciliationHandler(t *testing.T) {
	s := newTestServer(t)

	t.Run("sub-cent gap reconciles", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/reconciliations", `{"reservation_payouts":[100],"transaction_amounts":[99.995]}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeData(t, w)
		assert.Equal(t, true, data["can_reconcile"])
		assert.Equal(t, "100.00", amountAt(t, data, "sum_reservations", "amount"))
	})

	t.Run("missing transaction does not reconcile", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/reconciliations", map[string]any{
			"reservation_payouts": []string{"100.00", "50.00"},
			"transaction_amounts": []string{"100.00"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, false, data["can_reconcile"])
		assert.Equal(t, "50.00", amountAt(t, data, "gap_to_reconcile", "amount"))
	})

	t.Run("empty lists answer with null sums", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/reconciliations", map[string]any{})
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, false, data["can_reconcile"])
		assert.Nil(t, data["sum_reservations"])
	})

	t.Run("other currency is rejected", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/reconciliations", map[string]any{
			"reservation_payouts": []string{"1"},
			"transaction_amounts": []string{"1"},
			"currency":            "eur",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decode(t, w).Error.Code)
	})

	t.Run("statement month against the bank", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/listings/listing-1/statements/2024/3/reconcile", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeData(t, w)
		assert.Equal(t, true, data["can_reconcile"])
		assert.Equal(t, "200.00", amountAt(t, data, "sum_transactions", "amount"))

		w = s.do(t, http.MethodPost, "/api/v1/listings/listing-1/statements/2024/3/reconcile", map[string]any{
			"selection": map[string]any{"sign": "DEBIT"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, false, decodeData(t, w)["can_reconcile"])
	})
}

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Name() string { return f.name }
func (f fakeChecker) Ping(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, fakeChecker{name: "database"})
		w := s.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
		assert.Contains(t, w.Body.String(), `"database":"ok"`)
	})

	t.Run("a failing dependency", func(t *testing.T) {
		s := newTestServer(t, fakeChecker{name: "database"}, fakeChecker{name: "redis", err: errors.New("refused")})
		w := s.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
		assert.Contains(t, w.Body.String(), `"redis":"error"`)
	})
}
