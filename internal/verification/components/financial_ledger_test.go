package components

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/domain/financial"
)

type MockFinancialRepo struct {
	mock.Mock
}

func (m *MockFinancialRepo) UpsertByReference(ctx context.Context, record *financial.Record) (*financial.Record, error) {
	args := m.Called(ctx, record)
	if fn, ok := args.Get(0).(func(context.Context, *financial.Record) *financial.Record); ok {
		return fn(ctx, record), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financial.Record), args.Error(1)
}

func (m *MockFinancialRepo) FindByReference(ctx context.Context, reference string) (*financial.Record, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financial.Record), args.Error(1)
}

func (m *MockFinancialRepo) UpdateStatus(ctx context.Context, reference string, status financial.Status) (*financial.Record, error) {
	args := m.Called(ctx, reference, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financial.Record), args.Error(1)
}

func (m *MockFinancialRepo) AggregateByStatus(ctx context.Context) (map[financial.Status]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[financial.Status]int64), args.Error(1)
}

func (m *MockFinancialRepo) ListByOrder(ctx context.Context, orderID string) ([]*financial.Record, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*financial.Record), args.Error(1)
}

func (m *MockFinancialRepo) ListUnsettled(ctx context.Context, filter financial.Filter) ([]*financial.Record, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*financial.Record), args.Error(1)
}

func (m *MockFinancialRepo) AssignSettlement(ctx context.Context, ids []int64, settlementID string) (int64, error) {
	args := m.Called(ctx, ids, settlementID)
	return args.Get(0).(int64), args.Error(1)
}

// WithTx returns the same mock so expectations hold inside transactions
func (m *MockFinancialRepo) WithTx(_ pgx.Tx) financial.Repository {
	return m
}

type MockRateProvider struct {
	mock.Mock
}

func (m *MockRateProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, bool) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Bool(1)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testFinancialConfig = config.FinancialConfig{BaseCurrency: "USD", DefaultCurrency: "BDT"}

// echoUpsert returns the record it was given
func echoUpsert(repo *MockFinancialRepo) {
	repo.On("UpsertByReference", mock.Anything, mock.Anything).Return(func(_ context.Context, r *financial.Record) *financial.Record {
		return r
	}, nil)
}

func TestFinancialLedger_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("ConvertsToBaseCurrency", func(t *testing.T) {
		repo := &MockFinancialRepo{}
		rates := &MockRateProvider{}
		echoUpsert(repo)
		rates.On("Rate", ctx, "BDT", "USD").Return(dec("0.0091"), true).Once()

		ledger := NewFinancialLedger(repo, rates, testFinancialConfig, true, slog.Default())
		record, err := ledger.Record(ctx, financial.Payment{
			Reference:      " VW1234 ",
			OrderID:        "ORD1",
			StoreSlug:      "dhaka-store",
			AmountExpected: dec("1000"),
			AmountPaid:     dec("1000.004"),
			Gateway:        "BKash",
			TrxID:          "TRX1",
		})

		require.NoError(t, err)
		assert.Equal(t, "VW1234", record.Reference)
		assert.Equal(t, "BDT", record.Currency)
		assert.Equal(t, "USD", record.BaseCurrency)
		assert.Equal(t, "bkash", record.Gateway)
		assert.Equal(t, financial.StatusConfirmed, record.Status)
		assert.NotNil(t, record.ConfirmedAt)
		require.NotNil(t, record.TrxID)
		assert.Equal(t, "TRX1", *record.TrxID)
		assert.True(t, dec("1000").Equal(record.AmountPaid))
		assert.True(t, record.ExchangeRate.Valid)
		assert.True(t, dec("9.10003640").Equal(record.NormalizedAmount.Decimal), "got %s", record.NormalizedAmount.Decimal)
		rates.AssertExpectations(t)
	})

	t.Run("SameCurrencyNeedsNoProvider", func(t *testing.T) {
		repo := &MockFinancialRepo{}
		echoUpsert(repo)

		ledger := NewFinancialLedger(repo, nil, testFinancialConfig, true, slog.Default())
		record, err := ledger.Record(ctx, financial.Payment{
			Reference:      "VW1",
			AmountExpected: dec("50"),
			AmountPaid:     dec("40"),
			Context:        financial.Context{Currency: "usd"},
		})

		require.NoError(t, err)
		assert.Equal(t, financial.StatusPartial, record.Status)
		assert.Nil(t, record.ConfirmedAt)
		assert.True(t, dec("1").Equal(record.ExchangeRate.Decimal))
		assert.True(t, dec("40").Equal(record.NormalizedAmount.Decimal))
	})

	t.Run("MissingRateIsTolerated", func(t *testing.T) {
		repo := &MockFinancialRepo{}
		rates := &MockRateProvider{}
		echoUpsert(repo)
		rates.On("Rate", ctx, "EUR", "USD").Return(decimal.Zero, false).Once()

		ledger := NewFinancialLedger(repo, rates, testFinancialConfig, true, slog.Default())
		record, err := ledger.Record(ctx, financial.Payment{
			Reference:      "VW2",
			AmountExpected: dec("10"),
			AmountPaid:     dec("12"),
			Context:        financial.Context{Currency: "EUR"},
		})

		require.NoError(t, err)
		assert.Equal(t, financial.StatusOverpaid, record.Status)
		assert.False(t, record.ExchangeRate.Valid)
		assert.False(t, record.NormalizedAmount.Valid)
		assert.True(t, dec("12").Equal(record.EffectivePaid()))
	})

	t.Run("Validation", func(t *testing.T) {
		ledger := NewFinancialLedger(&MockFinancialRepo{}, nil, testFinancialConfig, true, slog.Default())

		_, err := ledger.Record(ctx, financial.Payment{Reference: "  "})
		assert.ErrorIs(t, err, financial.ErrEmptyReference)

		_, err = ledger.Record(ctx, financial.Payment{Reference: "VW1", AmountExpected: dec("-1")})
		assert.ErrorIs(t, err, financial.ErrNegativeExpected)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := &MockFinancialRepo{}
		repo.On("UpsertByReference", ctx, mock.Anything).Return(nil, errors.New("db down")).Once()

		ledger := NewFinancialLedger(repo, nil, testFinancialConfig, true, slog.Default())
		_, err := ledger.Record(ctx, financial.Payment{Reference: "VW1", AmountExpected: dec("1"), AmountPaid: dec("1"), Context: financial.Context{Currency: "USD"}})

		assert.ErrorContains(t, err, "failed to record payment for reference VW1")
	})

	t.Run("Disabled", func(t *testing.T) {
		ledger := NewFinancialLedger(nil, nil, testFinancialConfig, true, slog.Default())

		assert.False(t, ledger.Enabled())
		_, err := ledger.Record(ctx, financial.Payment{Reference: "VW1"})
		assert.ErrorIs(t, err, financial.ErrFinancialDisabled)
		_, err = ledger.Stats(ctx)
		assert.ErrorIs(t, err, financial.ErrFinancialDisabled)
		_, err = ledger.ReconcileOrder(ctx, "ORD1")
		assert.ErrorIs(t, err, financial.ErrFinancialDisabled)
	})
}

func TestFinancialLedger_Transitions(t *testing.T) {
	ctx := context.Background()
	settlementID := "SET-20260121-ABC123"

	testCases := []struct {
		name        string
		current     financial.Record
		action      func(*FinancialLedgerImpl) (*financial.Record, error)
		target      financial.Status
		expectWrite bool
		expectedErr error
	}{
		{
			name:        "RefundConfirmed",
			current:     financial.Record{Reference: "VW1", Status: financial.StatusConfirmed},
			action:      func(l *FinancialLedgerImpl) (*financial.Record, error) { return l.MarkRefunded(ctx, "VW1") },
			target:      financial.StatusRefunded,
			expectWrite: true,
		},
		{
			name:        "RefundCancelled",
			current:     financial.Record{Reference: "VW1", Status: financial.StatusCancelled},
			action:      func(l *FinancialLedgerImpl) (*financial.Record, error) { return l.MarkRefunded(ctx, "VW1") },
			expectedErr: financial.ErrInvalidTransition,
		},
		{
			name:    "RefundTwiceIsNoop",
			current: financial.Record{Reference: "VW1", Status: financial.StatusRefunded},
			action:  func(l *FinancialLedgerImpl) (*financial.Record, error) { return l.MarkRefunded(ctx, "VW1") },
		},
		{
			name:        "CancelPartial",
			current:     financial.Record{Reference: "VW1", Status: financial.StatusPartial},
			action:      func(l *FinancialLedgerImpl) (*financial.Record, error) { return l.Cancel(ctx, "VW1") },
			target:      financial.StatusCancelled,
			expectWrite: true,
		},
		{
			name:        "CancelSettled",
			current:     financial.Record{Reference: "VW1", Status: financial.StatusConfirmed, SettlementID: &settlementID},
			action:      func(l *FinancialLedgerImpl) (*financial.Record, error) { return l.Cancel(ctx, "VW1") },
			expectedErr: financial.ErrInvalidTransition,
		},
		{
			name:        "CancelRefunded",
			current:     financial.Record{Reference: "VW1", Status: financial.StatusRefunded},
			action:      func(l *FinancialLedgerImpl) (*financial.Record, error) { return l.Cancel(ctx, "VW1") },
			expectedErr: financial.ErrInvalidTransition,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &MockFinancialRepo{}
			current := tc.current
			repo.On("FindByReference", ctx, "VW1").Return(&current, nil).Once()
			if tc.expectWrite {
				updated := current
				updated.Status = tc.target
				repo.On("UpdateStatus", ctx, "VW1", tc.target).Return(&updated, nil).Once()
			}

			ledger := NewFinancialLedger(repo, nil, testFinancialConfig, true, slog.Default())
			record, err := tc.action(ledger)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
				if tc.expectWrite {
					assert.Equal(t, tc.target, record.Status)
				}
			}
			repo.AssertExpectations(t)
			if !tc.expectWrite {
				repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestFinancialLedger_ReconcileOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("TotalsPerGateway", func(t *testing.T) {
		repo := &MockFinancialRepo{}
		repo.On("ListByOrder", ctx, "ORD1").Return([]*financial.Record{
			{Gateway: "bkash", AmountPaid: dec("500"), NormalizedAmount: decimal.NewNullDecimal(dec("4.55")), BaseCurrency: "USD"},
			{Gateway: "bkash", AmountPaid: dec("100"), NormalizedAmount: decimal.NewNullDecimal(dec("0.91")), BaseCurrency: "USD"},
			{Gateway: "nagad", AmountPaid: dec("2.00"), BaseCurrency: "USD"},
			{Gateway: "", AmountPaid: dec("1.50"), BaseCurrency: "USD"},
		}, nil).Once()

		ledger := NewFinancialLedger(repo, nil, testFinancialConfig, true, slog.Default())
		result, err := ledger.ReconcileOrder(ctx, "ORD1")

		require.NoError(t, err)
		assert.Equal(t, "ORD1", result.OrderID)
		assert.Equal(t, "USD", result.BaseCurrency)
		assert.Equal(t, 4, result.RecordCount)
		assert.True(t, dec("5.46").Equal(result.Gateways["bkash"]))
		assert.True(t, dec("2").Equal(result.Gateways["nagad"]))
		assert.True(t, dec("1.5").Equal(result.Gateways[unknownGateway]))
		assert.True(t, dec("8.96").Equal(result.TotalPaid))
	})

	t.Run("NoRecords", func(t *testing.T) {
		repo := &MockFinancialRepo{}
		repo.On("ListByOrder", ctx, "ORD9").Return([]*financial.Record{}, nil).Once()

		ledger := NewFinancialLedger(repo, nil, testFinancialConfig, true, slog.Default())
		_, err := ledger.ReconcileOrder(ctx, "ORD9")

		assert.ErrorIs(t, err, financial.ErrNoOrderRecords)
	})
}

func TestFinancialLedger_Stats(t *testing.T) {
	ctx := context.Background()
	repo := &MockFinancialRepo{}
	counts := map[financial.Status]int64{financial.StatusConfirmed: 3, financial.StatusPartial: 1}
	repo.On("AggregateByStatus", ctx).Return(counts, nil).Once()

	ledger := NewFinancialLedger(repo, nil, testFinancialConfig, true, slog.Default())
	stats, err := ledger.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, counts, stats)
}
