package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendweave-gateway/internal/domain/financial"
)

var financialRecordRowColumns = []string{
	"id", "reference", "order_id", "store_slug", "amount_expected", "amount_paid", "currency", "base_currency",
	"exchange_rate", "normalized_amount", "status", "gateway", "trx_id", "settlement_id", "ledger_exported",
	"confirmed_at", "created_at", "updated_at",
}

func financialRow(rows *pgxmock.Rows, id int64, ref, orderID, gateway string, paid string, status financial.Status, now time.Time) *pgxmock.Rows {
	trxID := "TRX-" + ref
	return rows.AddRow(
		id, ref, orderID, "store-a",
		decimal.RequireFromString("100.00"), decimal.RequireFromString(paid),
		"BDT", "USD",
		decimal.NewNullDecimal(decimal.RequireFromString("0.0091")),
		decimal.NewNullDecimal(decimal.RequireFromString(paid).Mul(decimal.RequireFromString("0.0091"))),
		status, gateway, &trxID, nil, false, &now, now, now,
	)
}

func TestFinancialRecordRepository_UpsertByReference(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FinancialRecordRepository{querier: mock, logger: newTestLogger()}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	trxID := "TRX-VW-1"
	record := &financial.Record{
		Reference:      "VW-1",
		OrderID:        "WC-1",
		StoreSlug:      "store-a",
		AmountExpected: decimal.RequireFromString("100.00"),
		AmountPaid:     decimal.RequireFromString("100.00"),
		Currency:       "BDT",
		BaseCurrency:   "USD",
		Status:         financial.StatusConfirmed,
		Gateway:        "bkash",
		TrxID:          &trxID,
		ConfirmedAt:    &now,
	}

	query := `INSERT INTO financial_records .*ON CONFLICT \(reference\) DO UPDATE SET.*confirmed_at = COALESCE\(financial_records.confirmed_at, EXCLUDED.confirmed_at\)`
	anyArgs := make([]interface{}, 14)
	for i := range anyArgs {
		anyArgs[i] = pgxmock.AnyArg()
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(anyArgs...).
			WillReturnRows(financialRow(pgxmock.NewRows(financialRecordRowColumns), 1, "VW-1", "WC-1", "bkash", "100.00", financial.StatusConfirmed, now))

		stored, err := repo.UpsertByReference(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.ID)
		assert.Equal(t, financial.StatusConfirmed, stored.Status)
		assert.True(t, stored.ExchangeRate.Valid)
		assert.True(t, decimal.RequireFromString("0.91").Equal(stored.NormalizedAmount.Decimal))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("constraint violation")
		mock.ExpectQuery(query).WithArgs(anyArgs...).WillReturnError(dbErr)

		stored, err := repo.UpsertByReference(ctx, record)
		assert.Nil(t, stored)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to upsert financial record")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFinancialRecordRepository_FindByReference(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FinancialRecordRepository{querier: mock, logger: newTestLogger()}
	now := time.Now().UTC()
	query := `FROM financial_records\s+WHERE reference = \$1`

	mock.ExpectQuery(query).WithArgs("VW-2").
		WillReturnRows(financialRow(pgxmock.NewRows(financialRecordRowColumns), 2, "VW-2", "WC-2", "nagad", "90.00", financial.StatusPartial, now))
	record, err := repo.FindByReference(ctx, "VW-2")
	require.NoError(t, err)
	assert.Equal(t, financial.StatusPartial, record.Status)
	assert.Nil(t, record.SettlementID)

	mock.ExpectQuery(query).WithArgs("VW-404").WillReturnError(pgx.ErrNoRows)
	record, err = repo.FindByReference(ctx, "VW-404")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, financial.ErrRecordNotFound{Reference: "VW-404"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialRecordRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FinancialRecordRepository{querier: mock, logger: newTestLogger()}
	now := time.Now().UTC()
	query := `UPDATE financial_records\s+SET status = \$2, updated_at = \$3\s+WHERE reference = \$1`

	mock.ExpectQuery(query).WithArgs("VW-3", financial.StatusRefunded, pgxmock.AnyArg()).
		WillReturnRows(financialRow(pgxmock.NewRows(financialRecordRowColumns), 3, "VW-3", "WC-3", "bkash", "100.00", financial.StatusRefunded, now))
	record, err := repo.UpdateStatus(ctx, "VW-3", financial.StatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, financial.StatusRefunded, record.Status)

	mock.ExpectQuery(query).WithArgs("VW-404", financial.StatusRefunded, pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)
	_, err = repo.UpdateStatus(ctx, "VW-404", financial.StatusRefunded)
	assert.ErrorIs(t, err, financial.ErrRecordNotFound{})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialRecordRepository_AggregateByStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FinancialRecordRepository{querier: mock, logger: newTestLogger()}
	rows := pgxmock.NewRows([]string{"status", "count"}).
		AddRow(financial.StatusConfirmed, int64(5)).
		AddRow(financial.StatusOverpaid, int64(1))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\)\s+FROM financial_records\s+GROUP BY status`).WillReturnRows(rows)

	counts, err := repo.AggregateByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[financial.Status]int64{financial.StatusConfirmed: 5, financial.StatusOverpaid: 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialRecordRepository_ListByOrder(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FinancialRecordRepository{querier: mock, logger: newTestLogger()}
	now := time.Now().UTC()
	rows := pgxmock.NewRows(financialRecordRowColumns)
	financialRow(rows, 1, "VW-A", "WC-9", "bkash", "60.00", financial.StatusPartial, now)
	financialRow(rows, 2, "VW-B", "WC-9", "nagad", "40.00", financial.StatusPartial, now)
	mock.ExpectQuery(`FROM financial_records\s+WHERE order_id = \$1`).WithArgs("WC-9").WillReturnRows(rows)

	records, err := repo.ListByOrder(ctx, "WC-9")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bkash", records[0].Gateway)
	assert.Equal(t, "nagad", records[1].Gateway)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialRecordRepository_ListUnsettled(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FinancialRecordRepository{querier: mock, logger: newTestLogger()}
	statuses := []string{"CONFIRMED", "PARTIAL", "OVERPAID"}

	t.Run("no filter", func(t *testing.T) {
		mock.ExpectQuery(`WHERE settlement_id IS NULL AND status = ANY\(\$1\)\s+ORDER BY`).
			WithArgs(statuses).
			WillReturnRows(pgxmock.NewRows(financialRecordRowColumns))

		records, err := repo.ListUnsettled(ctx, financial.Filter{})
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("all filters", func(t *testing.T) {
		day := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
		start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`store_slug = \$2 AND gateway = \$3 AND created_at >= \$4 AND created_at < \$5`).
			WithArgs(statuses, "store-a", "bkash", start, start.AddDate(0, 0, 1)).
			WillReturnRows(financialRow(pgxmock.NewRows(financialRecordRowColumns), 7, "VW-7", "WC-7", "bkash", "100.00", financial.StatusConfirmed, day))

		records, err := repo.ListUnsettled(ctx, financial.Filter{StoreSlug: "store-a", Gateway: "bkash", Date: &day})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(7), records[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFinancialRecordRepository_AssignSettlement(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &FinancialRecordRepository{querier: mock, logger: newTestLogger()}
	ids := []int64{1, 2, 3}
	query := `UPDATE financial_records\s+SET settlement_id = \$1, updated_at = \$2\s+WHERE id = ANY\(\$3\) AND settlement_id IS NULL`

	mock.ExpectExec(query).WithArgs("SET-20260301-ABC123", pgxmock.AnyArg(), ids).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	affected, err := repo.AssignSettlement(ctx, ids, "SET-20260301-ABC123")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	dbErr := errors.New("deadlock detected")
	mock.ExpectExec(query).WithArgs("SET-20260301-ABC124", pgxmock.AnyArg(), ids).WillReturnError(dbErr)
	_, err = repo.AssignSettlement(ctx, ids, "SET-20260301-ABC124")
	assert.ErrorIs(t, err, dbErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementRepository(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SettlementRepository{querier: mock, logger: newTestLogger()}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	settlement := &financial.Settlement{
		SettlementID:  "SET-20260301-QWERTY",
		StoreSlug:     "store-a",
		Date:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		TotalExpected: decimal.RequireFromString("200"),
		TotalPaid:     decimal.RequireFromString("190"),
		RecordCount:   2,
		CreatedAt:     now,
	}

	t.Run("create", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO settlements`).
			WithArgs(settlement.SettlementID, "store-a", "", settlement.Date, pgxmock.AnyArg(), pgxmock.AnyArg(), 2, now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))

		require.NoError(t, repo.Create(ctx, settlement))
		assert.Equal(t, int64(4), settlement.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "settlement_id", "store_slug", "gateway", "settlement_date", "total_expected", "total_paid", "record_count", "created_at"}).
			AddRow(int64(4), settlement.SettlementID, "store-a", "", settlement.Date, settlement.TotalExpected, settlement.TotalPaid, 2, now)
		mock.ExpectQuery(`FROM settlements\s+WHERE settlement_id = \$1`).WithArgs(settlement.SettlementID).WillReturnRows(rows)

		got, err := repo.GetBySettlementID(ctx, settlement.SettlementID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.RecordCount)
		assert.True(t, settlement.TotalPaid.Equal(got.TotalPaid))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`FROM settlements\s+WHERE settlement_id = \$1`).WithArgs("SET-NONE").WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetBySettlementID(ctx, "SET-NONE")
		assert.Nil(t, got)
		var notFound financial.ErrSettlementNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
