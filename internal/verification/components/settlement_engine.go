package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/platform/persistence"
	"github.com/vendweave-gateway/internal/verification/service"
)

var _ service.SettlementEngine = (*SettlementEngineImpl)(nil)

type SettlementEngineImpl struct {
	txExecutor  persistence.TxExecutor
	records     financial.Repository
	settlements financial.SettlementRepository
	enabled     bool
	logger      *slog.Logger
}

func NewSettlementEngine(
	txExecutor persistence.TxExecutor,
	records financial.Repository,
	settlements financial.SettlementRepository,
	enabled bool,
	logger *slog.Logger,
) *SettlementEngineImpl {
	return &SettlementEngineImpl{
		txExecutor:  txExecutor,
		records:     records,
		settlements: settlements,
		enabled:     enabled && txExecutor != nil && records != nil && settlements != nil,
		logger:      logger,
	}
}

// GenerateSettlement assigns every unsettled CONFIRMED, PARTIAL or OVERPAID record matching
// filter to a new settlement, in one transaction. Totals are in the base currency when a rate is stored.
func (e *SettlementEngineImpl) GenerateSettlement(ctx context.Context, filter financial.Filter) (*financial.Settlement, error) {
	if !e.enabled {
		return nil, financial.ErrFinancialDisabled
	}

	date := time.Now().UTC()
	if filter.Date != nil {
		date = filter.Date.UTC()
	}

	settlement := &financial.Settlement{
		SettlementID:  NewSettlementID(date),
		StoreSlug:     filter.StoreSlug,
		Gateway:       filter.Gateway,
		Date:          time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		TotalExpected: decimal.Zero,
		TotalPaid:     decimal.Zero,
	}

	err := e.txExecutor.ExecuteTx(ctx, func(tx pgx.Tx) error {
		records := e.records.WithTx(tx)

		unsettled, err := records.ListUnsettled(ctx, filter)
		if err != nil {
			return err
		}
		if len(unsettled) == 0 {
			return financial.ErrNothingToSettle
		}

		ids := make([]int64, 0, len(unsettled))
		for _, record := range unsettled {
			ids = append(ids, record.ID)
			settlement.TotalExpected = settlement.TotalExpected.Add(record.ExpectedInBase())
			settlement.TotalPaid = settlement.TotalPaid.Add(record.EffectivePaid())
		}
		settlement.TotalExpected = settlement.TotalExpected.Round(financial.MoneyScale)
		settlement.TotalPaid = settlement.TotalPaid.Round(financial.MoneyScale)
		settlement.RecordCount = len(unsettled)

		if err := e.settlements.WithTx(tx).Create(ctx, settlement); err != nil {
			return err
		}

		assigned, err := records.AssignSettlement(ctx, ids, settlement.SettlementID)
		if err != nil {
			return err
		}
		if assigned != int64(len(ids)) {
			return fmt.Errorf("settlement %s assigned %d of %d records", settlement.SettlementID, assigned, len(ids))
		}
		return nil
	})
	if errors.Is(err, financial.ErrNothingToSettle) {
		e.logger.Info("Nothing to settle", "store_slug", filter.StoreSlug, "gateway", filter.Gateway)
		return nil, err
	}
	if err != nil {
		e.logger.Error("Failed to generate settlement",
			"settlement_id", settlement.SettlementID,
			"store_slug", filter.StoreSlug,
			"gateway", filter.Gateway,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("Settlement generated",
		"settlement_id", settlement.SettlementID,
		"record_count", settlement.RecordCount,
		"total_expected", settlement.TotalExpected.StringFixed(financial.MoneyScale),
		"total_paid", settlement.TotalPaid.StringFixed(financial.MoneyScale),
	)
	return settlement, nil
}

// NewSettlementID formats SET-YYYYMMDD-XXXXXX with a random upper-case suffix
func NewSettlementID(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("SET-%s-%s", date.Format("20060102"), suffix)
}
