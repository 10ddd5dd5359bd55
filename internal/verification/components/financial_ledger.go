package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/platform/fxrate"
	"github.com/vendweave-gateway/internal/verification/service"
)

var _ service.FinancialLedger = (*FinancialLedgerImpl)(nil)

const unknownGateway = "unknown"

type FinancialLedgerImpl struct {
	repo            financial.Repository
	rates           fxrate.Provider
	baseCurrency    string
	defaultCurrency string
	enabled         bool
	logger          *slog.Logger
}

// NewFinancialLedger returns a ledger that is disabled when enabled is false or repo is nil.
// rates may be nil, in which case only same-currency payments are normalized.
func NewFinancialLedger(
	repo financial.Repository,
	rates fxrate.Provider,
	cfg config.FinancialConfig,
	enabled bool,
	logger *slog.Logger,
) *FinancialLedgerImpl {
	return &FinancialLedgerImpl{
		repo:            repo,
		rates:           rates,
		baseCurrency:    strings.ToUpper(cfg.BaseCurrency),
		defaultCurrency: strings.ToUpper(cfg.DefaultCurrency),
		enabled:         enabled && repo != nil,
		logger:          logger,
	}
}

func (l *FinancialLedgerImpl) Enabled() bool {
	return l.enabled
}

// Record upserts the financial record for the payment's reference
func (l *FinancialLedgerImpl) Record(ctx context.Context, payment financial.Payment) (*financial.Record, error) {
	if !l.enabled {
		return nil, financial.ErrFinancialDisabled
	}

	ref := strings.TrimSpace(payment.Reference)
	if ref == "" {
		return nil, financial.ErrEmptyReference
	}
	if payment.AmountExpected.IsNegative() {
		return nil, financial.ErrNegativeExpected
	}

	currency := strings.ToUpper(strings.TrimSpace(payment.Context.Currency))
	if currency == "" {
		currency = l.defaultCurrency
	}

	record := &financial.Record{
		Reference:      ref,
		OrderID:        payment.OrderID,
		StoreSlug:      payment.StoreSlug,
		AmountExpected: payment.AmountExpected.Round(financial.MoneyScale),
		AmountPaid:     payment.AmountPaid.Round(financial.MoneyScale),
		Currency:       currency,
		BaseCurrency:   l.baseCurrency,
		Status:         financial.DetermineStatus(payment.AmountExpected, payment.AmountPaid, payment.Context),
		Gateway:        shared.NormalizePaymentMethod(payment.Gateway),
	}
	if payment.TrxID != "" {
		trxID := payment.TrxID
		record.TrxID = &trxID
	}
	if record.Status == financial.StatusConfirmed {
		now := time.Now().UTC()
		record.ConfirmedAt = &now
	}

	if rate, ok := l.rate(ctx, currency); ok {
		record.ExchangeRate = decimal.NewNullDecimal(rate)
		record.NormalizedAmount = decimal.NewNullDecimal(payment.AmountPaid.Mul(rate).Round(financial.NormalizedScale))
	} else {
		l.logger.Warn("No exchange rate available, keeping raw amount",
			"reference", ref,
			"currency", currency,
			"base_currency", l.baseCurrency,
		)
	}

	saved, err := l.repo.UpsertByReference(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment for reference %s: %w", ref, err)
	}

	l.logger.Info("Financial record saved",
		"reference", saved.Reference,
		"order_id", saved.OrderID,
		"financial_status", saved.Status,
		"amount_expected", saved.AmountExpected.StringFixed(financial.MoneyScale),
		"amount_paid", saved.AmountPaid.StringFixed(financial.MoneyScale),
	)
	return saved, nil
}

func (l *FinancialLedgerImpl) rate(ctx context.Context, currency string) (decimal.Decimal, bool) {
	if currency == l.baseCurrency {
		return decimal.NewFromInt(1), true
	}
	if l.rates == nil {
		return decimal.Zero, false
	}
	return l.rates.Rate(ctx, currency, l.baseCurrency)
}

// MarkRefunded moves any non-cancelled record to REFUNDED
func (l *FinancialLedgerImpl) MarkRefunded(ctx context.Context, reference string) (*financial.Record, error) {
	return l.transition(ctx, reference, financial.StatusRefunded, func(r *financial.Record) bool {
		return r.Status != financial.StatusCancelled
	})
}

// Cancel voids a record that has not been refunded or settled
func (l *FinancialLedgerImpl) Cancel(ctx context.Context, reference string) (*financial.Record, error) {
	return l.transition(ctx, reference, financial.StatusCancelled, func(r *financial.Record) bool {
		return r.Status != financial.StatusRefunded && r.SettlementID == nil
	})
}

func (l *FinancialLedgerImpl) transition(ctx context.Context, reference string, to financial.Status, allowed func(*financial.Record) bool) (*financial.Record, error) {
	if !l.enabled {
		return nil, financial.ErrFinancialDisabled
	}

	current, err := l.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if current.Status == to {
		return current, nil
	}
	if !allowed(current) {
		return current, fmt.Errorf("%w: %s to %s", financial.ErrInvalidTransition, current.Status, to)
	}

	updated, err := l.repo.UpdateStatus(ctx, reference, to)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Financial record status changed", "reference", reference, "from", current.Status, "to", to)
	return updated, nil
}

func (l *FinancialLedgerImpl) Stats(ctx context.Context) (map[financial.Status]int64, error) {
	if !l.enabled {
		return nil, financial.ErrFinancialDisabled
	}
	return l.repo.AggregateByStatus(ctx)
}

// ReconcileOrder totals every gateway's payments for the order, preferring normalized amounts
func (l *FinancialLedgerImpl) ReconcileOrder(ctx context.Context, orderID string) (*financial.Reconciliation, error) {
	if !l.enabled {
		return nil, financial.ErrFinancialDisabled
	}

	records, err := l.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, financial.ErrNoOrderRecords
	}

	result := &financial.Reconciliation{
		OrderID:      orderID,
		BaseCurrency: records[0].BaseCurrency,
		Gateways:     make(map[string]decimal.Decimal),
		TotalPaid:    decimal.Zero,
		RecordCount:  len(records),
	}
	if result.BaseCurrency == "" {
		result.BaseCurrency = l.baseCurrency
	}

	for _, record := range records {
		gateway := record.Gateway
		if gateway == "" {
			gateway = unknownGateway
		}
		paid := record.EffectivePaid()
		result.Gateways[gateway] = result.Gateways[gateway].Add(paid)
		result.TotalPaid = result.TotalPaid.Add(paid)
	}

	return result, nil
}
