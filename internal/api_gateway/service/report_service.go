package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/domain/audit"
	"github.com/vendweave-gateway/internal/domain/financial"
	vservice "github.com/vendweave-gateway/internal/verification/service"
)

// ReportServiceImpl implements the ReportService interface
type ReportServiceImpl struct {
	financials vservice.FinancialLedger
	auditRepo  audit.Repository
	resolver   vservice.AmountResolver
}

// NewReportService creates a new report service
func NewReportService(financials vservice.FinancialLedger, auditRepo audit.Repository, resolver vservice.AmountResolver) ReportService {
	return &ReportServiceImpl{
		financials: financials,
		auditRepo:  auditRepo,
		resolver:   resolver,
	}
}

func (s *ReportServiceImpl) FinancialStats(ctx context.Context) (map[financial.Status]int64, error) {
	return s.financials.Stats(ctx)
}

func (s *ReportServiceImpl) Reconcile(ctx context.Context, orderID string) (*financial.Reconciliation, error) {
	return s.financials.ReconcileOrder(ctx, orderID)
}

// OrderEvents retrieves a page of audit entries for an order together with the total count
func (s *ReportServiceImpl) OrderEvents(ctx context.Context, orderID string, limit, offset int) ([]*audit.Entry, int64, error) {
	entries, err := s.auditRepo.GetByOrderID(ctx, orderID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}

	total, err := s.auditRepo.CountByOrderID(ctx, orderID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return entries, total, nil
}

func (s *ReportServiceImpl) ResolveAmount(orderData map[string]interface{}) decimal.Decimal {
	return s.resolver.Resolve(orderData)
}
