package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vendweave-gateway/internal/config"
	"github.com/vendweave-gateway/internal/domain/financial"
	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
	"github.com/vendweave-gateway/internal/platform/provider"
)

// Provider reference statuses that settle the reference check on their own
var remoteReferenceFailures = map[string]struct {
	code    string
	message string
}{
	"expired":    {verification.CodeReferenceExpired, "Reference has expired"},
	"replayed":   {verification.CodeReferenceReplay, "Reference was already used for another payment"},
	"used":       {verification.CodeReferenceReplay, "Reference was already used for another payment"},
	"mismatched": {verification.CodeReferenceMismatch, "Reference does not match the payment"},
	"cancelled":  {verification.CodeReferenceCancelled, "Reference was cancelled"},
}

type TransactionVerifier struct {
	client          provider.Client
	normalizer      ResponseNormalizer
	references      ReferenceLedger
	financials      FinancialLedger
	strictReference bool
	logger          *slog.Logger
}

// NewTransactionVerifier wires the verification chain. references and financials may be nil.
func NewTransactionVerifier(
	client provider.Client,
	normalizer ResponseNormalizer,
	references ReferenceLedger,
	financials FinancialLedger,
	cfg config.VerificationConfig,
	logger *slog.Logger,
) *TransactionVerifier {
	return &TransactionVerifier{
		client:          client,
		normalizer:      normalizer,
		references:      references,
		financials:      financials,
		strictReference: cfg.StrictReference,
		logger:          logger,
	}
}

// Verify polls the provider and, for confirmed transactions, runs the store, reference, amount,
// method, governance and financial checks in that order. The first failing check decides the result.
func (v *TransactionVerifier) Verify(ctx context.Context, attempt shared.VerificationAttempt) verification.Result {
	logger := v.logger.With("order_id", attempt.OrderID)
	if attempt.CorrelationID != "" {
		logger = logger.With("correlation_id", attempt.CorrelationID)
	}

	expectedMethod := shared.NormalizePaymentMethod(attempt.PaymentMethod)
	req := provider.Request{
		OrderID:       attempt.OrderID,
		Amount:        attempt.ExpectedAmount,
		PaymentMethod: expectedMethod,
		TrxID:         attempt.TrxID,
		Reference:     attempt.Reference,
	}

	resp, err := v.client.Poll(ctx, req)
	if err != nil {
		return v.providerFailure(logger, "poll", err)
	}
	if resp.HTTPStatus == http.StatusNotFound {
		return verification.Failed(verification.CodeTransactionNotFound, "No matching transaction found")
	}

	fields := v.normalizer.Normalize(resp.Body, expectedMethod, v.client.StoreSlug())

	// A pending poll with a known transaction id is settled by the authoritative verify call
	if fields.Status() == verification.StatusPending {
		trxID := attempt.TrxID
		if trxID == "" {
			trxID = fields.String(verification.FieldTrxID)
		}
		if trxID != "" {
			req.TrxID = trxID
			logger.Debug("Poll pending, escalating to verify", "trx_id", trxID)

			resp, err = v.client.Verify(ctx, req)
			if err != nil {
				return v.providerFailure(logger, "verify", err)
			}
			if resp.HTTPStatus == http.StatusNotFound {
				return verification.Failed(verification.CodeTransactionNotFound, "No matching transaction found")
			}
			fields = v.normalizer.Normalize(resp.Body, expectedMethod, v.client.StoreSlug())
		}
	}

	trxID := fields.String(verification.FieldTrxID)
	if trxID == "" {
		trxID = attempt.TrxID
	}

	switch fields.Status() {
	case verification.StatusUsed:
		return verification.AlreadyUsed(orUnknown(trxID))
	case verification.StatusExpired:
		return verification.Expired(orUnknown(trxID))
	case verification.StatusFailed:
		message := fields.String(verification.FieldMessage)
		if message == "" {
			message = "Transaction failed"
		}
		return verification.Failed(verification.CodeTransactionFailed, message)
	case verification.StatusConfirmed:
		return v.validateConfirmed(ctx, logger, attempt, expectedMethod, trxID, fields)
	default:
		return verification.Pending("Transaction is pending verification")
	}
}

func (v *TransactionVerifier) validateConfirmed(
	ctx context.Context,
	logger *slog.Logger,
	attempt shared.VerificationAttempt,
	expectedMethod string,
	trxID string,
	fields verification.Fields,
) verification.Result {
	logger = logger.With("trx_id", trxID)

	// Store scope
	expectedStore := v.client.StoreSlug()
	receivedStore := fields.String(verification.FieldStoreSlug)
	if expectedStore != "" && receivedStore != "" && receivedStore != expectedStore {
		logger.Info("Store mismatch", "expected_store_slug", expectedStore, "received_store_slug", receivedStore)
		return verification.Failed(verification.CodeStoreMismatch,
			fmt.Sprintf("Transaction belongs to store %s, expected %s", receivedStore, expectedStore))
	}
	if receivedStore == "" {
		logger.Warn("Provider response missing store slug, store check skipped", "expected_store_slug", expectedStore)
		receivedStore = expectedStore
	}

	// Reference identity
	expectedRef := strings.TrimSpace(attempt.Reference)
	receivedRef := fields.String(verification.FieldReference)
	if failure, ok := v.checkReference(logger, expectedRef, receivedRef, fields); !ok {
		return failure
	}

	// Amount, exact to the cent
	receivedAmount, _ := fields.Decimal(verification.FieldAmount)
	expectedAmount := attempt.ExpectedAmount.Round(financial.MoneyScale)
	if !receivedAmount.Round(financial.MoneyScale).Equal(expectedAmount) {
		logger.Info("Amount mismatch", "expected_amount", expectedAmount.String(), "received_amount", receivedAmount.String())
		return verification.Failed(verification.CodeAmountMismatch,
			fmt.Sprintf("Amount mismatch: expected %s, received %s",
				expectedAmount.StringFixed(financial.MoneyScale), receivedAmount.StringFixed(financial.MoneyScale)))
	}

	// Payment method
	receivedMethod := shared.NormalizePaymentMethod(fields.String(verification.FieldPaymentMethod))
	if receivedMethod == "" {
		logger.Warn("Provider response missing payment method, accepting on amount and reference", "expected_method", expectedMethod)
		receivedMethod = expectedMethod
	} else if receivedMethod != expectedMethod {
		logger.Info("Payment method mismatch", "expected_method", expectedMethod, "received_method", receivedMethod)
		return verification.Failed(verification.CodeMethodMismatch,
			fmt.Sprintf("Payment method mismatch: expected %s, received %s", expectedMethod, receivedMethod))
	}

	// Reference governance
	code := firstNonEmpty(receivedRef, expectedRef, trxID)
	meta := remoteReferenceMeta(fields)
	if v.references != nil && v.references.Enabled() && code != "" {
		matched, failure, ok := v.governReference(ctx, logger, code, attempt.OrderID, expectedStore)
		if !ok {
			return failure
		}
		if matched != nil {
			meta = verification.ReferenceMeta{
				Status:    matched.Status.Lower(),
				CreatedAt: matched.CreatedAt.UTC().Format(time.RFC3339),
				ExpiresAt: matched.ExpiresAt.UTC().Format(time.RFC3339),
			}
		}
	}

	// Financial record
	if v.financials != nil && v.financials.Enabled() && code != "" {
		_, err := v.financials.Record(ctx, financial.Payment{
			Reference:      code,
			OrderID:        attempt.OrderID,
			StoreSlug:      receivedStore,
			AmountExpected: attempt.ExpectedAmount,
			AmountPaid:     receivedAmount,
			Gateway:        receivedMethod,
			TrxID:          trxID,
			Context: financial.Context{
				Currency: fields.String(verification.FieldCurrency),
				Status:   fields.String(verification.FieldRawStatus),
			},
		})
		if err != nil {
			logger.Warn("Financial record not saved, continuing without it", "reference", code, "error", err)
		}
	}

	logger.Info("Payment verified", "amount", receivedAmount.StringFixed(financial.MoneyScale), "payment_method", receivedMethod)
	return verification.Confirmed(trxID, receivedAmount, receivedMethod, receivedStore, meta)
}

// checkReference lets an authoritative provider reference_status decide; otherwise local policy applies
func (v *TransactionVerifier) checkReference(logger *slog.Logger, expectedRef, receivedRef string, fields verification.Fields) (verification.Result, bool) {
	if remote := strings.ToLower(fields.String(verification.FieldReferenceStatus)); remote != "" {
		if failure, known := remoteReferenceFailures[remote]; known {
			logger.Info("Provider rejected reference", "reference", receivedRef, "reference_status", remote)
			return verification.Failed(failure.code, failure.message), false
		}
		if remote == "matched" {
			return verification.Result{}, true
		}
	}

	if expectedRef != "" && receivedRef != "" {
		if !strings.EqualFold(expectedRef, receivedRef) {
			logger.Info("Reference mismatch", "expected_reference", expectedRef, "received_reference", receivedRef)
			return verification.Failed(verification.CodeReferenceMismatch,
				fmt.Sprintf("Reference mismatch: expected %s, received %s", expectedRef, receivedRef)), false
		}
		return verification.Result{}, true
	}

	if v.strictReference {
		logger.Info("Reference missing in strict mode", "expected_reference", expectedRef, "received_reference", receivedRef)
		return verification.Failed(verification.CodeReferenceMismatch,
			fmt.Sprintf("Reference required: expected %s, received %s", orNone(expectedRef), orNone(receivedRef))), false
	}

	return verification.Result{}, true
}

// governReference validates the reservation and moves it to MATCHED. Storage faults and
// unreserved codes do not block verification; lifecycle violations do.
func (v *TransactionVerifier) governReference(ctx context.Context, logger *slog.Logger, code, orderID, storeID string) (*reference.Reference, verification.Result, bool) {
	_, err := v.references.Validate(ctx, code, orderID, storeID)
	switch {
	case errors.Is(err, reference.ErrReferenceNotFound{}):
		logger.Debug("Reference not reserved, governance skipped", "reference", code)
		return nil, verification.Result{}, true
	case errors.Is(err, reference.ErrReferenceReplayed):
		return nil, verification.Failed(verification.CodeReferenceReplay,
			fmt.Sprintf("Reference %s is reserved for another order", code)), false
	case err != nil:
		logger.Warn("Reference governance unavailable, continuing without it", "reference", code, "error", err)
		return nil, verification.Result{}, true
	}

	matched, err := v.references.Match(ctx, code, storeID, time.Now().UTC())
	switch {
	case err == nil:
		return matched, verification.Result{}, true
	case errors.Is(err, reference.ErrReferenceReplayed):
		return nil, verification.Failed(verification.CodeReferenceReplay,
			fmt.Sprintf("Reference %s was already used for another payment", code)), false
	case errors.Is(err, reference.ErrReferenceExpired):
		return nil, verification.Failed(verification.CodeReferenceExpired,
			fmt.Sprintf("Reference %s has expired", code)), false
	case errors.Is(err, reference.ErrReferenceCancelled):
		return nil, verification.Failed(verification.CodeReferenceCancelled,
			fmt.Sprintf("Reference %s was cancelled", code)), false
	case errors.Is(err, reference.ErrStoreMismatch):
		return nil, verification.Failed(verification.CodeStoreMismatch,
			fmt.Sprintf("Reference %s belongs to another store", code)), false
	default:
		logger.Warn("Reference match failed, continuing without governance", "reference", code, "error", err)
		return nil, verification.Result{}, true
	}
}

func (v *TransactionVerifier) providerFailure(logger *slog.Logger, call string, err error) verification.Result {
	if errors.Is(err, provider.ErrInvalidCredentials) {
		logger.Error("Provider rejected credentials", "call", call, "error", err)
		return verification.Failed(verification.CodeInvalidCredentials, "Provider rejected the API credentials")
	}
	logger.Error("Provider call failed", "call", call, "error", err)
	return verification.Failed(verification.CodeAPIError, err.Error())
}

func remoteReferenceMeta(fields verification.Fields) verification.ReferenceMeta {
	return verification.ReferenceMeta{
		Status:    strings.ToLower(fields.String(verification.FieldReferenceStatus)),
		CreatedAt: fields.String(verification.FieldReferenceCreatedAt),
		ExpiresAt: fields.String(verification.FieldReferenceExpiresAt),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orUnknown(trxID string) string {
	if trxID == "" {
		return "unknown"
	}
	return trxID
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
