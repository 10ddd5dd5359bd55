package components

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/vendweave-gateway/internal/domain/verification"
	"github.com/vendweave-gateway/internal/verification/service"
)

// FieldAliases lists, per canonical field, the provider field names to adopt in order
type FieldAliases map[string][]string

// DefaultFieldAliases covers the field names seen across provider integrations
var DefaultFieldAliases = FieldAliases{
	verification.FieldOrderID:   {"wc_order_id", "order_id", "order_no", "invoice_id"},
	verification.FieldAmount:    {"expected_amount", "amount", "total", "grand_total"},
	verification.FieldStoreSlug: {"store_slug", "store_id", "shop_slug"},
	verification.FieldReference: {"payment_reference", "reference", "ref"},
	verification.FieldTrxID:     {"trx_id", "transaction_id", "payment_id"},
	verification.FieldStatus:    {"status", "transaction_status", "payment_status", "txn_status", "state"},
}

var canonicalFields = []string{
	verification.FieldOrderID,
	verification.FieldAmount,
	verification.FieldStoreSlug,
	verification.FieldReference,
	verification.FieldTrxID,
	verification.FieldStatus,
}

var statusSynonyms = map[string]verification.Status{
	"confirmed":    verification.StatusConfirmed,
	"success":      verification.StatusConfirmed,
	"paid":         verification.StatusConfirmed,
	"completed":    verification.StatusConfirmed,
	"approved":     verification.StatusConfirmed,
	"verified":     verification.StatusConfirmed,
	"matched":      verification.StatusConfirmed,
	"pending":      verification.StatusPending,
	"processing":   verification.StatusPending,
	"waiting":      verification.StatusPending,
	"initiated":    verification.StatusPending,
	"in_progress":  verification.StatusPending,
	"inprogress":   verification.StatusPending,
	"expired":      verification.StatusExpired,
	"timeout":      verification.StatusExpired,
	"timed_out":    verification.StatusExpired,
	"used":         verification.StatusUsed,
	"replayed":     verification.StatusUsed,
	"duplicate":    verification.StatusUsed,
	"already_used": verification.StatusUsed,
	"failed":       verification.StatusFailed,
	"error":        verification.StatusFailed,
	"rejected":     verification.StatusFailed,
	"declined":     verification.StatusFailed,
	"cancelled":    verification.StatusFailed,
	"canceled":     verification.StatusFailed,
}

var statusSeparators = strings.NewReplacer("-", "_", " ", "_")

type ResponseNormalizerImpl struct {
	aliases FieldAliases
	logger  *slog.Logger
}

func NewResponseNormalizer(aliases FieldAliases, logger *slog.Logger) service.ResponseNormalizer {
	if aliases == nil {
		aliases = DefaultFieldAliases
	}
	return &ResponseNormalizerImpl{
		aliases: aliases,
		logger:  logger,
	}
}

// Normalize never fails. The result always carries status, raw_status and store_slug.
func (n *ResponseNormalizerImpl) Normalize(raw interface{}, expectedMethod, storeSlug string) verification.Fields {
	payload := unwrapPayload(raw)

	fields := make(verification.Fields, len(payload)+4)
	for key, value := range payload {
		fields[key] = value
	}

	for _, canonical := range canonicalFields {
		if fields.Has(canonical) {
			continue
		}
		for _, alias := range n.aliases[canonical] {
			if v, ok := payload[alias]; ok && verification.ValueString(v) != "" {
				fields[canonical] = v
				break
			}
		}
	}

	rawStatus := fields.String(verification.FieldStatus)
	if !fields.Has(verification.FieldRawStatus) {
		fields[verification.FieldRawStatus] = rawStatus
	}
	fields[verification.FieldStatus] = string(CanonicalStatus(rawStatus))

	if !fields.Has(verification.FieldStoreSlug) {
		n.logger.Warn("Provider response has no store slug, assuming the configured store", "store_slug", storeSlug)
		fields[verification.FieldStoreSlug] = storeSlug
	}

	if !fields.Has(verification.FieldPaymentMethod) && expectedMethod != "" {
		n.logger.Warn("Provider response has no payment method, assuming the expected one", "payment_method", expectedMethod)
		fields[verification.FieldPaymentMethod] = expectedMethod
	}

	return fields
}

// CanonicalStatus maps a provider status onto the canonical vocabulary. Unknown values are pending.
func CanonicalStatus(raw string) verification.Status {
	key := statusSeparators.Replace(strings.ToLower(strings.TrimSpace(raw)))
	if status, ok := statusSynonyms[key]; ok {
		return status
	}
	return verification.StatusPending
}

// unwrapPayload returns the field map of raw, taking the first element of list-shaped payloads
func unwrapPayload(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case verification.Fields:
		return unwrapMap(v)
	case map[string]interface{}:
		return unwrapMap(v)
	case []interface{}:
		if len(v) == 0 {
			return map[string]interface{}{}
		}
		return unwrapPayload(v[0])
	case []map[string]interface{}:
		if len(v) == 0 {
			return map[string]interface{}{}
		}
		return v[0]
	}
	return map[string]interface{}{}
}

// unwrapMap handles maps keyed "0", "1", ... as lists
func unwrapMap(m map[string]interface{}) map[string]interface{} {
	if len(m) == 0 || !hasSequentialKeys(m) {
		return m
	}
	return unwrapPayload(m["0"])
}

func hasSequentialKeys(m map[string]interface{}) bool {
	indexes := make([]int, 0, len(m))
	for key := range m {
		i, err := strconv.Atoi(key)
		if err != nil {
			return false
		}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for want, got := range indexes {
		if want != got {
			return false
		}
	}
	return true
}
