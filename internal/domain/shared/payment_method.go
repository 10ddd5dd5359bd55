package shared

import "strings"

// NormalizePaymentMethod lower-cases and trims a payment method name
func NormalizePaymentMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}

// IsSupportedPaymentMethod reports whether method, once normalized, is listed in supported
func IsSupportedPaymentMethod(method string, supported []string) bool {
	method = NormalizePaymentMethod(method)
	for _, s := range supported {
		if NormalizePaymentMethod(s) == method {
			return true
		}
	}
	return false
}
