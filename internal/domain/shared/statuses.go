package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// PaymentEventType names the events emitted for terminal verification outcomes
type PaymentEventType string

const (
	PaymentEventVerified PaymentEventType = "payment.verified"
	PaymentEventFailed   PaymentEventType = "payment.failed"
)
