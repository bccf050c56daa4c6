package loan

import (
	"time"

	"github.com/feyza/backend/internal/domain/trust"
)

const (
	// EarlyThreshold is how far ahead of the due date a payment counts as early.
	EarlyThreshold = 24 * time.Hour
	// LateGrace is how long after the due date a payment still counts as on time.
	LateGrace = 24 * time.Hour
)

// ClassifyPayment buckets a completed payment against its due date. A payment
// without a due date is on time.
func ClassifyPayment(paidAt time.Time, dueDate *time.Time) trust.PaymentKind {
	if dueDate == nil || dueDate.IsZero() {
		return trust.PaymentOnTime
	}
	switch {
	case !paidAt.After(dueDate.Add(-EarlyThreshold)):
		return trust.PaymentEarly
	case paidAt.After(dueDate.Add(LateGrace)):
		return trust.PaymentLate
	default:
		return trust.PaymentOnTime
	}
}
