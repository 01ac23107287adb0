package payment

import "fmt"

// ValidationError rejects malformed input before any payment is
// looked at. No payment is consumed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// PaymentError rejects a submission for payment reasons: missing,
// invalid, replayed, or unsettleable proof. When no proof was attached
// Challenge describes how to pay.
type PaymentError struct {
	Reason    string
	Replayed  bool
	Challenge *Challenge
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment required: %s", e.Reason)
}

// CapacityError rejects a submission because the service is unhealthy.
type CapacityError struct {
	Status     string
	QueuedJobs int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("service overloaded (status: %s, queued jobs: %d)", e.Status, e.QueuedJobs)
}
