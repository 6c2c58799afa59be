package billing

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "PENDING"
	PaymentStatusPaid            PaymentStatus = "PAID"
	PaymentStatusFailed          PaymentStatus = "FAILED"
	PaymentStatusCancelled       PaymentStatus = "CANCELLED"
	PaymentStatusExpired         PaymentStatus = "EXPIRED"
	PaymentStatusRefunded        PaymentStatus = "REFUNDED"
	PaymentStatusPartialRefunded PaymentStatus = "PARTIAL_REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusCancelled,
		PaymentStatusExpired,
	},
	PaymentStatusPaid:            {PaymentStatusRefunded, PaymentStatusPartialRefunded},
	PaymentStatusPartialRefunded: {PaymentStatusRefunded, PaymentStatusPartialRefunded},
	PaymentStatusFailed:          nil,
	PaymentStatusCancelled:       nil,
	PaymentStatusExpired:         nil,
	PaymentStatusRefunded:        nil,
}

// IsValid returns true if the status is known
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// IsFinal returns true if no further transition is possible
func (s PaymentStatus) IsFinal() bool {
	next, ok := paymentTransitions[s]
	return ok && len(next) == 0
}

// IsSuccess returns true if money was collected, even if later refunded in part
func (s PaymentStatus) IsSuccess() bool {
	return s == PaymentStatusPaid || s == PaymentStatusPartialRefunded
}

// CanTransitionTo reports whether s may move to next
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// Transition describes what applying a gateway-reported status did
type Transition string

const (
	// TransitionApplied means the payment moved to the reported status
	TransitionApplied Transition = "applied"
	// TransitionNoop means the payment already had the reported status
	TransitionNoop Transition = "noop"
	// TransitionIgnored means the reported status would be a regression
	TransitionIgnored Transition = "ignored"
)
