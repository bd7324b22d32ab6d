package subscription

type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventPurchaseSucceeded
	EventPurchaseFailed
	EventRestoreSucceeded
	EventRestoreFailed
)

func (k EventKind) String() string {
	switch k {
	case EventPurchaseSucceeded:
		return "purchase_succeeded"
	case EventPurchaseFailed:
		return "purchase_failed"
	case EventRestoreSucceeded:
		return "restore_succeeded"
	case EventRestoreFailed:
		return "restore_failed"
	default:
		return "unknown"
	}
}

// TransactionEvent is the outcome notification delivered to subscribers when
// a purchase or restore completes.
type TransactionEvent struct {
	Kind      EventKind
	ProductID string

	// Err is set for failure kinds.
	Err error
}
