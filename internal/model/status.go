package model

// LedgerStatus is the lifecycle state of one webhook-processing attempt.
type LedgerStatus string

const (
	LedgerQueued     LedgerStatus = "Queued"
	LedgerSuccess    LedgerStatus = "Success"
	LedgerError      LedgerStatus = "Error"
	LedgerInvalid    LedgerStatus = "Invalid"
	LedgerIncomplete LedgerStatus = "IncompleteOrder"
	LedgerSkipped    LedgerStatus = "Skipped"
)

// CanTransitionTo reports whether the ledger may move from s to next.
// Queued leaves through exactly one forward edge; IncompleteOrder may be
// re-entered when more upstream data arrives. Everything else is final.
func (s LedgerStatus) CanTransitionTo(next LedgerStatus) bool {
	switch s {
	case LedgerQueued:
		return next != LedgerQueued
	case LedgerIncomplete:
		return next == LedgerSuccess || next == LedgerError || next == LedgerIncomplete
	default:
		return false
	}
}

func (s LedgerStatus) IsFinal() bool {
	return s != LedgerQueued && s != LedgerIncomplete
}

// DocStatus is the lifecycle of invoices, delivery notes and payments.
type DocStatus string

const (
	DocDraft     DocStatus = "Draft"
	DocSubmitted DocStatus = "Submitted"
	DocCancelled DocStatus = "Cancelled"
)

// EventType is the webhook topic; ledger entries store it instead of a handler path.
type EventType string

const (
	EventOrderCreated   EventType = "orders/create"
	EventOrderUpdated   EventType = "orders/updated"
	EventOrderPaid      EventType = "orders/paid"
	EventOrderCancelled EventType = "orders/cancelled"
	EventOrderFulfilled EventType = "orders/fulfilled"
)

// APIType selects a rate limit profile for outbound storefront calls.
type APIType string

const (
	APIRest    APIType = "rest"
	APIGraphQL APIType = "graphql"
)
