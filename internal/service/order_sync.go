package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/classifier"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/metrics"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/retry"
	"shopify-order-sync/internal/routing"
)

var errNotDraft = errors.New("invoice is no longer a draft")

type handlerFunc func(s *orderSyncServiceImpl, ctx context.Context, ev *Event) Outcome

// registry maps each supported event type to its handler.
var registry = map[model.EventType]handlerFunc{
	model.EventOrderCreated:   (*orderSyncServiceImpl).createOrder,
	model.EventOrderUpdated:   (*orderSyncServiceImpl).updateOrder,
	model.EventOrderFulfilled: (*orderSyncServiceImpl).updateOrder,
	model.EventOrderPaid:      (*orderSyncServiceImpl).markPaid,
	model.EventOrderCancelled: (*orderSyncServiceImpl).cancelOrder,
}

// Supported reports whether events of type t have a handler.
func Supported(t model.EventType) bool {
	_, ok := registry[t]
	return ok
}

type OrderSyncService interface {
	// Process runs the handler registered for entry's event type and records
	// the outcome on the entry. Handler failures and panics become ledger
	// statuses; the returned error only reports a failed ledger write.
	Process(ctx context.Context, entry *model.LedgerEntry) (Outcome, error)
	SyncOrder(ctx context.Context, ev *Event) Outcome
	UpdateOrder(ctx context.Context, ev *Event) Outcome
}

type orderSyncServiceImpl struct {
	*Deps
	builder   *invoiceBuilder
	customers *customerSyncer
	invoices  InvoiceService
	cancel    CancellationService
}

func NewOrderSyncService(deps *Deps, invoices InvoiceService, cancel CancellationService) OrderSyncService {
	return &orderSyncServiceImpl{
		Deps:    deps,
		builder: &invoiceBuilder{items: deps.Repos.Items},
		customers: &customerSyncer{
			customers:  deps.Repos.Customers,
			locks:      deps.Repos.Locks,
			lockPolicy: deps.LockPolicy,
		},
		invoices: invoices,
		cancel:   cancel,
	}
}

func (s *orderSyncServiceImpl) Process(ctx context.Context, entry *model.LedgerEntry) (Outcome, error) {
	requestID := entry.RequestID
	if requestID == "" {
		requestID = entry.ID
	}
	ctx = logger.WithRequestID(ctx, requestID)
	log := logger.Ctx(ctx).With().
		Str("entry", entry.ID).
		Str("event", string(entry.EventType)).
		Str("store", entry.StoreID).
		Str("order", entry.ShopifyOrderID).
		Logger()

	start := time.Now()
	outcome := s.dispatch(ctx, entry)
	metrics.SyncDuration.WithLabelValues(string(entry.EventType)).Observe(time.Since(start).Seconds())

	status, message := settle(entry.Status, outcome)
	metrics.SyncOutcomesTotal.WithLabelValues(string(entry.EventType), string(status)).Inc()

	if err := s.Ledger.Transition(ctx, entry, status, message); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("record ledger status")
		return outcome, err
	}

	ev := log.Info()
	if outcome.Err != nil {
		ev = log.Error().Err(outcome.Err)
	}
	ev.Str("status", string(status)).Str("invoice", outcome.Invoice).Msg(message)
	return outcome, nil
}

// settle maps an outcome onto a ledger status reachable from current. An
// entry re-entered from IncompleteOrder can only finish as Success, Error or
// IncompleteOrder; Invalid and Skipped there mean nothing is left to do.
func settle(current model.LedgerStatus, o Outcome) (model.LedgerStatus, string) {
	status, message := o.LedgerStatus(), o.LedgerMessage()
	if current.CanTransitionTo(status) {
		return status, message
	}
	if current == model.LedgerIncomplete {
		return model.LedgerSuccess, fmt.Sprintf("%s: %s", o.Kind, message)
	}
	return status, message
}

func (s *orderSyncServiceImpl) dispatch(ctx context.Context, entry *model.LedgerEntry) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failure(fmt.Errorf("handler panicked: %v", r))
		}
	}()

	handle, ok := registry[entry.EventType]
	if !ok {
		return Failure(fmt.Errorf("no handler registered for event %q", entry.EventType))
	}

	store, err := s.Repos.Stores.FindByID(ctx, entry.StoreID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return Failure(apperror.Wrap(apperror.CodeConfiguration, err, "unknown store %s", entry.StoreID))
		}
		return Failure(fmt.Errorf("load store: %w", err))
	}

	order, err := model.ParseOrder(entry.Payload)
	if err != nil {
		return Failure(fmt.Errorf("decode order payload: %w", err))
	}
	if order.ID == 0 {
		return Failure(errors.New("order payload has no id"))
	}

	return handle(s, ctx, &Event{Entry: entry, Store: store, Order: order})
}

func (s *orderSyncServiceImpl) SyncOrder(ctx context.Context, ev *Event) Outcome {
	return s.createOrder(ctx, ev)
}

func (s *orderSyncServiceImpl) UpdateOrder(ctx context.Context, ev *Event) Outcome {
	return s.updateOrder(ctx, ev)
}

func (s *orderSyncServiceImpl) markPaid(ctx context.Context, ev *Event) Outcome {
	return s.invoices.MarkPaid(ctx, ev)
}

func (s *orderSyncServiceImpl) cancelOrder(ctx context.Context, ev *Event) Outcome {
	return s.cancel.Cancel(ctx, ev)
}

func (s *orderSyncServiceImpl) createOrder(ctx context.Context, ev *Event) Outcome {
	store, order := ev.Store, ev.Order
	orderID := order.OrderID()

	if beforeCutoff(store, order) {
		return Skipped("order %s created %s, before the store cutoff %s",
			order.Name, order.CreatedAt.Format(time.DateTime), store.OrderCutoffDate.Format(time.DateTime))
	}

	existing, err := s.Repos.Invoices.FindActiveByOrder(ctx, store.ID, orderID)
	if err == nil {
		return Invalid("invoice %s already exists for order %s", existing.Name, order.Name).WithInvoice(existing.Name)
	}
	if !apperror.IsNotFound(err) {
		return Failure(fmt.Errorf("check existing invoice: %w", err))
	}

	if order.CancelledAt != nil {
		return Skipped("order %s was cancelled at %s before an invoice existed", order.Name, order.CancelledAt.UTC().Format(time.DateTime))
	}

	if reason := classifier.Reason(order); reason != "" {
		return Incomplete(reason)
	}

	customer, err := s.customers.sync(ctx, store, order)
	if err != nil {
		return Failure(fmt.Errorf("sync customer: %w", err))
	}

	lines, unmatched, err := s.builder.resolveLines(ctx, store, order)
	if err != nil {
		return Failure(err)
	}

	decision, err := routing.Resolve(order, store)
	if err != nil {
		return Failure(err)
	}

	body, err := s.builder.assemble(store, order, lines, decision)
	if err != nil {
		return Failure(err)
	}
	body.Unmatched = unmatched

	inv := newInvoice(store, order, customer, decision, body, s.now())
	if err := s.Repos.Invoices.Create(ctx, inv); err != nil {
		if apperror.IsDuplicate(err) {
			return Invalid("invoice for order %s was created by a concurrent delivery", order.Name)
		}
		return Failure(fmt.Errorf("create invoice: %w", err))
	}

	msg := fmt.Sprintf("created invoice %s", inv.Name)
	if len(unmatched) > 0 {
		msg += "; unmatched items: " + strings.Join(unmatched, ", ")
	}

	if isPaid(order.FinancialStatus) && store.SubmitOnPaid {
		if _, err := s.invoices.Submit(ctx, store, inv); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("invoice", inv.Name).Msg("submit paid invoice")
			msg += "; submit failed: " + err.Error()
		} else {
			msg += "; submitted"
		}
	}
	return Success("%s", msg).WithInvoice(inv.Name)
}

func (s *orderSyncServiceImpl) updateOrder(ctx context.Context, ev *Event) Outcome {
	store, order := ev.Store, ev.Order

	if beforeCutoff(store, order) {
		return Skipped("order %s created before the store cutoff", order.Name)
	}

	inv, err := s.Repos.Invoices.FindActiveByOrder(ctx, store.ID, order.OrderID())
	if apperror.IsNotFound(err) {
		out := s.createOrder(ctx, ev)
		s.resolveIncomplete(ctx, ev, out)
		return out
	}
	if err != nil {
		return Failure(fmt.Errorf("find invoice: %w", err))
	}

	return s.updateInvoice(ctx, ev, inv)
}

func (s *orderSyncServiceImpl) updateInvoice(ctx context.Context, ev *Event, inv *model.Invoice) Outcome {
	store, order := ev.Store, ev.Order
	log := logger.Ctx(ctx).With().Str("invoice", inv.Name).Logger()

	decision, err := routing.Resolve(order, store)
	if err != nil {
		return Failure(err).WithInvoice(inv.Name)
	}
	lines, _, err := s.builder.resolveLines(ctx, store, order)
	if err != nil {
		return Failure(err).WithInvoice(inv.Name)
	}
	body, err := s.builder.assemble(store, order, lines, decision)
	if err != nil {
		return Failure(err).WithInvoice(inv.Name)
	}

	changes := diffInvoice(inv, order, body)
	if len(changes) == 0 {
		return Success("no changes to invoice %s", inv.Name).WithInvoice(inv.Name)
	}
	summary := strings.Join(changes, "; ")

	if inv.Status != model.DocDraft {
		log.Info().Strs("changes", changes).Msg("order changed after submit, invoice left as is")
		return Success("invoice %s is %s and was not updated; changes: %s", inv.Name, inv.Status, summary).WithInvoice(inv.Name)
	}

	_, err = retry.Do(ctx, s.Retry,
		func(ctx context.Context) (*model.Invoice, error) {
			return s.Repos.Invoices.FindByID(ctx, inv.ID)
		},
		func(rec *model.Invoice) error {
			if rec.Status != model.DocDraft {
				return errNotDraft
			}
			applyBody(rec, order, decision, body, s.now())
			return nil
		},
		s.Repos.Invoices.ReplaceLines,
	)
	switch {
	case errors.Is(err, errNotDraft):
		return Success("invoice %s was submitted concurrently and was not updated; changes: %s", inv.Name, summary).WithInvoice(inv.Name)
	case apperror.IsRetriesExhausted(err):
		log.Warn().Err(err).Msg("draft update abandoned")
		return Success("update abandoned for invoice %s after %d retries; changes: %s", inv.Name, s.Retry.MaxRetries, summary).WithInvoice(inv.Name)
	case err != nil:
		return Failure(fmt.Errorf("update invoice %s: %w", inv.Name, err)).WithInvoice(inv.Name)
	}

	return Success("updated draft invoice %s: %s", inv.Name, summary).WithInvoice(inv.Name)
}

// resolveIncomplete moves earlier IncompleteOrder entries for the same order
// to the status the current event reached.
func (s *orderSyncServiceImpl) resolveIncomplete(ctx context.Context, ev *Event, out Outcome) {
	var status model.LedgerStatus
	switch out.Kind {
	case OutcomeSuccess, OutcomeInvalid:
		status = model.LedgerSuccess
	case OutcomeFailure, OutcomeConfigError:
		status = model.LedgerError
	case OutcomeIncomplete:
		status = model.LedgerIncomplete
	default:
		return
	}

	entries, err := s.Ledger.FindIncomplete(ctx, ev.Store.ID, ev.Order.OrderID())
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("list incomplete ledger entries")
		return
	}

	by := ev.entryID()
	for _, entry := range entries {
		if entry.ID == by {
			continue
		}
		msg := fmt.Sprintf("resolved by %s", by)
		if status == model.LedgerIncomplete {
			msg = fmt.Sprintf("still incomplete (%s), rechecked by %s", out.Message, by)
		}
		if err := s.Ledger.Transition(ctx, entry, status, msg); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("entry", entry.ID).Msg("resolve incomplete ledger entry")
		}
	}
}

// beforeCutoff compares wall-clock times with zones stripped.
func beforeCutoff(store *model.Store, order *model.Order) bool {
	if store.OrderCutoffDate == nil || order.CreatedAt.IsZero() {
		return false
	}
	return wallClock(order.CreatedAt).Before(wallClock(*store.OrderCutoffDate))
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
