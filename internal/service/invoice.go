package service

import (
	"context"
	"errors"
	"fmt"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/retry"

	"github.com/shopspring/decimal"
)

type InvoiceService interface {
	// MarkPaid handles orders/paid.
	MarkPaid(ctx context.Context, ev *Event) Outcome
	// Submit moves a draft to Submitted and creates the delivery note and
	// payment it calls for. Submitting a submitted invoice only re-runs the
	// document checks.
	Submit(ctx context.Context, store *model.Store, invoice *model.Invoice) (*model.Invoice, error)
	CreateMissingDocuments(ctx context.Context, name string) (*RepairResult, error)
	BulkSubmit(ctx context.Context, names []string) []BulkSubmitResult
}

type RepairResult struct {
	Invoice             string `json:"invoice"`
	DeliveryNoteCreated bool   `json:"delivery_note_created"`
	PaymentCreated      bool   `json:"payment_created"`
}

type BulkSubmitResult struct {
	Invoice   string `json:"invoice"`
	Submitted bool   `json:"submitted"`
	Error     string `json:"error,omitempty"`
}

type invoiceServiceImpl struct {
	*Deps
}

func NewInvoiceService(deps *Deps) InvoiceService {
	return &invoiceServiceImpl{Deps: deps}
}

func (s *invoiceServiceImpl) MarkPaid(ctx context.Context, ev *Event) Outcome {
	store, order := ev.Store, ev.Order
	log := logger.Ctx(ctx)

	inv, err := s.Repos.Invoices.FindActiveByOrder(ctx, store.ID, order.OrderID())
	if apperror.IsNotFound(err) {
		return Invalid("no invoice for order %s", order.Name)
	}
	if err != nil {
		return Failure(fmt.Errorf("find invoice: %w", err))
	}

	status := order.FinancialStatus
	if status == "" {
		status = "paid"
	}

	updated, err := retry.Do(ctx, s.Retry,
		func(ctx context.Context) (*model.Invoice, error) {
			return s.Repos.Invoices.FindByID(ctx, inv.ID)
		},
		func(rec *model.Invoice) error {
			if rec.FinancialStatus == status && (!isPaid(status) || rec.PaymentCaptureDate != nil) {
				return retry.ErrNoChange
			}
			rec.FinancialStatus = status
			if isPaid(status) && rec.PaymentCaptureDate == nil {
				now := s.now()
				rec.PaymentCaptureDate = &now
			}
			return nil
		},
		s.Repos.Invoices.Update,
	)
	if apperror.IsRetriesExhausted(err) {
		log.Warn().Err(err).Str("invoice", inv.Name).Msg("financial status update abandoned")
		return Success("financial status update abandoned for invoice %s after %d retries", inv.Name, s.Retry.MaxRetries).WithInvoice(inv.Name)
	}
	if err != nil {
		return Failure(fmt.Errorf("mark invoice %s %s: %w", inv.Name, status, err)).WithInvoice(inv.Name)
	}

	msg := fmt.Sprintf("invoice %s marked %s", updated.Name, status)
	switch {
	case updated.Status == model.DocDraft && store.SubmitOnPaid && isPaid(status):
		if _, err := s.Submit(ctx, store, updated); err != nil {
			return Failure(fmt.Errorf("submit invoice %s: %w", updated.Name, err)).WithInvoice(updated.Name)
		}
		msg += " and submitted"
	case updated.Status == model.DocSubmitted:
		if _, err := s.ensureDocuments(ctx, updated, store.CreateDeliveryNote); err != nil {
			return Failure(err).WithInvoice(updated.Name)
		}
	}
	return Success("%s", msg).WithInvoice(updated.Name)
}

func (s *invoiceServiceImpl) Submit(ctx context.Context, store *model.Store, invoice *model.Invoice) (*model.Invoice, error) {
	submitted, err := retry.Do(ctx, s.Retry,
		func(ctx context.Context) (*model.Invoice, error) {
			return s.Repos.Invoices.FindByID(ctx, invoice.ID)
		},
		func(rec *model.Invoice) error {
			switch rec.Status {
			case model.DocSubmitted:
				return retry.ErrNoChange
			case model.DocCancelled:
				return apperror.New(apperror.CodeValidation, "invoice %s is cancelled", rec.Name)
			}
			if len(rec.Items) == 0 {
				return apperror.New(apperror.CodeValidation, "invoice %s has no items", rec.Name)
			}
			now := s.now()
			rec.Status = model.DocSubmitted
			rec.SubmittedAt = &now
			return nil
		},
		s.Repos.Invoices.Update,
	)
	if err != nil {
		return nil, fmt.Errorf("submit invoice %s: %w", invoice.Name, err)
	}

	if _, err := s.ensureDocuments(ctx, submitted, store.CreateDeliveryNote); err != nil {
		return submitted, err
	}
	return submitted, nil
}

// ensureDocuments creates whatever delivery note and payment a submitted
// invoice is missing. Both are idempotent.
func (s *invoiceServiceImpl) ensureDocuments(ctx context.Context, inv *model.Invoice, withDelivery bool) (*RepairResult, error) {
	result := &RepairResult{Invoice: inv.Name}

	if withDelivery {
		created, err := s.ensureDeliveryNote(ctx, inv)
		if err != nil {
			return result, err
		}
		result.DeliveryNoteCreated = created
	}

	created, err := s.ensurePayment(ctx, inv)
	if err != nil {
		return result, err
	}
	result.PaymentCreated = created
	return result, nil
}

func (s *invoiceServiceImpl) ensureDeliveryNote(ctx context.Context, inv *model.Invoice) (bool, error) {
	exists, err := s.Repos.DeliveryNotes.ExistsForOrder(ctx, inv.StoreID, inv.ShopifyOrderID)
	if err != nil {
		return false, fmt.Errorf("check delivery note: %w", err)
	}
	if exists {
		return false, nil
	}

	note := &model.DeliveryNote{
		InvoiceID:       inv.ID,
		StoreID:         inv.StoreID,
		ShopifyOrderID:  inv.ShopifyOrderID,
		Status:          model.DocSubmitted,
		FinancialStatus: inv.FinancialStatus,
	}
	for _, it := range inv.Items {
		note.Items = append(note.Items, model.DeliveryNoteItem{ItemCode: it.ItemCode, Qty: it.Qty})
	}

	if err := s.Repos.DeliveryNotes.Create(ctx, note); err != nil {
		if apperror.IsDuplicate(err) {
			return false, nil
		}
		return false, fmt.Errorf("create delivery note: %w", err)
	}
	logger.Ctx(ctx).Info().Str("invoice", inv.Name).Str("delivery_note", note.Name).Msg("delivery note created")
	return true, nil
}

func (s *invoiceServiceImpl) ensurePayment(ctx context.Context, inv *model.Invoice) (bool, error) {
	if !isPaid(inv.FinancialStatus) || !inv.OutstandingAmount.IsPositive() {
		return false, nil
	}

	active, err := s.Repos.Payments.HasActive(ctx, inv.ID)
	if err != nil {
		return false, fmt.Errorf("check payment: %w", err)
	}
	if active {
		return false, nil
	}
	if inv.BankAccount == "" {
		return false, apperror.New(apperror.CodeConfiguration, "invoice %s has no bank account for its payment", inv.Name)
	}

	payment := &model.PaymentEntry{
		InvoiceID:      inv.ID,
		StoreID:        inv.StoreID,
		ShopifyOrderID: inv.ShopifyOrderID,
		Status:         model.DocSubmitted,
		BankAccount:    inv.BankAccount,
		Amount:         inv.OutstandingAmount,
		ReferenceNo:    inv.ShopifyOrderNumber,
		PostingDate:    s.now(),
	}
	if err := s.Repos.Payments.Create(ctx, payment); err != nil {
		if apperror.IsDuplicate(err) {
			return false, nil
		}
		return false, fmt.Errorf("create payment: %w", err)
	}

	settled, err := retry.Do(ctx, s.Retry,
		func(ctx context.Context) (*model.Invoice, error) {
			return s.Repos.Invoices.FindByID(ctx, inv.ID)
		},
		func(rec *model.Invoice) error {
			if rec.OutstandingAmount.IsZero() {
				return retry.ErrNoChange
			}
			rec.OutstandingAmount = decimal.Max(rec.OutstandingAmount.Sub(payment.Amount), decimal.Zero)
			return nil
		},
		s.Repos.Invoices.Update,
	)
	if err != nil {
		return true, fmt.Errorf("settle invoice %s: %w", inv.Name, err)
	}
	*inv = *settled

	logger.Ctx(ctx).Info().Str("invoice", inv.Name).Str("payment", payment.Name).Msg("payment created")
	return true, nil
}

func (s *invoiceServiceImpl) CreateMissingDocuments(ctx context.Context, name string) (*RepairResult, error) {
	inv, err := s.Repos.Invoices.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if inv.Status != model.DocSubmitted {
		return nil, apperror.New(apperror.CodeValidation, "invoice %s is %s, not submitted", inv.Name, inv.Status)
	}
	return s.ensureDocuments(ctx, inv, true)
}

func (s *invoiceServiceImpl) BulkSubmit(ctx context.Context, names []string) []BulkSubmitResult {
	results := make([]BulkSubmitResult, 0, len(names))
	for _, name := range names {
		res := BulkSubmitResult{Invoice: name}
		if err := s.submitByName(ctx, name); err != nil {
			res.Error = err.Error()
		} else {
			res.Submitted = true
		}
		results = append(results, res)
	}
	return results
}

func (s *invoiceServiceImpl) submitByName(ctx context.Context, name string) error {
	inv, err := s.Repos.Invoices.FindByName(ctx, name)
	if apperror.IsNotFound(err) {
		return errors.New("invoice not found")
	}
	if err != nil {
		return err
	}

	switch {
	case inv.ShopifyOrderID == "":
		return errors.New("not a storefront invoice")
	case inv.Status == model.DocSubmitted:
		return errors.New("already submitted")
	case inv.Status == model.DocCancelled:
		return errors.New("invoice is cancelled")
	}

	store, err := s.Repos.Stores.FindByID(ctx, inv.StoreID)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	_, err = s.Submit(ctx, store, inv)
	return err
}
