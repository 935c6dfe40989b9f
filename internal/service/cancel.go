package service

import (
	"context"
	"errors"
	"fmt"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/retry"
)

type CancellationService interface {
	// Cancel handles orders/cancelled.
	Cancel(ctx context.Context, ev *Event) Outcome
	// CancelOrder unwinds the documents of one order: delivery notes first,
	// then payments, then the invoice itself.
	CancelOrder(ctx context.Context, store *model.Store, orderID, financialStatus string) Outcome
}

type cancellationServiceImpl struct {
	*Deps
}

func NewCancellationService(deps *Deps) CancellationService {
	return &cancellationServiceImpl{Deps: deps}
}

func (s *cancellationServiceImpl) Cancel(ctx context.Context, ev *Event) Outcome {
	return s.CancelOrder(ctx, ev.Store, ev.Order.OrderID(), ev.Order.FinancialStatus)
}

func (s *cancellationServiceImpl) CancelOrder(ctx context.Context, store *model.Store, orderID, financialStatus string) Outcome {
	log := logger.Ctx(ctx).With().Str("store", store.ID).Str("order", orderID).Logger()

	inv, err := s.Repos.Invoices.FindActiveByOrder(ctx, store.ID, orderID)
	if apperror.IsNotFound(err) {
		return Invalid("no invoice for order %s", orderID)
	}
	if err != nil {
		return Failure(fmt.Errorf("find invoice: %w", err))
	}

	notes, err := s.Repos.DeliveryNotes.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return Failure(err).WithInvoice(inv.Name)
	}

	// Stamped first: it must stick even if the cascade stops halfway.
	if financialStatus != "" {
		s.stampFinancialStatus(ctx, inv, notes, financialStatus)
	}

	if inv.Status == model.DocDraft {
		_, err := retry.Do(ctx, s.Retry,
			func(ctx context.Context) (*model.Invoice, error) {
				return s.Repos.Invoices.FindByID(ctx, inv.ID)
			},
			func(rec *model.Invoice) error {
				if rec.Status != model.DocDraft {
					return errNotDraft
				}
				return nil
			},
			s.Repos.Invoices.Delete,
		)
		switch {
		case err == nil:
			log.Info().Str("invoice", inv.Name).Msg("draft invoice deleted")
			return Success("deleted draft invoice %s", inv.Name).WithInvoice(inv.Name)
		case errors.Is(err, errNotDraft):
			log.Info().Str("invoice", inv.Name).Msg("invoice submitted while cancelling, unwinding instead")
		default:
			return Failure(fmt.Errorf("delete draft invoice %s: %w", inv.Name, err)).WithInvoice(inv.Name)
		}

		if notes, err = s.Repos.DeliveryNotes.ListByInvoice(ctx, inv.ID); err != nil {
			return Failure(err).WithInvoice(inv.Name)
		}
	}

	cancelledNotes := 0
	for _, note := range notes {
		if note.Status == model.DocCancelled {
			continue
		}
		if note.ShipStationShipmentID != "" {
			s.cancelShipment(ctx, note)
		}
		if err := s.cancelDeliveryNote(ctx, note.ID); err != nil {
			return Failure(fmt.Errorf("cancel delivery note %s: %w", note.Name, err)).WithInvoice(inv.Name)
		}
		cancelledNotes++
	}

	payments, err := s.Repos.Payments.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return Failure(err).WithInvoice(inv.Name)
	}
	cancelledPayments := 0
	for _, payment := range payments {
		if payment.Status == model.DocCancelled {
			continue
		}
		if err := s.cancelPayment(ctx, payment.ID); err != nil {
			return Failure(fmt.Errorf("cancel payment %s: %w", payment.Name, err)).WithInvoice(inv.Name)
		}
		cancelledPayments++
	}

	// Reloaded, then retried at most once on conflict.
	once := retry.Policy{MaxRetries: 1, Sleep: s.Retry.Sleep}
	_, err = retry.Do(ctx, once,
		func(ctx context.Context) (*model.Invoice, error) {
			return s.Repos.Invoices.FindByID(ctx, inv.ID)
		},
		func(rec *model.Invoice) error {
			if rec.Status == model.DocCancelled {
				return retry.ErrNoChange
			}
			rec.Status = model.DocCancelled
			return nil
		},
		s.Repos.Invoices.Update,
	)
	if err != nil {
		return Failure(fmt.Errorf("cancel invoice %s: %w", inv.Name, err)).WithInvoice(inv.Name)
	}

	log.Info().Str("invoice", inv.Name).Int("delivery_notes", cancelledNotes).Int("payments", cancelledPayments).Msg("invoice cancelled")
	return Success("cancelled invoice %s, %d delivery notes and %d payments", inv.Name, cancelledNotes, cancelledPayments).WithInvoice(inv.Name)
}

func (s *cancellationServiceImpl) stampFinancialStatus(ctx context.Context, inv *model.Invoice, notes []*model.DeliveryNote, status string) {
	log := logger.Ctx(ctx)

	_, err := retry.Do(ctx, s.Retry,
		func(ctx context.Context) (*model.Invoice, error) {
			return s.Repos.Invoices.FindByID(ctx, inv.ID)
		},
		func(rec *model.Invoice) error {
			if rec.FinancialStatus == status {
				return retry.ErrNoChange
			}
			rec.FinancialStatus = status
			return nil
		},
		s.Repos.Invoices.Update,
	)
	if err != nil {
		log.Warn().Err(err).Str("invoice", inv.Name).Msg("stamp financial status on invoice")
	}

	for _, note := range notes {
		_, err := retry.Do(ctx, s.Retry,
			func(ctx context.Context) (*model.DeliveryNote, error) {
				return s.Repos.DeliveryNotes.FindByID(ctx, note.ID)
			},
			func(rec *model.DeliveryNote) error {
				if rec.FinancialStatus == status {
					return retry.ErrNoChange
				}
				rec.FinancialStatus = status
				return nil
			},
			s.Repos.DeliveryNotes.Update,
		)
		if err != nil {
			log.Warn().Err(err).Str("delivery_note", note.Name).Msg("stamp financial status on delivery note")
		}
	}
}

// cancelShipment voids the carrier label. Failures are logged only.
func (s *cancellationServiceImpl) cancelShipment(ctx context.Context, note *model.DeliveryNote) {
	log := logger.Ctx(ctx).With().Str("delivery_note", note.Name).Str("shipment", note.ShipStationShipmentID).Logger()
	if s.ShipStation == nil {
		log.Warn().Msg("shipstation not configured, shipment left as is")
		return
	}
	if err := s.ShipStation.CancelShipment(ctx, note.ShipStationShipmentID); err != nil {
		log.Warn().Err(err).Msg("cancel shipment")
		return
	}
	log.Info().Msg("shipment cancelled")
}

func (s *cancellationServiceImpl) cancelDeliveryNote(ctx context.Context, id uint) error {
	_, err := retry.Do(ctx, s.Retry,
		func(ctx context.Context) (*model.DeliveryNote, error) {
			return s.Repos.DeliveryNotes.FindByID(ctx, id)
		},
		func(rec *model.DeliveryNote) error {
			if rec.Status == model.DocCancelled {
				return retry.ErrNoChange
			}
			rec.Status = model.DocCancelled
			return nil
		},
		s.Repos.DeliveryNotes.Update,
	)
	return err
}

func (s *cancellationServiceImpl) cancelPayment(ctx context.Context, id uint) error {
	_, err := retry.Do(ctx, s.Retry,
		func(ctx context.Context) (*model.PaymentEntry, error) {
			return s.Repos.Payments.FindByID(ctx, id)
		},
		func(rec *model.PaymentEntry) error {
			if rec.Status == model.DocCancelled {
				return retry.ErrNoChange
			}
			rec.Status = model.DocCancelled
			return nil
		},
		s.Repos.Payments.Update,
	)
	return err
}
