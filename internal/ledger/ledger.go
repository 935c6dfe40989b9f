// Package ledger keeps the audit trail of webhook-processing attempts.
// Every accepted webhook gets one entry; its status only moves forward.
package ledger

import (
	"context"
	"fmt"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Ledger struct {
	repo repository.LedgerRepository
}

func New(repo repository.LedgerRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Create records a newly accepted event in Queued status.
func (l *Ledger) Create(ctx context.Context, eventType model.EventType, storeID, orderID string, payload []byte, requestID string) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{
		ID:             uuid.NewString(),
		EventType:      eventType,
		StoreID:        storeID,
		ShopifyOrderID: orderID,
		Payload:        datatypes.JSON(payload),
		Status:         model.LedgerQueued,
		RequestID:      requestID,
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	return entry, nil
}

// Transition moves entry to status. Backward moves are rejected, and so is a
// move from a status the entry no longer holds in storage.
func (l *Ledger) Transition(ctx context.Context, entry *model.LedgerEntry, status model.LedgerStatus, message string) error {
	if !entry.Status.CanTransitionTo(status) {
		return apperror.New(apperror.CodeValidation, "ledger entry %s cannot move from %s to %s", entry.ID, entry.Status, status)
	}
	if err := l.repo.UpdateStatus(ctx, entry.ID, entry.Status, status, message); err != nil {
		return fmt.Errorf("transition ledger entry: %w", err)
	}

	entry.Status = status
	entry.Message = message
	return nil
}

// Retry starts a fresh Queued entry carrying the payload of a finished one.
func (l *Ledger) Retry(ctx context.Context, entry *model.LedgerEntry, requestID string) (*model.LedgerEntry, error) {
	retry := &model.LedgerEntry{
		ID:             uuid.NewString(),
		EventType:      entry.EventType,
		StoreID:        entry.StoreID,
		ShopifyOrderID: entry.ShopifyOrderID,
		Payload:        entry.Payload,
		Status:         model.LedgerQueued,
		RequestID:      requestID,
		RetryOf:        &entry.ID,
	}
	if err := l.repo.Create(ctx, retry); err != nil {
		return nil, fmt.Errorf("create retry ledger entry: %w", err)
	}
	return retry, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*model.LedgerEntry, error) {
	return l.repo.FindByID(ctx, id)
}

func (l *Ledger) FindIncomplete(ctx context.Context, storeID, orderID string) ([]*model.LedgerEntry, error) {
	return l.repo.ListByOrder(ctx, storeID, orderID, model.LedgerIncomplete)
}

func (l *Ledger) ListIncomplete(ctx context.Context, storeID string, limit int) ([]*model.LedgerEntry, error) {
	return l.repo.ListByStatus(ctx, storeID, model.LedgerIncomplete, limit)
}

func (l *Ledger) LatestForOrder(ctx context.Context, storeID, orderID string) (*model.LedgerEntry, error) {
	return l.repo.LatestForOrder(ctx, storeID, orderID)
}

func (l *Ledger) Counts(ctx context.Context, storeID string, since time.Time) (map[model.LedgerStatus]int64, error) {
	return l.repo.CountByStatusSince(ctx, storeID, since)
}

func (l *Ledger) LastSuccess(ctx context.Context, storeID string) (*time.Time, error) {
	return l.repo.LastSuccess(ctx, storeID)
}
