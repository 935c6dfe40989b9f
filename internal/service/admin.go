package service

import (
	"context"
	"fmt"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/ratelimit"
	"shopify-order-sync/internal/retry"
	"shopify-order-sync/internal/routing"

	"github.com/google/uuid"
)

const DefaultRecheckLimit = 50

const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// WorkerStatus reports on the background queue.
type WorkerStatus interface {
	Depth() int
	Workers() int
}

type AdminService interface {
	// Reprocess re-runs a ledger entry with its stored payload. Queued and
	// IncompleteOrder entries are re-entered in place; finished entries get
	// a new entry linked to the original.
	Reprocess(ctx context.Context, entryID string) (*model.LedgerEntry, Outcome, error)
	RecheckIncomplete(ctx context.Context, storeID string, limit int) (*RecheckResult, error)
	ResyncInvoiceItems(ctx context.Context, name string) (*model.Invoice, error)
	FixHollowInvoices(ctx context.Context, storeID string) (*FixHollowResult, error)
	CreateMissingDocuments(ctx context.Context, name string) (*RepairResult, error)
	BulkSubmitInvoices(ctx context.Context, names []string) []BulkSubmitResult
	OrderSummary(ctx context.Context, storeID string) (*OrderSummary, error)
	IntegrationHealth(ctx context.Context, storeID string) (*HealthReport, error)
	ResetRateLimit(ctx context.Context, storeID string, api model.APIType) error
}

type RecheckResult struct {
	Checked         int `json:"checked"`
	Resolved        int `json:"resolved"`
	StillIncomplete int `json:"still_incomplete"`
	Failed          int `json:"failed"`
}

type FixHollowResult struct {
	Fixed       int      `json:"fixed"`
	StillHollow int      `json:"still_hollow"`
	Errors      int      `json:"errors"`
	Details     []string `json:"details,omitempty"`
}

type OrderSummary struct {
	StoreID          string `json:"store_id"`
	IncompleteOrders int64  `json:"incomplete_orders"`
	DraftInvoices    int64  `json:"draft_invoices"`
	SubmittedToday   int64  `json:"submitted_today"`
	PendingDelivery  int64  `json:"pending_delivery"`
}

type HealthReport struct {
	StoreID     string     `json:"store_id"`
	Status      string     `json:"status"`
	Queued24h   int64      `json:"queued_24h"`
	Errors24h   int64      `json:"errors_24h"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	QueueDepth  int        `json:"queue_depth"`
	Workers     int        `json:"workers"`
}

type adminServiceImpl struct {
	*Deps
	sync     OrderSyncService
	invoices InvoiceService
	builder  *invoiceBuilder
	limiter  *ratelimit.Limiter
	workers  WorkerStatus
}

func NewAdminService(deps *Deps, sync OrderSyncService, invoices InvoiceService, limiter *ratelimit.Limiter, workers WorkerStatus) AdminService {
	return &adminServiceImpl{
		Deps:     deps,
		sync:     sync,
		invoices: invoices,
		builder:  &invoiceBuilder{items: deps.Repos.Items},
		limiter:  limiter,
		workers:  workers,
	}
}

func (s *adminServiceImpl) Reprocess(ctx context.Context, entryID string) (*model.LedgerEntry, Outcome, error) {
	entry, err := s.Ledger.Get(ctx, entryID)
	if err != nil {
		return nil, Outcome{}, err
	}

	if entry.Status.IsFinal() {
		entry, err = s.Ledger.Retry(ctx, entry, uuid.NewString())
		if err != nil {
			return nil, Outcome{}, err
		}
	}

	outcome, err := s.sync.Process(ctx, entry)
	return entry, outcome, err
}

func (s *adminServiceImpl) RecheckIncomplete(ctx context.Context, storeID string, limit int) (*RecheckResult, error) {
	if limit <= 0 {
		limit = DefaultRecheckLimit
	}
	store, err := s.Repos.Stores.FindByID(ctx, storeID)
	if err != nil {
		return nil, err
	}

	entries, err := s.Ledger.ListIncomplete(ctx, storeID, limit)
	if err != nil {
		return nil, err
	}

	result := &RecheckResult{}
	for _, listed := range entries {
		// an earlier entry of the batch may have resolved this one
		entry, err := s.Ledger.Get(ctx, listed.ID)
		if err != nil || entry.Status != model.LedgerIncomplete {
			continue
		}
		result.Checked++

		if store.AccessToken != "" && s.Shopify != nil {
			_, raw, err := s.Shopify.GetOrder(ctx, store, entry.ShopifyOrderID)
			if err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("order", entry.ShopifyOrderID).Msg("fetch order, using stored payload")
			} else {
				entry.Payload = raw
			}
		}

		outcome, err := s.sync.Process(ctx, entry)
		switch {
		case err != nil:
			result.Failed++
		case outcome.Kind == OutcomeIncomplete:
			result.StillIncomplete++
		case outcome.Kind == OutcomeFailure || outcome.Kind == OutcomeConfigError:
			result.Failed++
		default:
			result.Resolved++
		}
	}
	return result, nil
}

func (s *adminServiceImpl) ResyncInvoiceItems(ctx context.Context, name string) (*model.Invoice, error) {
	inv, err := s.Repos.Invoices.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if inv.Status != model.DocDraft {
		return nil, apperror.New(apperror.CodeValidation, "invoice %s is %s, only drafts can be resynced", inv.Name, inv.Status)
	}
	if len(inv.Items) > 0 {
		return nil, apperror.New(apperror.CodeValidation, "invoice %s already has items", inv.Name)
	}

	store, err := s.Repos.Stores.FindByID(ctx, inv.StoreID)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	entry, err := s.Ledger.LatestForOrder(ctx, inv.StoreID, inv.ShopifyOrderID)
	if err != nil {
		return nil, fmt.Errorf("find stored payload: %w", err)
	}
	order, err := model.ParseOrder(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode order payload: %w", err)
	}

	decision, err := routing.Resolve(order, store)
	if err != nil {
		return nil, err
	}
	lines, _, err := s.builder.resolveLines(ctx, store, order)
	if err != nil {
		return nil, err
	}
	body, err := s.builder.assemble(store, order, lines, decision)
	if err != nil {
		return nil, err
	}

	return retry.Do(ctx, s.Retry,
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
}

func (s *adminServiceImpl) FixHollowInvoices(ctx context.Context, storeID string) (*FixHollowResult, error) {
	hollow, err := s.Repos.Invoices.ListHollowDrafts(ctx, storeID)
	if err != nil {
		return nil, err
	}

	result := &FixHollowResult{}
	for _, inv := range hollow {
		fixed, err := s.ResyncInvoiceItems(ctx, inv.Name)
		switch {
		case err != nil:
			result.Errors++
			result.Details = append(result.Details, fmt.Sprintf("%s: %v", inv.Name, err))
		case len(fixed.Items) == 0:
			result.StillHollow++
		default:
			result.Fixed++
		}
	}
	return result, nil
}

func (s *adminServiceImpl) CreateMissingDocuments(ctx context.Context, name string) (*RepairResult, error) {
	return s.invoices.CreateMissingDocuments(ctx, name)
}

func (s *adminServiceImpl) BulkSubmitInvoices(ctx context.Context, names []string) []BulkSubmitResult {
	return s.invoices.BulkSubmit(ctx, names)
}

func (s *adminServiceImpl) OrderSummary(ctx context.Context, storeID string) (*OrderSummary, error) {
	if _, err := s.Repos.Stores.FindByID(ctx, storeID); err != nil {
		return nil, err
	}
	counts, err := s.Ledger.Counts(ctx, storeID, time.Time{})
	if err != nil {
		return nil, err
	}
	summary := &OrderSummary{StoreID: storeID, IncompleteOrders: counts[model.LedgerIncomplete]}

	if summary.DraftInvoices, err = s.Repos.Invoices.CountByStatus(ctx, storeID, model.DocDraft); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if summary.SubmittedToday, err = s.Repos.Invoices.CountSubmittedSince(ctx, storeID, today); err != nil {
		return nil, err
	}
	if summary.PendingDelivery, err = s.Repos.Invoices.CountPendingDelivery(ctx, storeID); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *adminServiceImpl) IntegrationHealth(ctx context.Context, storeID string) (*HealthReport, error) {
	if _, err := s.Repos.Stores.FindByID(ctx, storeID); err != nil {
		return nil, err
	}
	since := s.now().Add(-24 * time.Hour)
	counts, err := s.Ledger.Counts(ctx, storeID, since)
	if err != nil {
		return nil, err
	}
	last, err := s.Ledger.LastSuccess(ctx, storeID)
	if err != nil {
		return nil, err
	}

	report := &HealthReport{
		StoreID:     storeID,
		Queued24h:   counts[model.LedgerQueued],
		Errors24h:   counts[model.LedgerError],
		LastSuccess: last,
	}
	if s.workers != nil {
		report.QueueDepth = s.workers.Depth()
		report.Workers = s.workers.Workers()
	}

	report.Status = HealthHealthy
	if report.Errors24h > 10 || report.Queued24h > 50 {
		report.Status = HealthWarning
	}
	if (last == nil || last.Before(since)) && report.Errors24h > 0 {
		report.Status = HealthCritical
	}
	return report, nil
}

func (s *adminServiceImpl) ResetRateLimit(ctx context.Context, storeID string, api model.APIType) error {
	if _, ok := ratelimit.DefaultLimits[api]; !ok {
		return apperror.New(apperror.CodeValidation, "unknown api type %q", api)
	}
	return s.limiter.Reset(ctx, storeID, api)
}
