package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/dto"
	"shopify-order-sync/internal/ledger"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/metrics"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/queue"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

// Enqueuer accepts background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (bool, error)
}

type WebhookHandler struct {
	stores     repository.StoreRepository
	ledger     *ledger.Ledger
	queue      Enqueuer
	sync       service.OrderSyncService
	jobTimeout time.Duration
}

func NewWebhookHandler(stores repository.StoreRepository, l *ledger.Ledger, q Enqueuer, sync service.OrderSyncService, jobTimeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		stores:     stores,
		ledger:     l,
		queue:      q,
		sync:       sync,
		jobTimeout: jobTimeout,
	}
}

func (h *WebhookHandler) Receive(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()
	topic := req.Header.Get(HeaderTopic)

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	domain := req.Header.Get(HeaderShopDomain)
	if domain == "" {
		metrics.WebhooksReceivedTotal.WithLabelValues(topic, "rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "missing "+HeaderShopDomain+" header")
	}

	store, err := h.stores.FindByDomain(ctx, domain)
	if apperror.IsNotFound(err) {
		metrics.WebhooksReceivedTotal.WithLabelValues(topic, "unknown_store").Inc()
		return echo.NewHTTPError(http.StatusNotFound, "unknown store")
	}
	if err != nil {
		return err
	}

	if !VerifySignature(body, store.SharedSecret, req.Header.Get(HeaderHmac)) {
		metrics.WebhooksReceivedTotal.WithLabelValues(topic, "bad_signature").Inc()
		logger.Ctx(ctx).Warn().Str("store", store.ID).Str("topic", topic).Msg("webhook signature mismatch")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	eventType := model.EventType(topic)
	if !service.Supported(eventType) {
		metrics.WebhooksReceivedTotal.WithLabelValues(topic, "ignored").Inc()
		return c.JSON(http.StatusOK, dto.WebhookAccepted{Status: "ignored"})
	}

	order, err := model.ParseOrder(body)
	if err != nil || order.ID == 0 {
		metrics.WebhooksReceivedTotal.WithLabelValues(topic, "rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order payload")
	}

	requestID := req.Header.Get(HeaderWebhookID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = logger.WithRequestID(ctx, requestID)

	entry, err := h.ledger.Create(ctx, eventType, store.ID, order.OrderID(), body, requestID)
	if err != nil {
		return err
	}

	job := queue.Job{
		Name:    topic,
		Key:     fmt.Sprintf("%s:%s:%s:%s", topic, store.ID, order.OrderID(), requestID),
		Timeout: h.jobTimeout,
		Run: func(ctx context.Context) error {
			_, err := h.sync.Process(ctx, entry)
			return err
		},
	}

	accepted, err := h.queue.Enqueue(ctx, job)
	switch {
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		metrics.WebhooksReceivedTotal.WithLabelValues(topic, "unavailable").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("entry", entry.ID).Msg("enqueue webhook job, entry left queued")
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		return err
	case !accepted:
		metrics.WebhooksReceivedTotal.WithLabelValues(topic, "duplicate").Inc()
		if err := h.ledger.Transition(ctx, entry, model.LedgerInvalid, "duplicate delivery of webhook "+requestID); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, dto.WebhookAccepted{Status: "duplicate", EntryID: entry.ID})
	}

	metrics.WebhooksReceivedTotal.WithLabelValues(topic, "queued").Inc()
	logger.Ctx(ctx).Info().Str("entry", entry.ID).Str("store", store.ID).Str("topic", topic).Str("order", order.OrderID()).Msg("webhook queued")
	return c.JSON(http.StatusOK, dto.WebhookAccepted{Status: "queued", EntryID: entry.ID})
}

// VerifySignature checks the base64 HMAC-SHA256 of body keyed by secret.
func VerifySignature(body []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign returns the signature VerifySignature expects.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
