package handler

import (
	"net/http"
	"strconv"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/dto"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/service"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	admin service.AdminService
}

func NewAdminHandler(admin service.AdminService) *AdminHandler {
	return &AdminHandler{
		admin: admin,
	}
}

// httpError maps domain error codes onto status codes.
func httpError(err error) error {
	status := http.StatusInternalServerError
	switch apperror.CodeOf(err) {
	case apperror.CodeNotFound:
		status = http.StatusNotFound
	case apperror.CodeValidation:
		status = http.StatusBadRequest
	case apperror.CodeConfiguration:
		status = http.StatusUnprocessableEntity
	case apperror.CodeConflict, apperror.CodeDependency, apperror.CodeDuplicate, apperror.CodeRetriesExhausted:
		status = http.StatusConflict
	}
	return echo.NewHTTPError(status, err.Error())
}

func (h *AdminHandler) Reprocess(c echo.Context) error {
	ctx := c.Request().Context()

	entry, outcome, err := h.admin.Reprocess(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.ReprocessResponse{
		EntryID: entry.ID,
		RetryOf: entry.RetryOf,
		Status:  string(entry.Status),
		Message: entry.Message,
		Invoice: outcome.Invoice,
	})
}

func (h *AdminHandler) ResyncInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	inv, err := h.admin.ResyncInvoiceItems(ctx, c.Param("name"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.InvoiceResponse{
		Name:       inv.Name,
		Status:     string(inv.Status),
		Items:      len(inv.Items),
		GrandTotal: inv.GrandTotal.StringFixed(2),
	})
}

func (h *AdminHandler) RepairInvoice(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.admin.CreateMissingDocuments(ctx, c.Param("name"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) BulkSubmit(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.BulkSubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if len(req.Invoices) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no invoices given")
	}

	return c.JSON(http.StatusOK, h.admin.BulkSubmitInvoices(ctx, req.Invoices))
}

func (h *AdminHandler) Summary(c echo.Context) error {
	ctx := c.Request().Context()

	summary, err := h.admin.OrderSummary(ctx, c.Param("store"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *AdminHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()

	report, err := h.admin.IntegrationHealth(ctx, c.Param("store"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) RecheckIncomplete(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RecheckRequest
	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
		req.Limit = n
	} else if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
		}
	}

	result, err := h.admin.RecheckIncomplete(ctx, c.Param("store"), req.Limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) ResetRateLimit(c echo.Context) error {
	ctx := c.Request().Context()

	store, api := c.Param("store"), model.APIType(c.Param("api"))
	if err := h.admin.ResetRateLimit(ctx, store, api); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "reset",
	})
}
