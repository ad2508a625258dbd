package handlers

import (
	"net/http"
	"strconv"
	"time"

	"chainvoice/internal/common"
	"chainvoice/internal/services"

	"github.com/labstack/echo/v4"
)

// AuditLogsHandlers handles audit trail related HTTP requests
type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditLogsService: auditLogsService}
}

// ListInvoiceAuditLogs handles GET /invoices/:id/audit-logs
func (h *AuditLogsHandlers) ListInvoiceAuditLogs(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	limit, offset := parsePagination(c)
	limit, offset, err = common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	entries, err := h.auditLogsService.ListByInvoice(ctx, creatorWallet, invoiceID, limit, offset)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"audit_logs": entries,
		"limit":      limit,
		"offset":     offset,
	})
}

// ListAuditLogs handles GET /audit-logs
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	endDate := time.Now()
	startDate := endDate.AddDate(0, -1, 0)

	if sd := c.QueryParam("start_date"); sd != "" {
		parsed, err := time.Parse(time.RFC3339, sd)
		if err != nil {
			return common.SendValidationError(c, "start_date", "must be RFC3339 formatted")
		}
		startDate = parsed
	}
	if ed := c.QueryParam("end_date"); ed != "" {
		parsed, err := time.Parse(time.RFC3339, ed)
		if err != nil {
			return common.SendValidationError(c, "end_date", "must be RFC3339 formatted")
		}
		endDate = parsed
	}

	limit, offset := parsePagination(c)
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	entries, err := h.auditLogsService.ListByCreator(ctx, creatorWallet, startDate, endDate, limit, offset)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"audit_logs": entries,
		"limit":      limit,
		"offset":     offset,
	})
}

func parsePagination(c echo.Context) (int, int) {
	limit := 50
	offset := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}
