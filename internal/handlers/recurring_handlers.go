package handlers

import (
	"net/http"
	"time"

	"chainvoice/internal/common"
	"chainvoice/internal/services"

	"github.com/labstack/echo/v4"
)

// RecurringHandlers handles HTTP requests for recurring invoice series
type RecurringHandlers struct {
	recurringService services.RecurringService
}

func NewRecurringHandlers(recurringService services.RecurringService) *RecurringHandlers {
	return &RecurringHandlers{recurringService: recurringService}
}

// GenerateDueRecurring handles POST /recurring/generate
// Runs the generation sweep for the authenticated creator and reports a
// per-invoice outcome.
func (h *RecurringHandlers) GenerateDueRecurring(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	outcomes, err := h.recurringService.GenerateDueRecurring(ctx, &creatorWallet, time.Now())
	if err != nil {
		return common.SendDomainError(c, err)
	}

	generated := 0
	for _, outcome := range outcomes {
		if outcome.Status == services.OutcomeGenerated {
			generated++
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"generated": generated,
		"outcomes":  outcomes,
	})
}

// StopRecurring handles POST /invoices/:id/stop-recurring
func (h *RecurringHandlers) StopRecurring(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	invoice, err := h.recurringService.StopRecurring(ctx, creatorWallet, invoiceID)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, invoice)
}

// GetInvoiceChain handles GET /invoices/:id/chain
// Returns the full recurring lineage of an invoice, root first.
func (h *RecurringHandlers) GetInvoiceChain(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	invoiceID, err := common.ValidateUUID(c.Param("id"), "invoice_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	chain, err := h.recurringService.ResolveChain(ctx, invoiceID)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	// Ownership check on the resolved chain; all members share a creator
	if len(chain) > 0 && chain[0].CreatorWallet != creatorWallet {
		return common.SendNotFoundError(c, "invoice")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"chain":  chain,
		"length": len(chain),
	})
}
