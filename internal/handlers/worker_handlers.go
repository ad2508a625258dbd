package handlers

import (
	"net/http"
	"strconv"

	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/services"

	"github.com/labstack/echo/v4"
)

// WorkerHandlers handles HTTP requests for the payee contact book
type WorkerHandlers struct {
	workerService services.WorkerService
}

func NewWorkerHandlers(workerService services.WorkerService) *WorkerHandlers {
	return &WorkerHandlers{workerService: workerService}
}

// CreateWorker handles POST /workers
func (h *WorkerHandlers) CreateWorker(c echo.Context) error {
	ctx := c.Request().Context()

	ownerWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var worker models.Worker
	if err := c.Bind(&worker); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	worker.OwnerWallet = ownerWallet

	if err := h.workerService.CreateWorker(ctx, &worker); err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, worker)
}

// GetWorkers handles GET /workers
func (h *WorkerHandlers) GetWorkers(c echo.Context) error {
	ctx := c.Request().Context()

	ownerWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

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
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	activeOnly := c.QueryParam("active") == "true"

	workers, err := h.workerService.ListWorkers(ctx, ownerWallet, activeOnly, limit, offset)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"workers": workers,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetWorkerByID handles GET /workers/:id
func (h *WorkerHandlers) GetWorkerByID(c echo.Context) error {
	ctx := c.Request().Context()

	ownerWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	workerID, err := common.ValidateUUID(c.Param("id"), "worker_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	worker, err := h.workerService.GetWorker(ctx, ownerWallet, workerID)
	if err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, worker)
}

// UpdateWorker handles PUT /workers/:id
func (h *WorkerHandlers) UpdateWorker(c echo.Context) error {
	ctx := c.Request().Context()

	ownerWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	workerID, err := common.ValidateUUID(c.Param("id"), "worker_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var worker models.Worker
	if err := c.Bind(&worker); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	worker.ID = workerID
	worker.OwnerWallet = ownerWallet

	if err := h.workerService.UpdateWorker(ctx, &worker); err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Worker updated successfully",
	})
}

// DeactivateWorker handles POST /workers/:id/deactivate
func (h *WorkerHandlers) DeactivateWorker(c echo.Context) error {
	ctx := c.Request().Context()

	ownerWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	workerID, err := common.ValidateUUID(c.Param("id"), "worker_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := h.workerService.DeactivateWorker(ctx, ownerWallet, workerID); err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Worker deactivated successfully",
	})
}

// DeleteWorker handles DELETE /workers/:id
func (h *WorkerHandlers) DeleteWorker(c echo.Context) error {
	ctx := c.Request().Context()

	ownerWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	workerID, err := common.ValidateUUID(c.Param("id"), "worker_id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := h.workerService.DeleteWorker(ctx, ownerWallet, workerID); err != nil {
		return common.SendDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Worker deleted successfully",
	})
}
