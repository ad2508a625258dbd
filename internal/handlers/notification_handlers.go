package handlers

import (
	"net/http"

	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/services"

	"github.com/labstack/echo/v4"
)

// NotificationHandlers manages notification templates and webhook subscriptions
type NotificationHandlers struct {
	notificationService services.NotificationService
}

func NewNotificationHandlers(notificationService services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notificationService: notificationService}
}

// CreateTemplate handles POST /notifications/templates
func (h *NotificationHandlers) CreateTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var template models.NotificationTemplate
	if err := c.Bind(&template); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := common.ValidateRequiredString(template.EventType, "event_type"); err != nil {
		return common.SendValidationError(c, "event_type", err.Error())
	}
	if err := common.ValidateRequiredString(template.BodyTemplate, "body_template"); err != nil {
		return common.SendValidationError(c, "body_template", err.Error())
	}

	template.IsActive = true
	if err := h.notificationService.CreateTemplate(ctx, creatorWallet, &template); err != nil {
		return common.SendServerError(c, "Failed to create template: "+err.Error())
	}

	return c.JSON(http.StatusCreated, template)
}

// GetTemplate handles GET /notifications/templates/:eventType
func (h *NotificationHandlers) GetTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	template, err := h.notificationService.GetTemplate(ctx, creatorWallet, c.Param("eventType"))
	if err != nil {
		return common.SendServerError(c, "Failed to get template: "+err.Error())
	}
	if template == nil {
		return common.SendNotFoundError(c, "notification template")
	}

	return c.JSON(http.StatusOK, template)
}

// DeleteTemplate handles DELETE /notifications/templates/:eventType
func (h *NotificationHandlers) DeleteTemplate(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	if err := h.notificationService.DeleteTemplate(ctx, creatorWallet, c.Param("eventType")); err != nil {
		return common.SendServerError(c, "Failed to delete template: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Template deleted successfully",
	})
}

// CreateWebhookSubscription handles POST /notifications/webhooks
func (h *NotificationHandlers) CreateWebhookSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var subscription models.WebhookSubscription
	if err := c.Bind(&subscription); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := common.ValidateRequiredString(subscription.URL, "url"); err != nil {
		return common.SendValidationError(c, "url", err.Error())
	}

	subscription.IsActive = true
	if err := h.notificationService.CreateWebhookSubscription(ctx, creatorWallet, &subscription); err != nil {
		return common.SendServerError(c, "Failed to create webhook subscription: "+err.Error())
	}

	return c.JSON(http.StatusCreated, subscription)
}

// ListWebhookSubscriptions handles GET /notifications/webhooks
func (h *NotificationHandlers) ListWebhookSubscriptions(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	subscriptions, err := h.notificationService.ListWebhookSubscriptions(ctx, creatorWallet)
	if err != nil {
		return common.SendServerError(c, "Failed to list webhook subscriptions: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"webhooks": subscriptions,
	})
}

// DeleteWebhookSubscription handles DELETE /notifications/webhooks/:id
func (h *NotificationHandlers) DeleteWebhookSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	creatorWallet, ok := common.GetCreatorWalletFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	if err := h.notificationService.DeleteWebhookSubscription(ctx, creatorWallet, c.Param("id")); err != nil {
		return common.SendServerError(c, "Failed to delete webhook subscription: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Webhook subscription deleted successfully",
	})
}
