package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"text/template"
	"time"

	"chainvoice/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NotificationService handles outbound client notifications
type NotificationService interface {
	// NotifyInvoiceEvent fans an invoice lifecycle event out to the client
	// email and every webhook subscribed to the event type.
	NotifyInvoiceEvent(ctx context.Context, invoice *models.Invoice, eventType string) error

	SendNotification(ctx context.Context, creatorWallet string, notification *models.Notification) error
	SendEmail(ctx context.Context, creatorWallet, recipient, subject, body string) error
	SendWebhook(ctx context.Context, creatorWallet string, webhook *models.WebhookSubscription, payload map[string]interface{}) error

	// Template management
	CreateTemplate(ctx context.Context, creatorWallet string, template *models.NotificationTemplate) error
	GetTemplate(ctx context.Context, creatorWallet, eventType string) (*models.NotificationTemplate, error)
	DeleteTemplate(ctx context.Context, creatorWallet, eventType string) error

	// Webhook subscription management
	CreateWebhookSubscription(ctx context.Context, creatorWallet string, subscription *models.WebhookSubscription) error
	DeleteWebhookSubscription(ctx context.Context, creatorWallet, subscriptionID string) error
	ListWebhookSubscriptions(ctx context.Context, creatorWallet string) ([]*models.WebhookSubscription, error)

	RenderTemplate(template *models.NotificationTemplate, data map[string]interface{}) (string, error)
}

type notificationService struct {
	redisClient *redis.Client
	templatesMu sync.RWMutex
	templates   map[string]*template.Template // Cached parsed templates, guarded by templatesMu
	httpClient  *http.Client
}

// NewNotificationService creates a new notification service
func NewNotificationService(redisAddr, redisPassword string, redisDB int) NotificationService {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	return &notificationService{
		redisClient: redisClient,
		templates:   make(map[string]*template.Template),
		httpClient:  httpClient,
	}
}

var defaultSubjects = map[string]string{
	models.EventRecurringGenerated: "A new recurring invoice has been issued",
	models.EventInvoiceOverdue:     "Invoice payment is overdue",
	models.EventPaymentRecorded:    "Payment received on your invoice",
	models.EventBankDecided:        "Bank transfer verification result",
}

// NotifyInvoiceEvent delivers an invoice event to the client email plus any
// active webhook subscriptions matching the event type.
func (s *notificationService) NotifyInvoiceEvent(ctx context.Context, invoice *models.Invoice, eventType string) error {
	subject := defaultSubjects[eventType]
	if subject == "" {
		subject = fmt.Sprintf("Invoice update: %s", eventType)
	}

	body := fmt.Sprintf("Invoice #%d (%s %.2f) is now %q.",
		invoice.InvoiceNumber, invoice.Currency, invoice.GrandTotal, invoice.Status)

	if tmpl, err := s.GetTemplate(ctx, invoice.CreatorWallet, eventType); err == nil && tmpl != nil && tmpl.IsActive {
		rendered, renderErr := s.RenderTemplate(tmpl, map[string]interface{}{
			"InvoiceNumber": invoice.InvoiceNumber,
			"ClientName":    invoice.Client.Name,
			"Currency":      invoice.Currency,
			"GrandTotal":    invoice.GrandTotal,
			"Remaining":     invoice.RemainingAmount,
			"Status":        invoice.Status,
			"DueDate":       invoice.DueDate,
		})
		if renderErr != nil {
			log.Printf("Failed to render notification template for %s: %v", eventType, renderErr)
		} else {
			body = rendered
			if tmpl.Subject != nil {
				subject = *tmpl.Subject
			}
		}
	}

	if invoice.Client.Email != "" {
		if err := s.SendEmail(ctx, invoice.CreatorWallet, invoice.Client.Email, subject, body); err != nil {
			return fmt.Errorf("failed to send email notification: %v", err)
		}
	}

	subscriptions, err := s.ListWebhookSubscriptions(ctx, invoice.CreatorWallet)
	if err != nil {
		log.Printf("Failed to list webhook subscriptions for %s: %v", invoice.CreatorWallet, err)
		return nil
	}

	payload := map[string]interface{}{
		"type":           eventType,
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"status":         invoice.Status,
		"grand_total":    invoice.GrandTotal,
		"remaining":      invoice.RemainingAmount,
		"timestamp":      time.Now(),
	}

	for _, sub := range subscriptions {
		if !subscribedTo(sub, eventType) {
			continue
		}
		if err := s.SendWebhook(ctx, invoice.CreatorWallet, sub, payload); err != nil {
			log.Printf("Failed to deliver webhook %s: %v", sub.ID, err)
		}
	}

	return nil
}

func subscribedTo(sub *models.WebhookSubscription, eventType string) bool {
	if len(sub.EventTypes) == 0 {
		return true
	}
	for _, et := range sub.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// SendNotification sends a notification via the configured channel
func (s *notificationService) SendNotification(ctx context.Context, creatorWallet string, notification *models.Notification) error {
	switch notification.Type {
	case models.NotificationTypeEmail:
		subject := ""
		if notification.Subject != nil {
			subject = *notification.Subject
		}
		return s.SendEmail(ctx, creatorWallet, notification.Recipient, subject, notification.Body)
	case models.NotificationTypeWebhook:
		// For webhook, recipient is treated as webhook subscription ID
		subscription, err := s.getWebhookSubscription(ctx, creatorWallet, notification.Recipient)
		if err != nil {
			return fmt.Errorf("failed to get webhook subscription: %v", err)
		}

		payload := map[string]interface{}{
			"type":      notification.EventType,
			"event_id":  notification.EventID,
			"subject":   notification.Subject,
			"body":      notification.Body,
			"timestamp": time.Now(),
		}

		return s.SendWebhook(ctx, creatorWallet, subscription, payload)
	default:
		return fmt.Errorf("unsupported notification type: %s", notification.Type)
	}
}

// SendEmail sends an email notification (placeholder implementation)
func (s *notificationService) SendEmail(ctx context.Context, creatorWallet, recipient, subject, body string) error {
	// TODO: Integration with email service (SendGrid, SES, etc.)
	// Placeholder implementation - log the email that would be sent

	log.Printf("[EMAIL] Creator=%s, To=%s, Subject=%s, Body=%s", creatorWallet, recipient, subject, body)

	return nil // Placeholder - no actual sending
}

// SendWebhook sends a webhook notification
func (s *notificationService) SendWebhook(ctx context.Context, creatorWallet string, webhook *models.WebhookSubscription, payload map[string]interface{}) error {
	if !webhook.IsActive {
		return nil // Skip inactive webhooks
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhook.URL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Creator-Wallet", creatorWallet)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned non-success status: %d", resp.StatusCode)
	}

	now := time.Now()
	webhook.LastUsedAt = &now
	if err := s.storeWebhookSubscription(ctx, creatorWallet, webhook); err != nil {
		log.Printf("Failed to update webhook last-used timestamp: %v", err)
	}

	return nil
}

// Template management. Templates live in Redis keyed by creator and event type.
func (s *notificationService) CreateTemplate(ctx context.Context, creatorWallet string, tmplParam *models.NotificationTemplate) error {
	if tmplParam.ID == "" {
		tmplParam.ID = uuid.NewString()
	}
	tmplParam.CreatorWallet = creatorWallet
	tmplParam.CreatedAt = time.Now()
	tmplParam.UpdatedAt = time.Now()

	// Cache the parsed template for faster rendering
	s.cacheTemplate(tmplParam)

	cacheKey := templateKey(creatorWallet, tmplParam.EventType)
	data, err := json.Marshal(tmplParam)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %v", err)
	}

	return s.redisClient.Set(ctx, cacheKey, data, 0).Err()
}

func (s *notificationService) GetTemplate(ctx context.Context, creatorWallet, eventType string) (*models.NotificationTemplate, error) {
	data, err := s.redisClient.Get(ctx, templateKey(creatorWallet, eventType)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // No template configured
		}
		return nil, fmt.Errorf("failed to get cached template: %v", err)
	}

	var tmpl models.NotificationTemplate
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %v", err)
	}
	return &tmpl, nil
}

func (s *notificationService) DeleteTemplate(ctx context.Context, creatorWallet, eventType string) error {
	if err := s.redisClient.Del(ctx, templateKey(creatorWallet, eventType)).Err(); err != nil {
		return fmt.Errorf("failed to delete template: %v", err)
	}
	s.templatesMu.Lock()
	delete(s.templates, fmt.Sprintf("%s:%s", creatorWallet, eventType))
	s.templatesMu.Unlock()
	return nil
}

// Webhook subscription management
func (s *notificationService) CreateWebhookSubscription(ctx context.Context, creatorWallet string, subscription *models.WebhookSubscription) error {
	subscription.ID = uuid.NewString()
	subscription.CreatorWallet = creatorWallet
	subscription.CreatedAt = time.Now()
	subscription.UpdatedAt = time.Now()

	if err := s.storeWebhookSubscription(ctx, creatorWallet, subscription); err != nil {
		return err
	}
	return s.redisClient.SAdd(ctx, webhookIndexKey(creatorWallet), subscription.ID).Err()
}

func (s *notificationService) DeleteWebhookSubscription(ctx context.Context, creatorWallet, subscriptionID string) error {
	if err := s.redisClient.Del(ctx, webhookKey(creatorWallet, subscriptionID)).Err(); err != nil {
		return err
	}
	return s.redisClient.SRem(ctx, webhookIndexKey(creatorWallet), subscriptionID).Err()
}

func (s *notificationService) ListWebhookSubscriptions(ctx context.Context, creatorWallet string) ([]*models.WebhookSubscription, error) {
	ids, err := s.redisClient.SMembers(ctx, webhookIndexKey(creatorWallet)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list webhook subscriptions: %v", err)
	}

	subscriptions := make([]*models.WebhookSubscription, 0, len(ids))
	for _, id := range ids {
		sub, err := s.getWebhookSubscription(ctx, creatorWallet, id)
		if err != nil {
			log.Printf("Skipping unreadable webhook subscription %s: %v", id, err)
			continue
		}
		subscriptions = append(subscriptions, sub)
	}
	return subscriptions, nil
}

// RenderTemplate executes a body template against event data, caching the
// parsed form keyed by creator and event type.
func (s *notificationService) RenderTemplate(tmplParam *models.NotificationTemplate, data map[string]interface{}) (string, error) {
	templateCacheKey := fmt.Sprintf("%s:%s", tmplParam.CreatorWallet, tmplParam.EventType)

	// Events arrive from concurrent fire-and-forget goroutines; the map
	// must never see an unguarded write.
	s.templatesMu.RLock()
	tmpl, exists := s.templates[templateCacheKey]
	s.templatesMu.RUnlock()
	if !exists {
		parsed, err := template.New(templateCacheKey).Parse(tmplParam.BodyTemplate)
		if err != nil {
			return "", fmt.Errorf("failed to parse template: %v", err)
		}
		s.templatesMu.Lock()
		s.templates[templateCacheKey] = parsed
		s.templatesMu.Unlock()
		tmpl = parsed
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %v", err)
	}
	return buf.String(), nil
}

func (s *notificationService) cacheTemplate(tmplParam *models.NotificationTemplate) {
	templateCacheKey := fmt.Sprintf("%s:%s", tmplParam.CreatorWallet, tmplParam.EventType)
	tmpl, err := template.New(templateCacheKey).Parse(tmplParam.BodyTemplate)
	if err != nil {
		log.Printf("Failed to cache template %s: %v", templateCacheKey, err)
		return
	}
	s.templatesMu.Lock()
	s.templates[templateCacheKey] = tmpl
	s.templatesMu.Unlock()
}

func templateKey(creatorWallet, eventType string) string {
	return fmt.Sprintf("notification_template:%s:%s", creatorWallet, eventType)
}

func webhookKey(creatorWallet, subscriptionID string) string {
	return fmt.Sprintf("webhook_subscription:%s:%s", creatorWallet, subscriptionID)
}

func webhookIndexKey(creatorWallet string) string {
	return fmt.Sprintf("webhook_subscriptions:%s", creatorWallet)
}

func (s *notificationService) getWebhookSubscription(ctx context.Context, creatorWallet, subscriptionID string) (*models.WebhookSubscription, error) {
	data, err := s.redisClient.Get(ctx, webhookKey(creatorWallet, subscriptionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("webhook subscription not found")
		}
		return nil, fmt.Errorf("failed to get webhook subscription: %v", err)
	}

	var subscription models.WebhookSubscription
	if err := json.Unmarshal(data, &subscription); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook subscription: %v", err)
	}
	return &subscription, nil
}

func (s *notificationService) storeWebhookSubscription(ctx context.Context, creatorWallet string, subscription *models.WebhookSubscription) error {
	subscription.UpdatedAt = time.Now()
	data, err := json.Marshal(subscription)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook subscription: %v", err)
	}
	return s.redisClient.Set(ctx, webhookKey(creatorWallet, subscription.ID), data, 0).Err()
}
