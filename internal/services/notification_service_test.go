package services

import (
	"context"
	"sync"
	"testing"

	"chainvoice/internal/models"

	"github.com/stretchr/testify/assert"
)

func newTestTemplate(eventType, body string) *models.NotificationTemplate {
	return &models.NotificationTemplate{
		ID:            "tmpl-1",
		CreatorWallet: testCreator,
		EventType:     eventType,
		BodyTemplate:  body,
		IsActive:      true,
	}
}

func TestRenderTemplate_Substitution(t *testing.T) {
	svc := NewNotificationService("localhost:6379", "", 0)
	tmpl := newTestTemplate(models.EventPaymentRecorded,
		"Invoice {{.InvoiceNumber}} is {{.Status}}")

	out, err := svc.RenderTemplate(tmpl, map[string]interface{}{
		"InvoiceNumber": 7,
		"Status":        models.StatusPaid,
	})

	assert.NoError(t, err)
	assert.Equal(t, "Invoice 7 is Paid", out)
}

func TestRenderTemplate_ParseError(t *testing.T) {
	svc := NewNotificationService("localhost:6379", "", 0)
	tmpl := newTestTemplate(models.EventInvoiceOverdue, "{{.Unclosed")

	_, err := svc.RenderTemplate(tmpl, map[string]interface{}{})

	assert.Error(t, err)
}

// Lifecycle events fan out from fire-and-forget goroutines, so concurrent
// renders of the same template must be safe (run with -race).
func TestRenderTemplate_ConcurrentEvents(t *testing.T) {
	svc := NewNotificationService("localhost:6379", "", 0)
	tmpl := newTestTemplate(models.EventPaymentRecorded,
		"{{.ClientName}} owes {{.Remaining}}")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.RenderTemplate(tmpl, map[string]interface{}{
				"ClientName": "Acme Corp",
				"Remaining":  250,
			})
			assert.NoError(t, err)
			assert.Equal(t, "Acme Corp owes 250", out)
		}()
	}
	wg.Wait()
}

func TestSubscribedTo_EmptyMeansAll(t *testing.T) {
	sub := &models.WebhookSubscription{ID: "sub-1", CreatorWallet: testCreator, IsActive: true}

	assert.True(t, subscribedTo(sub, models.EventPaymentRecorded))

	sub.EventTypes = []string{models.EventInvoiceOverdue}
	assert.False(t, subscribedTo(sub, models.EventPaymentRecorded))
	assert.True(t, subscribedTo(sub, models.EventInvoiceOverdue))
}

func TestSendWebhook_SkipsInactive(t *testing.T) {
	svc := NewNotificationService("localhost:6379", "", 0)
	sub := &models.WebhookSubscription{
		ID:            "sub-1",
		CreatorWallet: testCreator,
		URL:           "http://localhost:1/never-called",
		IsActive:      false,
	}

	err := svc.SendWebhook(context.Background(), testCreator, sub, map[string]interface{}{"type": "x"})

	assert.NoError(t, err)
	assert.Nil(t, sub.LastUsedAt)
}
