// Package recurrence holds the pure schedule arithmetic for recurring
// invoices: exhaustion checks, next-occurrence dates and due decisions.
// Nothing here touches persistence, so the rules are testable in isolation.
package recurrence

import (
	"fmt"
	"time"

	"chainvoice/internal/models"
)

// IsExhausted reports whether the recurring series has met its end condition
// and must not generate further invoices.
func IsExhausted(rec models.Recurring, now time.Time) bool {
	switch rec.EndCondition.Type {
	case models.EndConditionInvoiceCount:
		return rec.CurrentCount >= rec.EndCondition.Count
	case models.EndConditionEndDate:
		if rec.EndCondition.EndDate == nil {
			return false
		}
		return !now.Before(*rec.EndCondition.EndDate)
	case models.EndConditionNever:
		return false
	default:
		// Unknown end condition: treat as exhausted so a misconfigured
		// series never generates unbounded invoices.
		return true
	}
}

// NextOccurrence computes the issue date of the next invoice in the series.
// Monthly and yearly use native calendar arithmetic: adding one month to
// Jan 31 rolls over into early March rather than clamping to month end.
func NextOccurrence(issueDate time.Time, freq models.Frequency) time.Time {
	switch freq.Type {
	case models.FrequencyWeekly:
		return issueDate.AddDate(0, 0, 7)
	case models.FrequencyMonthly:
		return issueDate.AddDate(0, 1, 0)
	case models.FrequencyYearly:
		return issueDate.AddDate(1, 0, 0)
	case models.FrequencyCustom:
		return issueDate.AddDate(0, 0, freq.CustomDays)
	default:
		return issueDate
	}
}

// IsDue reports whether the next invoice of the series should be generated
// now: the series is still live, not exhausted, and the next occurrence date
// has been reached.
func IsDue(invoice *models.Invoice, now time.Time) bool {
	rec := invoice.Recurring
	if !rec.IsRecurring || rec.StoppedAt != nil {
		return false
	}
	if IsExhausted(rec, now) {
		return false
	}
	return !now.Before(NextOccurrence(invoice.IssueDate, rec.Frequency))
}

// DueDateGap returns the issue-to-due interval of an invoice. The gap is
// preserved exactly on every generated child.
func DueDateGap(invoice *models.Invoice) time.Duration {
	return invoice.DueDate.Sub(invoice.IssueDate)
}

// ValidateConfig checks a recurrence configuration for internal consistency.
func ValidateConfig(rec models.Recurring) error {
	if !rec.IsRecurring {
		return nil
	}

	switch rec.Frequency.Type {
	case models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
	case models.FrequencyCustom:
		if rec.Frequency.CustomDays <= 0 {
			return fmt.Errorf("custom frequency requires a positive custom_days value")
		}
	default:
		return fmt.Errorf("frequency type must be one of: weekly, monthly, yearly, custom")
	}

	switch rec.EndCondition.Type {
	case models.EndConditionInvoiceCount:
		if rec.EndCondition.Count <= 0 {
			return fmt.Errorf("invoiceCount end condition requires a positive count")
		}
	case models.EndConditionEndDate:
		if rec.EndCondition.EndDate == nil {
			return fmt.Errorf("endDate end condition requires an end date")
		}
	case models.EndConditionNever:
	default:
		return fmt.Errorf("end condition type must be one of: invoiceCount, endDate, never")
	}

	return nil
}
