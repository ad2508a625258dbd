package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chainvoice/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence_Weekly(t *testing.T) {
	got := NextOccurrence(date(2024, time.January, 1), models.Frequency{Type: models.FrequencyWeekly})
	assert.Equal(t, date(2024, time.January, 8), got)
}

func TestNextOccurrence_Monthly(t *testing.T) {
	got := NextOccurrence(date(2024, time.January, 15), models.Frequency{Type: models.FrequencyMonthly})
	assert.Equal(t, date(2024, time.February, 15), got)
}

func TestNextOccurrence_MonthlyEndOfMonthRollsOver(t *testing.T) {
	// Jan 31 + 1 month overflows Feb and lands in March; calendar
	// arithmetic is kept, not clamped to month end.
	got := NextOccurrence(date(2024, time.January, 31), models.Frequency{Type: models.FrequencyMonthly})
	assert.Equal(t, date(2024, time.March, 2), got)
}

func TestNextOccurrence_Yearly(t *testing.T) {
	got := NextOccurrence(date(2024, time.June, 10), models.Frequency{Type: models.FrequencyYearly})
	assert.Equal(t, date(2025, time.June, 10), got)
}

func TestNextOccurrence_Custom(t *testing.T) {
	got := NextOccurrence(date(2024, time.January, 1), models.Frequency{Type: models.FrequencyCustom, CustomDays: 10})
	assert.Equal(t, date(2024, time.January, 11), got)
}

func TestIsExhausted_InvoiceCount(t *testing.T) {
	rec := models.Recurring{
		IsRecurring:  true,
		CurrentCount: 3,
		EndCondition: models.EndCondition{Type: models.EndConditionInvoiceCount, Count: 3},
	}
	assert.True(t, IsExhausted(rec, time.Now()))

	rec.CurrentCount = 2
	assert.False(t, IsExhausted(rec, time.Now()))
}

func TestIsExhausted_EndDatePastRegardlessOfCount(t *testing.T) {
	past := date(2020, time.January, 1)
	rec := models.Recurring{
		IsRecurring:  true,
		CurrentCount: 1,
		EndCondition: models.EndCondition{Type: models.EndConditionEndDate, EndDate: &past},
	}
	assert.True(t, IsExhausted(rec, date(2024, time.January, 1)))
}

func TestIsExhausted_EndDateExactBoundary(t *testing.T) {
	end := date(2024, time.May, 1)
	rec := models.Recurring{
		IsRecurring:  true,
		EndCondition: models.EndCondition{Type: models.EndConditionEndDate, EndDate: &end},
	}
	assert.True(t, IsExhausted(rec, end))
	assert.False(t, IsExhausted(rec, end.Add(-time.Second)))
}

func TestIsExhausted_Never(t *testing.T) {
	rec := models.Recurring{
		IsRecurring:  true,
		CurrentCount: 1000,
		EndCondition: models.EndCondition{Type: models.EndConditionNever},
	}
	assert.False(t, IsExhausted(rec, date(2100, time.January, 1)))
}

func TestIsExhausted_UnknownEndConditionNeverGenerates(t *testing.T) {
	rec := models.Recurring{
		IsRecurring:  true,
		EndCondition: models.EndCondition{Type: "bogus"},
	}
	assert.True(t, IsExhausted(rec, time.Now()))
}

func TestIsDue(t *testing.T) {
	inv := &models.Invoice{
		IssueDate: date(2024, time.January, 15),
		Recurring: models.Recurring{
			IsRecurring:  true,
			Frequency:    models.Frequency{Type: models.FrequencyMonthly},
			CurrentCount: 1,
			EndCondition: models.EndCondition{Type: models.EndConditionInvoiceCount, Count: 12},
		},
	}

	assert.False(t, IsDue(inv, date(2024, time.February, 14)))
	assert.True(t, IsDue(inv, date(2024, time.February, 15)))
	assert.True(t, IsDue(inv, date(2024, time.March, 1)))
}

func TestIsDue_StoppedSeriesNeverDue(t *testing.T) {
	stopped := date(2024, time.February, 1)
	inv := &models.Invoice{
		IssueDate: date(2024, time.January, 1),
		Recurring: models.Recurring{
			IsRecurring:  true,
			StoppedAt:    &stopped,
			Frequency:    models.Frequency{Type: models.FrequencyWeekly},
			EndCondition: models.EndCondition{Type: models.EndConditionNever},
		},
	}
	assert.False(t, IsDue(inv, date(2024, time.March, 1)))
}

func TestIsDue_NonRecurring(t *testing.T) {
	inv := &models.Invoice{
		IssueDate: date(2024, time.January, 1),
		Recurring: models.Recurring{IsRecurring: false},
	}
	assert.False(t, IsDue(inv, date(2030, time.January, 1)))
}

func TestDueDateGapPreserved(t *testing.T) {
	inv := &models.Invoice{
		IssueDate: date(2024, time.January, 1),
		DueDate:   date(2024, time.January, 31),
	}
	assert.Equal(t, 30*24*time.Hour, DueDateGap(inv))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		rec     models.Recurring
		wantErr bool
	}{
		{
			name: "valid monthly with count",
			rec: models.Recurring{
				IsRecurring:  true,
				Frequency:    models.Frequency{Type: models.FrequencyMonthly},
				EndCondition: models.EndCondition{Type: models.EndConditionInvoiceCount, Count: 12},
			},
		},
		{
			name: "custom without days",
			rec: models.Recurring{
				IsRecurring:  true,
				Frequency:    models.Frequency{Type: models.FrequencyCustom},
				EndCondition: models.EndCondition{Type: models.EndConditionNever},
			},
			wantErr: true,
		},
		{
			name: "endDate without date",
			rec: models.Recurring{
				IsRecurring:  true,
				Frequency:    models.Frequency{Type: models.FrequencyWeekly},
				EndCondition: models.EndCondition{Type: models.EndConditionEndDate},
			},
			wantErr: true,
		},
		{
			name: "zero count",
			rec: models.Recurring{
				IsRecurring:  true,
				Frequency:    models.Frequency{Type: models.FrequencyWeekly},
				EndCondition: models.EndCondition{Type: models.EndConditionInvoiceCount},
			},
			wantErr: true,
		},
		{
			name: "non-recurring skips checks",
			rec:  models.Recurring{IsRecurring: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.rec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
