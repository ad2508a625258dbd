package services

import (
	"context"
	"testing"
	"time"

	"chainvoice/internal/common"
	"chainvoice/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

func newPaidRecurringInvoice(grandTotal float64, frequency models.Frequency, end models.EndCondition) *models.Invoice {
	invoice := newTestInvoice(grandTotal)
	invoice.Status = models.StatusPaid
	invoice.TotalAmountReceived = grandTotal
	invoice.RemainingAmount = 0
	invoice.Recurring = models.Recurring{
		IsRecurring:  true,
		Frequency:    frequency,
		EndCondition: end,
		CurrentCount: 1,
	}
	return invoice
}

type RecurringServiceTestSuite struct {
	suite.Suite
	mockInvoiceRepo *MockInvoiceRepository
	mockAuditRepo   *MockAuditLogsRepository
	service         RecurringService
}

func (suite *RecurringServiceTestSuite) SetupTest() {
	suite.mockInvoiceRepo = &MockInvoiceRepository{}
	suite.mockAuditRepo = &MockAuditLogsRepository{}
	suite.service = NewRecurringService(suite.mockInvoiceRepo, suite.mockAuditRepo, nil, nil)

	suite.mockInvoiceRepo.Test(suite.T())
	suite.mockAuditRepo.Test(suite.T())
}

func (suite *RecurringServiceTestSuite) TearDownTest() {
	suite.mockInvoiceRepo.AssertExpectations(suite.T())
	suite.mockAuditRepo.AssertExpectations(suite.T())
}

func TestRecurringServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RecurringServiceTestSuite))
}

func (suite *RecurringServiceTestSuite) TestGenerateNext_CreatesChild() {
	ctx := context.Background()
	parent := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})

	suite.mockInvoiceRepo.On("GetChildren", ctx, parent.ID).Return([]*models.Invoice{}, nil)
	suite.mockInvoiceRepo.On("NextInvoiceNumber", ctx, testCreator).Return(int64(2), nil)
	suite.mockInvoiceRepo.On("Create", ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.mockAuditRepo.On("Create", ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	child, err := suite.service.GenerateNext(ctx, parent)

	assert.NoError(suite.T(), err)
	assert.NotNil(suite.T(), child)
	assert.Equal(suite.T(), int64(2), child.InvoiceNumber)
	assert.Equal(suite.T(), &parent.ID, child.ParentInvoiceID)
	assert.Equal(suite.T(), 2, child.Recurring.CurrentCount)
	assert.Equal(suite.T(), models.StatusAwaitingPayment, child.Status)

	// Child ledger starts fresh
	assert.Equal(suite.T(), 0.0, child.TotalAmountReceived)
	assert.Equal(suite.T(), parent.GrandTotal, child.RemainingAmount)
	assert.Empty(suite.T(), child.PaymentRecords)

	// Issue date advances one month, due-date gap is preserved
	assert.Equal(suite.T(), parent.IssueDate.AddDate(0, 1, 0), child.IssueDate)
	assert.Equal(suite.T(), parent.DueDate.Sub(parent.IssueDate), child.DueDate.Sub(child.IssueDate))

	// Parent is never mutated by generation
	assert.Equal(suite.T(), 1, parent.Recurring.CurrentCount)
	assert.Nil(suite.T(), parent.ParentInvoiceID)
}

func (suite *RecurringServiceTestSuite) TestGenerateNext_RejectsNonRecurring() {
	ctx := context.Background()
	invoice := newTestInvoice(1000)
	invoice.Status = models.StatusPaid

	child, err := suite.service.GenerateNext(ctx, invoice)

	assert.Nil(suite.T(), child)
	assert.True(suite.T(), common.IsInvalidOperation(err))
}

func (suite *RecurringServiceTestSuite) TestGenerateNext_RejectsUnpaidParent() {
	ctx := context.Background()
	parent := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	parent.Status = models.StatusPartiallyPaid

	child, err := suite.service.GenerateNext(ctx, parent)

	assert.Nil(suite.T(), child)
	assert.True(suite.T(), common.IsInvalidOperation(err))
}

func (suite *RecurringServiceTestSuite) TestGenerateNext_NoOpWhenStopped() {
	ctx := context.Background()
	parent := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	stoppedAt := time.Now()
	parent.Recurring.StoppedAt = &stoppedAt

	child, err := suite.service.GenerateNext(ctx, parent)

	assert.Nil(suite.T(), child)
	assert.NoError(suite.T(), err)
}

func (suite *RecurringServiceTestSuite) TestGenerateNext_NoOpWhenCountExhausted() {
	ctx := context.Background()
	parent := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionInvoiceCount, Count: 3})
	parent.Recurring.CurrentCount = 3

	child, err := suite.service.GenerateNext(ctx, parent)

	assert.Nil(suite.T(), child)
	assert.NoError(suite.T(), err)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

func (suite *RecurringServiceTestSuite) TestGenerateNext_NoOpAfterEndDate() {
	ctx := context.Background()
	endDate := time.Now().AddDate(0, 0, -1)
	parent := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionEndDate, EndDate: &endDate})

	child, err := suite.service.GenerateNext(ctx, parent)

	assert.Nil(suite.T(), child)
	assert.NoError(suite.T(), err)
}

func (suite *RecurringServiceTestSuite) TestGenerateNext_CustomFrequency() {
	ctx := context.Background()
	parent := newPaidRecurringInvoice(500,
		models.Frequency{Type: models.FrequencyCustom, CustomDays: 10},
		models.EndCondition{Type: models.EndConditionNever})

	suite.mockInvoiceRepo.On("GetChildren", ctx, parent.ID).Return([]*models.Invoice{}, nil)
	suite.mockInvoiceRepo.On("NextInvoiceNumber", ctx, testCreator).Return(int64(2), nil)
	suite.mockInvoiceRepo.On("Create", ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.mockAuditRepo.On("Create", ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	child, err := suite.service.GenerateNext(ctx, parent)

	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), parent.IssueDate.AddDate(0, 0, 10), child.IssueDate)
}

func (suite *RecurringServiceTestSuite) TestGenerateDueRecurring_MixedOutcomes() {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Due: issued Jan 1, monthly, next occurrence Feb 1 < now
	due := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})

	// Not due: issued recently
	notDue := newPaidRecurringInvoice(500,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	notDue.IssueDate = time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	notDue.DueDate = notDue.IssueDate.AddDate(0, 0, 30)

	suite.mockInvoiceRepo.On("GetPaidRecurring", ctx, (*string)(nil)).Return([]*models.Invoice{due, notDue}, nil)
	suite.mockInvoiceRepo.On("GetChildren", ctx, due.ID).Return([]*models.Invoice{}, nil)
	suite.mockInvoiceRepo.On("NextInvoiceNumber", ctx, testCreator).Return(int64(2), nil)
	suite.mockInvoiceRepo.On("Create", ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.mockAuditRepo.On("Create", ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	outcomes, err := suite.service.GenerateDueRecurring(ctx, nil, now)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), outcomes, 2)
	assert.Equal(suite.T(), OutcomeGenerated, outcomes[0].Status)
	assert.NotNil(suite.T(), outcomes[0].NewInvoiceID)
	assert.Equal(suite.T(), OutcomeNotYetDue, outcomes[1].Status)
}

func (suite *RecurringServiceTestSuite) TestGenerateDueRecurring_FailureIsolation() {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	second := newPaidRecurringInvoice(2000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	second.CreatorWallet = testPayer

	suite.mockInvoiceRepo.On("GetPaidRecurring", ctx, (*string)(nil)).Return([]*models.Invoice{first, second}, nil)
	suite.mockInvoiceRepo.On("GetChildren", ctx, first.ID).Return([]*models.Invoice{}, nil)
	suite.mockInvoiceRepo.On("GetChildren", ctx, second.ID).Return([]*models.Invoice{}, nil)
	suite.mockInvoiceRepo.On("NextInvoiceNumber", ctx, testCreator).Return(int64(0), assert.AnError)
	suite.mockInvoiceRepo.On("NextInvoiceNumber", ctx, testPayer).Return(int64(5), nil)
	suite.mockInvoiceRepo.On("Create", ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.mockAuditRepo.On("Create", ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	outcomes, err := suite.service.GenerateDueRecurring(ctx, nil, now)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), outcomes, 2)
	assert.Equal(suite.T(), OutcomeFailed, outcomes[0].Status)
	assert.NotEmpty(suite.T(), outcomes[0].Reason)
	assert.Equal(suite.T(), OutcomeGenerated, outcomes[1].Status)
}

func (suite *RecurringServiceTestSuite) TestStopRecurring_SetsTerminalStop() {
	ctx := context.Background()
	invoice := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})

	suite.mockInvoiceRepo.On("GetByID", ctx, invoice.ID).Return(invoice, nil)
	suite.mockInvoiceRepo.On("Update", ctx, invoice).Return(nil)
	suite.mockAuditRepo.On("Create", ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	stopped, err := suite.service.StopRecurring(ctx, testCreator, invoice.ID)

	assert.NoError(suite.T(), err)
	assert.False(suite.T(), stopped.Recurring.IsRecurring)
	assert.NotNil(suite.T(), stopped.Recurring.StoppedAt)

	// Generation after stopping is a silent no-op
	child, err := suite.service.GenerateNext(ctx, stopped)
	assert.Nil(suite.T(), child)
	assert.True(suite.T(), common.IsInvalidOperation(err)) // IsRecurring flipped off
}

func (suite *RecurringServiceTestSuite) TestStopRecurring_RejectsDoubleStop() {
	ctx := context.Background()
	invoice := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	stoppedAt := time.Now()
	invoice.Recurring.StoppedAt = &stoppedAt

	suite.mockInvoiceRepo.On("GetByID", ctx, invoice.ID).Return(invoice, nil)

	stopped, err := suite.service.StopRecurring(ctx, testCreator, invoice.ID)

	assert.Nil(suite.T(), stopped)
	assert.True(suite.T(), common.IsInvalidOperation(err))
}

func (suite *RecurringServiceTestSuite) TestStopRecurring_WrongOwner() {
	ctx := context.Background()
	invoice := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})

	suite.mockInvoiceRepo.On("GetByID", ctx, invoice.ID).Return(invoice, nil)

	stopped, err := suite.service.StopRecurring(ctx, testPayer, invoice.ID)

	assert.Nil(suite.T(), stopped)
	assert.True(suite.T(), common.IsNotFound(err))
}

func (suite *RecurringServiceTestSuite) TestStopRecurring_RejectsNonRecurring() {
	ctx := context.Background()
	invoice := newTestInvoice(1000)

	suite.mockInvoiceRepo.On("GetByID", ctx, invoice.ID).Return(invoice, nil)

	stopped, err := suite.service.StopRecurring(ctx, testCreator, invoice.ID)

	assert.Nil(suite.T(), stopped)
	assert.True(suite.T(), common.IsInvalidOperation(err))
}

// Chain [root, c1, c2] resolved from the middle node
func (suite *RecurringServiceTestSuite) TestResolveChain_FromMiddleNode() {
	ctx := context.Background()

	root := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	c1 := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	c1.ParentInvoiceID = &root.ID
	c2 := newTestInvoice(1000)
	c2.ParentInvoiceID = &c1.ID

	suite.mockInvoiceRepo.On("GetByID", ctx, c1.ID).Return(c1, nil)
	suite.mockInvoiceRepo.On("GetByID", ctx, root.ID).Return(root, nil)
	suite.mockInvoiceRepo.On("GetChildren", ctx, root.ID).Return([]*models.Invoice{c1}, nil)
	suite.mockInvoiceRepo.On("GetChildren", ctx, c1.ID).Return([]*models.Invoice{c2}, nil)
	suite.mockInvoiceRepo.On("GetChildren", ctx, c2.ID).Return([]*models.Invoice{}, nil)

	chain, err := suite.service.ResolveChain(ctx, c1.ID)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), chain, 3)
	assert.Equal(suite.T(), root.ID, chain[0].ID)
	assert.Equal(suite.T(), c1.ID, chain[1].ID)
	assert.Equal(suite.T(), c2.ID, chain[2].ID)
}

func (suite *RecurringServiceTestSuite) TestResolveChain_DeletedParentMakesEffectiveRoot() {
	ctx := context.Background()

	deletedParentID := uuid.New()
	orphan := newTestInvoice(1000)
	orphan.ParentInvoiceID = &deletedParentID

	suite.mockInvoiceRepo.On("GetByID", ctx, orphan.ID).Return(orphan, nil)
	suite.mockInvoiceRepo.On("GetByID", ctx, deletedParentID).Return(nil, common.NewNotFoundError("invoice"))
	suite.mockInvoiceRepo.On("GetChildren", ctx, orphan.ID).Return([]*models.Invoice{}, nil)

	chain, err := suite.service.ResolveChain(ctx, orphan.ID)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), chain, 1)
	assert.Equal(suite.T(), orphan.ID, chain[0].ID)
}

func (suite *RecurringServiceTestSuite) TestResolveChain_SingleInvoice() {
	ctx := context.Background()
	invoice := newTestInvoice(1000)

	suite.mockInvoiceRepo.On("GetByID", ctx, invoice.ID).Return(invoice, nil)
	suite.mockInvoiceRepo.On("GetChildren", ctx, invoice.ID).Return([]*models.Invoice{}, nil)

	chain, err := suite.service.ResolveChain(ctx, invoice.ID)

	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), chain, 1)
}

// A parent that already has a child must never generate a second one, no
// matter how often it is re-submitted (sweep retries, bank verification
// after an optimistic settle).
func (suite *RecurringServiceTestSuite) TestGenerateNext_NoOpWhenChildExists() {
	ctx := context.Background()
	parent := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	existingChild := newTestInvoice(1000)
	existingChild.ParentInvoiceID = &parent.ID

	suite.mockInvoiceRepo.On("GetChildren", ctx, parent.ID).Return([]*models.Invoice{existingChild}, nil)

	child, err := suite.service.GenerateNext(ctx, parent)

	assert.Nil(suite.T(), child)
	assert.NoError(suite.T(), err)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "NextInvoiceNumber", mock.Anything, mock.Anything)
	suite.mockInvoiceRepo.AssertNotCalled(suite.T(), "Create", mock.Anything, mock.Anything)
}

// Two consecutive sweeps over the same series produce exactly one child:
// the first generates it, the second no longer sees the parent as a
// candidate (the repository excludes parents with children).
func (suite *RecurringServiceTestSuite) TestGenerateDueRecurring_SecondSweepGeneratesNothing() {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	parent := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})

	suite.mockInvoiceRepo.On("GetPaidRecurring", ctx, (*string)(nil)).Return([]*models.Invoice{parent}, nil).Once()
	suite.mockInvoiceRepo.On("GetChildren", ctx, parent.ID).Return([]*models.Invoice{}, nil).Once()
	suite.mockInvoiceRepo.On("NextInvoiceNumber", ctx, testCreator).Return(int64(2), nil)
	suite.mockInvoiceRepo.On("Create", ctx, mock.AnythingOfType("*models.Invoice")).Return(nil)
	suite.mockAuditRepo.On("Create", ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)

	first, err := suite.service.GenerateDueRecurring(ctx, nil, now)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), first, 1)
	assert.Equal(suite.T(), OutcomeGenerated, first[0].Status)

	suite.mockInvoiceRepo.On("GetPaidRecurring", ctx, (*string)(nil)).Return([]*models.Invoice{}, nil).Once()

	second, err := suite.service.GenerateDueRecurring(ctx, nil, now)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), second)

	suite.mockInvoiceRepo.AssertNumberOfCalls(suite.T(), "Create", 1)
}

// Chain cache entries are keyed by the true root; invalidation from a deep
// node must walk all the way up before deleting.
func (suite *RecurringServiceTestSuite) TestStopRecurring_InvalidatesRootChainCache() {
	ctx := context.Background()

	root := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	mid := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	mid.ParentInvoiceID = &root.ID
	leaf := newPaidRecurringInvoice(1000,
		models.Frequency{Type: models.FrequencyMonthly},
		models.EndCondition{Type: models.EndConditionNever})
	leaf.ParentInvoiceID = &mid.ID

	mockCache := &MockCacheService{}
	mockCache.Test(suite.T())
	service := NewRecurringService(suite.mockInvoiceRepo, suite.mockAuditRepo, mockCache, nil)

	suite.mockInvoiceRepo.On("GetByID", ctx, leaf.ID).Return(leaf, nil)
	suite.mockInvoiceRepo.On("GetByID", ctx, mid.ID).Return(mid, nil)
	suite.mockInvoiceRepo.On("GetByID", ctx, root.ID).Return(root, nil)
	suite.mockInvoiceRepo.On("Update", ctx, leaf).Return(nil)
	suite.mockAuditRepo.On("Create", ctx, mock.AnythingOfType("*models.AuditLog")).Return(nil)
	mockCache.On("DeleteChain", ctx, root.ID).Return(nil)
	mockCache.On("DeleteInvoice", ctx, leaf.ID).Return(nil)

	_, err := service.StopRecurring(ctx, testCreator, leaf.ID)

	assert.NoError(suite.T(), err)
	mockCache.AssertExpectations(suite.T())
	mockCache.AssertNotCalled(suite.T(), "DeleteChain", ctx, mid.ID)
}
