package background

import (
	"context"
	"log"
	"sync"
	"time"

	"chainvoice/internal/repositories"
	"chainvoice/internal/services"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler manages background jobs for the invoicing engine
type JobScheduler struct {
	scheduler        gocron.Scheduler
	recurringService services.RecurringService
	ledgerService    services.LedgerService
	invoiceRepo      repositories.InvoiceRepository
	jobJobs          map[string]gocron.Job
	mu               sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(recurringService services.RecurringService, ledgerService services.LedgerService,
	invoiceRepo repositories.InvoiceRepository) *JobScheduler {

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	js := &JobScheduler{
		scheduler:        scheduler,
		recurringService: recurringService,
		ledgerService:    ledgerService,
		invoiceRepo:      invoiceRepo,
		jobJobs:          make(map[string]gocron.Job),
	}

	js.registerJobs()

	return js
}

// Start starts the job scheduler
func (js *JobScheduler) Start() error {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
	return nil
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// registerJobs registers all background jobs
func (js *JobScheduler) registerJobs() {
	// Recurring invoice generation sweep - every hour. Singleton mode so a
	// slow sweep never overlaps with the next one.
	recurringJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.generateDueRecurringInvoices, context.Background()),
		gocron.WithName("recurring-invoice-generation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create recurring generation job: %v", err)
	} else {
		js.jobJobs["recurring-generation"] = recurringJob
	}

	// Overdue marking sweep - every 30 minutes
	overdueJob, err := js.scheduler.NewJob(
		gocron.DurationJob(30*time.Minute),
		gocron.NewTask(js.markOverdueInvoices, context.Background()),
		gocron.WithName("overdue-marking"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create overdue marking job: %v", err)
	} else {
		js.jobJobs["overdue-marking"] = overdueJob
	}

	log.Printf("Registered %d background jobs", len(js.jobJobs))
}

// generateDueRecurringInvoices runs the global generation sweep
func (js *JobScheduler) generateDueRecurringInvoices(ctx context.Context) error {
	log.Printf("Starting recurring invoice generation sweep")

	outcomes, err := js.recurringService.GenerateDueRecurring(ctx, nil, time.Now())
	if err != nil {
		log.Printf("Recurring generation sweep failed: %v", err)
		return err
	}

	generated, failed := 0, 0
	for _, outcome := range outcomes {
		switch outcome.Status {
		case services.OutcomeGenerated:
			generated++
		case services.OutcomeFailed:
			failed++
			log.Printf("Generation failed for invoice %s: %s", outcome.InvoiceID, outcome.Reason)
		}
	}

	log.Printf("Completed recurring generation sweep: %d candidates, %d generated, %d failed",
		len(outcomes), generated, failed)
	return nil
}

// markOverdueInvoices flips unsettled invoices past their due date to Overdue
func (js *JobScheduler) markOverdueInvoices(ctx context.Context) error {
	log.Printf("Starting overdue marking sweep")

	now := time.Now()
	marked := 0

	offset := 0
	const pageSize = 500
	for {
		invoices, err := js.invoiceRepo.ListDueUnsettled(ctx, now, pageSize, offset)
		if err != nil {
			log.Printf("Failed to list due invoices for overdue sweep: %v", err)
			break
		}
		for _, invoice := range invoices {
			statusBefore := invoice.Status
			if err := js.ledgerService.RefreshOverdueStatus(ctx, invoice, now); err != nil {
				log.Printf("Failed to refresh overdue status for invoice %s: %v", invoice.ID, err)
				continue
			}
			if statusBefore != invoice.Status {
				marked++
			}
		}
		if len(invoices) < pageSize {
			break
		}
		offset += pageSize
	}

	log.Printf("Completed overdue marking sweep: %d invoices marked", marked)
	return nil
}

// AddJob adds a custom job to the scheduler
func (js *JobScheduler) AddJob(name string, interval time.Duration, taskFn interface{}, params ...interface{}) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(taskFn, params...),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}

	js.jobJobs[name] = job
	log.Printf("Added custom job: %s", name)
	return nil
}

// RemoveJob removes a job from the scheduler
func (js *JobScheduler) RemoveJob(name string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job, exists := js.jobJobs[name]; exists {
		err := js.scheduler.RemoveJob(job.ID())
		delete(js.jobJobs, name)
		return err
	}

	return nil
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	status := make(map[string]interface{})
	status["total_jobs"] = len(js.jobJobs)
	jobs := make([]string, 0, len(js.jobJobs))

	for name := range js.jobJobs {
		jobs = append(jobs, name)
	}

	status["jobs"] = jobs

	return status
}
