package services

import (
	"context"

	"chainvoice/internal/common"
	"chainvoice/internal/models"
	"chainvoice/internal/repositories"

	"github.com/google/uuid"
)

// WorkerService manages the saved payee contact book used to prefill
// payroll-style invoices.
type WorkerService interface {
	CreateWorker(ctx context.Context, worker *models.Worker) error
	GetWorker(ctx context.Context, ownerWallet string, workerID uuid.UUID) (*models.Worker, error)
	ListWorkers(ctx context.Context, ownerWallet string, activeOnly bool, limit, offset int) ([]*models.Worker, error)
	UpdateWorker(ctx context.Context, worker *models.Worker) error
	DeactivateWorker(ctx context.Context, ownerWallet string, workerID uuid.UUID) error
	DeleteWorker(ctx context.Context, ownerWallet string, workerID uuid.UUID) error
}

type workerService struct {
	workerRepo repositories.WorkerRepository
}

func NewWorkerService(workerRepo repositories.WorkerRepository) WorkerService {
	return &workerService{workerRepo: workerRepo}
}

func validateWorkerInput(worker *models.Worker) error {
	if err := common.ValidateWalletAddress(worker.OwnerWallet, "owner_wallet"); err != nil {
		return common.NewValidationError("owner_wallet", err.Error())
	}
	if err := common.ValidateRequiredString(worker.FullName, "full_name"); err != nil {
		return common.NewValidationError("full_name", err.Error())
	}
	if err := common.ValidateWalletAddress(worker.WalletAddress, "wallet_address"); err != nil {
		return common.NewValidationError("wallet_address", err.Error())
	}
	if err := common.ValidateRequiredString(worker.Email, "email"); err != nil {
		return common.NewValidationError("email", err.Error())
	}
	return nil
}

func (s *workerService) CreateWorker(ctx context.Context, worker *models.Worker) error {
	if err := validateWorkerInput(worker); err != nil {
		return err
	}

	// One contact per wallet address per owner
	existing, err := s.workerRepo.GetByWallet(ctx, worker.OwnerWallet, worker.WalletAddress)
	if err != nil && !common.IsNotFound(err) {
		return common.SecureErrorMessage("check worker wallet uniqueness", err)
	}
	if existing != nil {
		return common.NewConflictError("worker", "a contact with this wallet address already exists")
	}

	if worker.ID == uuid.Nil {
		worker.ID = uuid.New()
	}
	worker.IsActive = true

	if err := s.workerRepo.Create(ctx, worker); err != nil {
		return common.SecureErrorMessage("create worker", err)
	}
	return nil
}

func (s *workerService) GetWorker(ctx context.Context, ownerWallet string, workerID uuid.UUID) (*models.Worker, error) {
	return s.workerRepo.GetByID(ctx, ownerWallet, workerID)
}

func (s *workerService) ListWorkers(ctx context.Context, ownerWallet string, activeOnly bool, limit, offset int) ([]*models.Worker, error) {
	workers, err := s.workerRepo.List(ctx, ownerWallet, activeOnly, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list workers", err)
	}
	return workers, nil
}

func (s *workerService) UpdateWorker(ctx context.Context, worker *models.Worker) error {
	if err := validateWorkerInput(worker); err != nil {
		return err
	}

	existing, err := s.workerRepo.GetByWallet(ctx, worker.OwnerWallet, worker.WalletAddress)
	if err != nil && !common.IsNotFound(err) {
		return common.SecureErrorMessage("check worker wallet uniqueness", err)
	}
	if existing != nil && existing.ID != worker.ID {
		return common.NewConflictError("worker", "a contact with this wallet address already exists")
	}

	return s.workerRepo.Update(ctx, worker)
}

func (s *workerService) DeactivateWorker(ctx context.Context, ownerWallet string, workerID uuid.UUID) error {
	worker, err := s.workerRepo.GetByID(ctx, ownerWallet, workerID)
	if err != nil {
		return err
	}
	if !worker.IsActive {
		return common.NewInvalidOperationError("deactivate worker", "contact is already inactive")
	}
	worker.IsActive = false
	return s.workerRepo.Update(ctx, worker)
}

func (s *workerService) DeleteWorker(ctx context.Context, ownerWallet string, workerID uuid.UUID) error {
	return s.workerRepo.Delete(ctx, ownerWallet, workerID)
}
