package repositories

import (
	"context"
	"errors"

	"chainvoice/internal/common"
	"chainvoice/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type WorkerRepository interface {
	Create(ctx context.Context, worker *models.Worker) error
	GetByID(ctx context.Context, ownerWallet string, id uuid.UUID) (*models.Worker, error)
	GetByWallet(ctx context.Context, ownerWallet, walletAddress string) (*models.Worker, error)
	List(ctx context.Context, ownerWallet string, activeOnly bool, limit, offset int) ([]*models.Worker, error)
	Update(ctx context.Context, worker *models.Worker) error
	Delete(ctx context.Context, ownerWallet string, id uuid.UUID) error
}

type workerRepo struct {
	db Database
}

func NewWorkerRepository(db Database) WorkerRepository {
	return &workerRepo{db: db}
}

func (r *workerRepo) Create(ctx context.Context, worker *models.Worker) error {
	query := `
		INSERT INTO workers (id, owner_wallet, full_name, wallet_address, email, label, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, worker.ID, worker.OwnerWallet, worker.FullName, worker.WalletAddress, worker.Email, worker.Label, worker.IsActive)
	return err
}

func (r *workerRepo) GetByID(ctx context.Context, ownerWallet string, id uuid.UUID) (*models.Worker, error) {
	query := `
		SELECT id, owner_wallet, full_name, wallet_address, email, label, is_active, created_at, updated_at
		FROM workers
		WHERE owner_wallet = $1 AND id = $2
	`
	worker := &models.Worker{}
	err := r.db.QueryRow(ctx, query, ownerWallet, id).Scan(
		&worker.ID, &worker.OwnerWallet, &worker.FullName, &worker.WalletAddress,
		&worker.Email, &worker.Label, &worker.IsActive, &worker.CreatedAt, &worker.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("worker")
	}
	if err != nil {
		return nil, err
	}
	return worker, nil
}

func (r *workerRepo) GetByWallet(ctx context.Context, ownerWallet, walletAddress string) (*models.Worker, error) {
	query := `
		SELECT id, owner_wallet, full_name, wallet_address, email, label, is_active, created_at, updated_at
		FROM workers
		WHERE owner_wallet = $1 AND wallet_address = $2
	`
	worker := &models.Worker{}
	err := r.db.QueryRow(ctx, query, ownerWallet, walletAddress).Scan(
		&worker.ID, &worker.OwnerWallet, &worker.FullName, &worker.WalletAddress,
		&worker.Email, &worker.Label, &worker.IsActive, &worker.CreatedAt, &worker.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("worker")
	}
	if err != nil {
		return nil, err
	}
	return worker, nil
}

func (r *workerRepo) List(ctx context.Context, ownerWallet string, activeOnly bool, limit, offset int) ([]*models.Worker, error) {
	query := `
		SELECT id, owner_wallet, full_name, wallet_address, email, label, is_active, created_at, updated_at
		FROM workers
		WHERE owner_wallet = $1 AND ($2 = false OR is_active = true)
		ORDER BY full_name ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, ownerWallet, activeOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		worker := &models.Worker{}
		if err := rows.Scan(
			&worker.ID, &worker.OwnerWallet, &worker.FullName, &worker.WalletAddress,
			&worker.Email, &worker.Label, &worker.IsActive, &worker.CreatedAt, &worker.UpdatedAt,
		); err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}
	return workers, rows.Err()
}

func (r *workerRepo) Update(ctx context.Context, worker *models.Worker) error {
	query := `
		UPDATE workers
		SET full_name = $1, wallet_address = $2, email = $3, label = $4, is_active = $5, updated_at = NOW()
		WHERE owner_wallet = $6 AND id = $7
	`
	tag, err := r.db.Exec(ctx, query, worker.FullName, worker.WalletAddress, worker.Email, worker.Label, worker.IsActive, worker.OwnerWallet, worker.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("worker")
	}
	return nil
}

func (r *workerRepo) Delete(ctx context.Context, ownerWallet string, id uuid.UUID) error {
	query := `DELETE FROM workers WHERE owner_wallet = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, ownerWallet, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("worker")
	}
	return nil
}
