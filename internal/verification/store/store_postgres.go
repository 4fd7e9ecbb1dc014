package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"verigate/internal/verification/models"
	"verigate/pkg/platform/sentinel"
)

// PostgresRequestStore persists verification requests in PostgreSQL.
// The one-pending-request-per-user invariant is backed by a partial unique
// index on (user_id) WHERE status = 'pending'.
type PostgresRequestStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresRequestStore {
	return &PostgresRequestStore{pool: pool}
}

const requestColumns = `
	id, user_id, document_type, document_hash, storage_id, status,
	COALESCE(rejection_reason, ''), COALESCE(tx_hash, ''), metadata,
	expires_at, created_at, updated_at`

func (s *PostgresRequestStore) Create(ctx context.Context, req *models.Request) error {
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
		INSERT INTO verification_requests
			(id, user_id, document_type, document_hash, storage_id, status, metadata, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err = s.pool.QueryRow(ctx, query,
		req.ID, req.UserID, req.DocumentType, req.DocumentHash,
		req.StorageID, req.Status, metadata, req.ExpiresAt,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create verification request: %w", err)
	}
	return nil
}

func (s *PostgresRequestStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresRequestStore) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*models.Request, error) {
	return s.findOne(ctx, `WHERE user_id = $1 AND status = 'pending'`, userID)
}

func (s *PostgresRequestStore) FindByStorageID(ctx context.Context, storageID string) (*models.Request, error) {
	return s.findOne(ctx, `WHERE storage_id = $1`, storageID)
}

func (s *PostgresRequestStore) findOne(ctx context.Context, where string, arg any) (*models.Request, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM verification_requests `+where, arg)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return req, nil
}

func (s *PostgresRequestStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Request, error) {
	query := `SELECT ` + requestColumns + `
		FROM verification_requests
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list verification requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresRequestStore) Update(ctx context.Context, req *models.Request) error {
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query := `
		UPDATE verification_requests
		SET status = $2, rejection_reason = NULLIF($3, ''), tx_hash = NULLIF($4, ''),
		    metadata = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err = s.pool.QueryRow(ctx, query,
		req.ID, req.Status, req.RejectionReason, req.TxHash, metadata,
	).Scan(&req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("update verification request: %w", err)
	}
	return nil
}

func scanRequest(row pgx.Row) (*models.Request, error) {
	var req models.Request
	var metadata []byte
	err := row.Scan(
		&req.ID, &req.UserID, &req.DocumentType, &req.DocumentHash,
		&req.StorageID, &req.Status, &req.RejectionReason, &req.TxHash,
		&metadata, &req.ExpiresAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &req.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &req, nil
}
