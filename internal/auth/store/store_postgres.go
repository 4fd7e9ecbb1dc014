package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"verigate/internal/auth/models"
	"verigate/pkg/platform/sentinel"
)

// PostgresUserStore persists users in PostgreSQL. See migrations/ for the
// schema.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

const uniqueViolation = "23505"

func (s *PostgresUserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, wallet_address, email, username, password_hash, nonce, verified, role)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		user.ID, user.WalletAddress, user.Email, user.Username,
		user.PasswordHash, user.Nonce, user.Verified, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresUserStore) FindByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	return s.findOne(ctx, `WHERE lower(wallet_address) = lower($1)`, walletAddress)
}

func (s *PostgresUserStore) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `
		SELECT id, wallet_address, COALESCE(email, ''), COALESCE(username, ''),
		       COALESCE(password_hash, ''), nonce, verified, role, created_at, updated_at
		FROM users ` + where

	var user models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.WalletAddress, &user.Email, &user.Username,
		&user.PasswordHash, &user.Nonce, &user.Verified, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = NULLIF($2, ''), username = NULLIF($3, ''),
		    password_hash = NULLIF($4, ''), nonce = $5, verified = $6, role = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.Nonce, user.Verified, user.Role,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET verified = $2, updated_at = now() WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
