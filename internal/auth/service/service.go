// Package service implements the nonce-challenge authenticator: per-wallet
// nonce issuance, personal_sign verification, and session token issuance.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/google/uuid"

	"verigate/internal/auth/models"
	"verigate/internal/auth/store"
	"verigate/internal/jwttoken"
	"verigate/internal/platform/metrics"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/sentinel"
)

// ChallengeMessage is the canonical challenge string signed by the wallet.
// The embedded nonce is single-use: it rotates after every login attempt, so
// a captured signature can never be replayed.
const ChallengeMessage = "Sign this message to verify your identity. Nonce: %s"

// Service is the nonce-challenge authenticator.
type Service struct {
	users   store.UserStore
	tokens  *jwttoken.Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func New(users store.UserStore, tokens *jwttoken.Service, logger *slog.Logger, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	svc := &Service{
		users:  users,
		tokens: tokens,
		logger: logger,
		audit:  audit.Noop{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates a user for a wallet address that has not been seen before
// and returns a session token with the public projection.
func (s *Service) Register(ctx context.Context, walletAddress, email, username string) (*models.AuthResult, error) {
	if !models.ValidWalletAddress(walletAddress) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid wallet address")
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate nonce")
	}

	user := &models.User{
		ID:            uuid.New(),
		WalletAddress: walletAddress,
		Email:         email,
		Username:      username,
		Nonce:         nonce,
		Role:          models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "user with this wallet address already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	token, err := s.tokens.Generate(user.ID, user.WalletAddress, string(user.Role))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session token")
	}

	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}
	s.audit.Publish(ctx, audit.NewEvent(audit.ActionUserRegistered, user.ID.String(), user.WalletAddress))

	return &models.AuthResult{Token: token, User: user.Profile()}, nil
}

// IssueNonce returns the current login nonce for the wallet, creating the
// user on first contact and rotating the nonce on every subsequent call.
func (s *Service) IssueNonce(ctx context.Context, walletAddress string) (string, error) {
	if !models.ValidWalletAddress(walletAddress) {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid wallet address")
	}

	user, err := s.users.FindByWallet(ctx, walletAddress)
	switch {
	case err == nil:
		if err := s.rotateNonce(ctx, user); err != nil {
			return "", err
		}
		return user.Nonce, nil
	case errors.Is(err, sentinel.ErrNotFound):
		nonce, err := newNonce()
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate nonce")
		}
		user = &models.User{
			ID:            uuid.New(),
			WalletAddress: walletAddress,
			Nonce:         nonce,
			Role:          models.RoleUser,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		return user.Nonce, nil
	default:
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
}

// VerifySignature checks a personal_sign signature over the current nonce
// challenge. The nonce rotates whether or not verification succeeds, so each
// challenge is answerable at most once.
func (s *Service) VerifySignature(ctx context.Context, walletAddress, signature string) (*models.AuthResult, error) {
	if !models.ValidWalletAddress(walletAddress) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid wallet address")
	}

	user, err := s.users.FindByWallet(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	message := fmt.Sprintf(ChallengeMessage, user.Nonce)
	recovered, recoverErr := RecoverAddress(message, signature)

	// Burn the nonce before judging the outcome: a failed attempt must not
	// leave a signable challenge behind.
	if err := s.rotateNonce(ctx, user); err != nil {
		return nil, err
	}

	if recoverErr != nil || !equalAddress(recovered, walletAddress) {
		if s.metrics != nil {
			s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
		}
		s.audit.Publish(ctx, audit.NewEvent(audit.ActionLoginFailed, user.ID.String(), walletAddress))
		if recoverErr != nil {
			s.logger.WarnContext(ctx, "signature recovery failed",
				"wallet", walletAddress,
				"error", recoverErr,
			)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "signature verification failed")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid signature")
	}

	token, err := s.tokens.Generate(user.ID, user.WalletAddress, string(user.Role))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session token")
	}

	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	}
	s.audit.Publish(ctx, audit.NewEvent(audit.ActionLoginSucceeded, user.ID.String(), walletAddress))

	return &models.AuthResult{Token: token, User: user.Profile()}, nil
}

// Profile returns the public projection for the given user.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	profile := user.Profile()
	return &profile, nil
}

// UpdateProfile updates the mutable profile fields. The wallet address is
// immutable and cannot be changed here.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	if email != "" {
		user.Email = email
	}
	if username != "" {
		user.Username = username
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}

	profile := user.Profile()
	return &profile, nil
}

func (s *Service) rotateNonce(ctx context.Context, user *models.User) error {
	nonce, err := newNonce()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate nonce")
	}
	user.Nonce = nonce
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate nonce")
	}
	return nil
}

var nonceMax = big.NewInt(1_000_000)

// newNonce draws a random numeric nonce in [0, 1000000).
func newNonce() (string, error) {
	n, err := rand.Int(rand.Reader, nonceMax)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}
