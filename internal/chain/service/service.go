// Package service mirrors approved verifications onto the registry contract
// and serves chain reads (status, fee suggestions).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	authmodels "verigate/internal/auth/models"
	"verigate/internal/chain/cache"
	"verigate/internal/chain/contract"
	"verigate/internal/platform/metrics"
	"verigate/internal/policy"
	"verigate/internal/verification/models"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/sentinel"
)

// RequestStore is the slice of the verification store the recorder needs.
type RequestStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	Update(ctx context.Context, req *models.Request) error
}

// UserDirectory resolves the wallet address of a request's owner.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*authmodels.User, error)
}

// Service is the blockchain recorder.
type Service struct {
	registry contract.Registry
	requests RequestStore
	users    UserDirectory
	statuses *cache.StatusCache
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Publisher
	tracer   trace.Tracer
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithStatusCache enables the Redis-backed status cache. A nil cache is
// accepted and leaves reads uncached.
func WithStatusCache(c *cache.StatusCache) Option {
	return func(s *Service) { s.statuses = c }
}

func New(registry contract.Registry, requests RequestStore, users UserDirectory, logger *slog.Logger, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry contract is required")
	}
	if requests == nil {
		return nil, fmt.Errorf("request store is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	svc := &Service{
		registry: registry,
		requests: requests,
		users:    users,
		logger:   logger,
		audit:    audit.Noop{},
		tracer:   otel.Tracer("verigate/chain"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TxResult reports a confirmed registry transaction.
type TxResult struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Record submits an approved verification to the registry contract. The
// transaction hash is persisted as soon as the transaction is accepted by
// the node, before confirmation, so a crash mid-wait never loses the hash.
// If confirmation fails the hash stays on the request and the error is
// surfaced for manual follow-up.
func (s *Service) Record(ctx context.Context, verificationID uuid.UUID, actor policy.Actor) (*TxResult, error) {
	if err := policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "chain.Record",
		trace.WithAttributes(attribute.String("verification.id", verificationID.String())))
	defer span.End()

	req, user, err := s.loadRequest(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusApproved || req.TxHash != "" {
		return nil, dErrors.New(dErrors.CodeInvalidState, "verification is not approved or already recorded on blockchain")
	}

	tx, err := s.registry.AddVerification(ctx, user.WalletAddress, req.DocumentHash, req.StorageID)
	if err != nil {
		s.countTx("record", "submit_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "failed to submit verification to blockchain")
	}
	span.SetAttributes(attribute.String("tx.hash", tx.Hash))

	req.TxHash = tx.Hash
	if err := s.requests.Update(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "transaction submitted but hash not persisted",
			"verification_id", req.ID, "tx_hash", tx.Hash, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist transaction hash")
	}

	blockNumber, err := tx.Wait(ctx)
	if err != nil {
		// The hash stays on the request; confirmation can be checked out of band.
		s.countTx("record", "confirm_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "blockchain confirmation failed")
	}

	s.statuses.Invalidate(ctx, user.WalletAddress)
	s.countTx("record", "confirmed")
	event := audit.NewEvent(audit.ActionVerificationRecord, actor.ID.String(), req.ID.String())
	s.audit.Publish(ctx, event)

	s.logger.InfoContext(ctx, "verification recorded on chain",
		"verification_id", req.ID, "tx_hash", tx.Hash, "block", blockNumber)
	return &TxResult{TxHash: tx.Hash, BlockNumber: blockNumber}, nil
}

// Revoke removes a recorded verification from the registry. The request is
// marked rejected as soon as the transaction is accepted, before
// confirmation. During the confirmation window the database shows rejected
// while the chain still shows verified; that window is accepted, since the
// database is the authority for application decisions.
func (s *Service) Revoke(ctx context.Context, verificationID uuid.UUID, reason string, actor policy.Actor) (*TxResult, error) {
	if err := policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "chain.Revoke",
		trace.WithAttributes(attribute.String("verification.id", verificationID.String())))
	defer span.End()

	req, user, err := s.loadRequest(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if req.TxHash == "" {
		return nil, dErrors.New(dErrors.CodeInvalidState, "verification is not recorded on blockchain")
	}

	tx, err := s.registry.RevokeVerification(ctx, user.WalletAddress)
	if err != nil {
		s.countTx("revoke", "submit_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "failed to submit revocation to blockchain")
	}
	span.SetAttributes(attribute.String("tx.hash", tx.Hash))

	if reason == "" {
		reason = "Verification revoked"
	}
	// Rejected requests never carry a transaction hash; the record hash is
	// cleared along with the status flip.
	req.Status = models.StatusRejected
	req.RejectionReason = reason
	req.TxHash = ""
	if err := s.requests.Update(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "revocation submitted but status not persisted",
			"verification_id", req.ID, "tx_hash", tx.Hash, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist revocation")
	}

	blockNumber, err := tx.Wait(ctx)
	if err != nil {
		s.countTx("revoke", "confirm_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "blockchain confirmation failed")
	}

	s.statuses.Invalidate(ctx, user.WalletAddress)
	s.countTx("revoke", "confirmed")
	event := audit.NewEvent(audit.ActionVerificationRevoked, actor.ID.String(), req.ID.String())
	event.Reason = reason
	s.audit.Publish(ctx, event)

	s.logger.InfoContext(ctx, "verification revoked on chain",
		"verification_id", req.ID, "tx_hash", tx.Hash, "block", blockNumber)
	return &TxResult{TxHash: tx.Hash, BlockNumber: blockNumber}, nil
}

// CheckStatus reads the wallet's verified flag from the registry, serving
// from the cache when possible.
func (s *Service) CheckStatus(ctx context.Context, walletAddress string) (bool, error) {
	if !contract.ValidAddress(walletAddress) {
		return false, dErrors.New(dErrors.CodeBadRequest, "invalid wallet address")
	}

	if verified, ok := s.statuses.Get(ctx, walletAddress); ok {
		return verified, nil
	}

	ctx, span := s.tracer.Start(ctx, "chain.CheckStatus")
	defer span.End()

	verified, err := s.registry.GetVerificationStatus(ctx, walletAddress)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeExternal, "failed to check verification status on blockchain")
	}
	s.statuses.Set(ctx, walletAddress, verified)
	return verified, nil
}

// GasPrice returns the node's current fee suggestions.
func (s *Service) GasPrice(ctx context.Context) (*contract.FeeData, error) {
	fees, err := s.registry.SuggestFees(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "failed to retrieve gas price")
	}
	return fees, nil
}

func (s *Service) loadRequest(ctx context.Context, id uuid.UUID) (*models.Request, *authmodels.User, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification request")
	}
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request owner")
	}
	return req, user, nil
}

func (s *Service) countTx(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.ChainTransactions.WithLabelValues(kind, outcome).Inc()
	}
}
