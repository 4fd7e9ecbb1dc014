// Package service implements the verification lifecycle: submission, listing,
// and admin review with the pending → approved/rejected state machine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"verigate/internal/platform/metrics"
	"verigate/internal/policy"
	"verigate/internal/verification/models"
	"verigate/internal/verification/store"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/sentinel"
)

// UserVerifier flips the owning user's verified flag on approval. The
// credential store remains the sole writer of user records.
type UserVerifier interface {
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
}

// Service is the verification lifecycle manager.
type Service struct {
	requests store.RequestStore
	users    UserVerifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    audit.Publisher
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithClock overrides the time source for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(requests store.RequestStore, users UserVerifier, logger *slog.Logger, opts ...Option) (*Service, error) {
	if requests == nil {
		return nil, fmt.Errorf("request store is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user verifier is required")
	}
	svc := &Service{
		requests: requests,
		users:    users,
		logger:   logger,
		audit:    audit.Noop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SubmitInput carries a new document submission.
type SubmitInput struct {
	DocumentType models.DocumentType
	DocumentHash string
	StorageID    string
	Metadata     map[string]any
}

// Submit creates a pending verification request. A user may hold at most one
// pending request at a time.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (*models.Request, error) {
	if !models.ValidDocumentType(in.DocumentType) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid document type")
	}
	if in.DocumentHash == "" || in.StorageID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document hash and storage id are required")
	}

	_, err := s.requests.FindPendingByUser(ctx, userID)
	switch {
	case err == nil:
		return nil, dErrors.New(dErrors.CodeConflict, "you already have a pending verification request")
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check pending requests")
	}

	req := &models.Request{
		ID:           uuid.New(),
		UserID:       userID,
		DocumentType: in.DocumentType,
		DocumentHash: in.DocumentHash,
		StorageID:    in.StorageID,
		Status:       models.StatusPending,
		Metadata:     in.Metadata,
		ExpiresAt:    s.now().Add(models.RetentionWindow),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification request")
	}

	if s.metrics != nil {
		s.metrics.VerificationsSubmitted.Inc()
	}
	return req, nil
}

// ListForUser returns all of the user's requests, most recent first. Expired
// requests are included; expiry is advisory on listing.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Request, error) {
	requests, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification requests")
	}
	return requests, nil
}

// GetByID returns a single request, gated to its owner or an admin.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID, actor policy.Actor) (*models.Request, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification request")
	}
	if !policy.CanAccessResource(actor, req.UserID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "you do not have permission to view this verification")
	}
	return req, nil
}

// Review applies an admin decision to a pending request. Approval flips the
// owning user's verified flag; re-reviewing a terminal request fails, as
// does approving one whose retention window has lapsed.
func (s *Service) Review(ctx context.Context, id uuid.UUID, decision models.Status, rejectionReason string, actor policy.Actor) (*models.Request, error) {
	if err := policy.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if decision != models.StatusApproved && decision != models.StatusRejected {
		return nil, dErrors.New(dErrors.CodeBadRequest, `decision must be either "approved" or "rejected"`)
	}

	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification request")
	}
	if req.Terminal() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "verification has already been reviewed")
	}
	if decision == models.StatusApproved && req.Expired(s.now()) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "verification request has expired")
	}

	req.Status = decision
	if decision == models.StatusRejected && rejectionReason != "" {
		req.RejectionReason = rejectionReason
	}
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification request")
	}

	if decision == models.StatusApproved {
		if err := s.users.SetVerified(ctx, req.UserID, true); err != nil {
			// The request is already approved; surface the partial failure.
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark user verified")
		}
	}

	if s.metrics != nil {
		s.metrics.VerificationsReviewed.WithLabelValues(string(decision)).Inc()
	}
	event := audit.NewEvent(audit.ActionVerificationReview, actor.ID.String(), req.ID.String())
	event.Decision = string(decision)
	event.Reason = rejectionReason
	s.audit.Publish(ctx, event)

	return req, nil
}
