package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "verigate/internal/auth/models"
	"verigate/internal/platform/middleware"
	"verigate/internal/policy"
	"verigate/internal/verification/models"
	"verigate/internal/verification/service"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
)

// Service defines the lifecycle operations the handler delegates to.
type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, in service.SubmitInput) (*models.Request, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Request, error)
	GetByID(ctx context.Context, id uuid.UUID, actor policy.Actor) (*models.Request, error)
	Review(ctx context.Context, id uuid.UUID, decision models.Status, rejectionReason string, actor policy.Actor) (*models.Request, error)
}

// Handler exposes the verification lifecycle endpoints under /api/users.
type Handler struct {
	verifications Service
	logger        *slog.Logger
	validator     middleware.JWTValidator
}

func New(verifications Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{verifications: verifications, validator: validator, logger: logger}
}

// Register mounts the verification routes on the given router. All routes
// require an authenticated session; the review route is additionally gated
// to admins by the service.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/request-verification", h.handleSubmit)
			r.Get("/verifications", h.handleList)
			r.Get("/verifications/{id}", h.handleGet)
			r.Put("/verifications/{id}/review", h.handleReview)
		})
	})
}

type submitRequest struct {
	DocumentType string         `json:"documentType"`
	DocumentHash string         `json:"documentHash"`
	StorageID    string         `json:"ipfsHash"`
	Metadata     map[string]any `json:"metadata"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.DocumentType == "" || req.DocumentHash == "" || req.StorageID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "document type, document hash, and IPFS hash are required"))
		return
	}

	verification, err := h.verifications.Submit(r.Context(), userID, service.SubmitInput{
		DocumentType: models.DocumentType(req.DocumentType),
		DocumentHash: req.DocumentHash,
		StorageID:    req.StorageID,
		Metadata:     req.Metadata,
	})
	if err != nil {
		h.logError(r, "verification submission failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "Verification request submitted successfully", map[string]any{"verification": verification})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	verifications, err := h.verifications.ListForUser(r.Context(), userID)
	if err != nil {
		h.logError(r, "verification listing failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Verifications retrieved successfully", map[string]any{"verifications": verifications})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification id"))
		return
	}

	verification, err := h.verifications.GetByID(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		h.logError(r, "verification retrieval failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Verification retrieved successfully", map[string]any{"verification": verification})
}

type reviewRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification id"))
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	verification, err := h.verifications.Review(r.Context(), id, models.Status(req.Status), req.RejectionReason, actorFrom(r.Context()))
	if err != nil {
		h.logError(r, "verification review failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, fmt.Sprintf("Verification %s", verification.Status), map[string]any{"verification": verification})
}

func actorFrom(ctx context.Context) policy.Actor {
	return policy.Actor{
		ID:   middleware.GetUserID(ctx),
		Role: authmodels.Role(middleware.GetRole(ctx)),
	}
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	log := h.logger.WarnContext
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeExternal {
		log = h.logger.ErrorContext
	}
	log(r.Context(), msg, "path", r.URL.Path, "error", err.Error())
}
