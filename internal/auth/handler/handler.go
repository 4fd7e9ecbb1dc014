package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"verigate/internal/auth/models"
	"verigate/internal/platform/middleware"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
)

// Service defines the authenticator operations the handler delegates to.
type Service interface {
	Register(ctx context.Context, walletAddress, email, username string) (*models.AuthResult, error)
	IssueNonce(ctx context.Context, walletAddress string) (string, error)
	VerifySignature(ctx context.Context, walletAddress, signature string) (*models.AuthResult, error)
	Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, email, username string) (*models.Profile, error)
}

// Handler exposes the authentication endpoints under /api/users.
type Handler struct {
	auth      Service
	logger    *slog.Logger
	validator middleware.JWTValidator
}

func New(auth Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, validator: validator, logger: logger}
}

// Register mounts the auth routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/nonce", h.handleNonce)
		r.Post("/verify-signature", h.handleVerifySignature)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Get("/profile", h.handleGetProfile)
			r.Put("/profile", h.handleUpdateProfile)
		})
	})
}

type registerRequest struct {
	WalletAddress string `json:"walletAddress"`
	Email         string `json:"email"`
	Username      string `json:"username"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.WalletAddress == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "wallet address is required"))
		return
	}

	result, err := h.auth.Register(r.Context(), req.WalletAddress, req.Email, req.Username)
	if err != nil {
		h.logError(r, "registration failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, "User registered successfully", result)
}

type nonceRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func (h *Handler) handleNonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.WalletAddress == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "wallet address is required"))
		return
	}

	nonce, err := h.auth.IssueNonce(r.Context(), req.WalletAddress)
	if err != nil {
		h.logError(r, "nonce issuance failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Nonce generated", map[string]string{"nonce": nonce})
}

type verifySignatureRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
}

func (h *Handler) handleVerifySignature(w http.ResponseWriter, r *http.Request) {
	var req verifySignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.WalletAddress == "" || req.Signature == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "wallet address and signature are required"))
		return
	}

	result, err := h.auth.VerifySignature(r.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		h.logError(r, "signature verification failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Authentication successful", result)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	profile, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		h.logError(r, "profile retrieval failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "User profile retrieved successfully", map[string]any{"user": profile})
}

type updateProfileRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	profile, err := h.auth.UpdateProfile(r.Context(), userID, req.Email, req.Username)
	if err != nil {
		h.logError(r, "profile update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "User profile updated successfully", map[string]any{"user": profile})
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	log := h.logger.WarnContext
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.CodeOf(err) == dErrors.CodeExternal {
		log = h.logger.ErrorContext
	}
	log(r.Context(), msg, "path", r.URL.Path, "error", err.Error())
}
