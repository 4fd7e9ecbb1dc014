package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "verigate/internal/auth/models"
	"verigate/internal/chain/contract"
	"verigate/internal/chain/service"
	"verigate/internal/platform/middleware"
	"verigate/internal/policy"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
)

// Service defines the recorder operations the handler delegates to.
type Service interface {
	Record(ctx context.Context, verificationID uuid.UUID, actor policy.Actor) (*service.TxResult, error)
	Revoke(ctx context.Context, verificationID uuid.UUID, reason string, actor policy.Actor) (*service.TxResult, error)
	CheckStatus(ctx context.Context, walletAddress string) (bool, error)
	GasPrice(ctx context.Context) (*contract.FeeData, error)
}

// Handler exposes the blockchain endpoints under /api/blockchain. Status and
// gas price are public; record and revoke require an admin session.
type Handler struct {
	chain     Service
	logger    *slog.Logger
	validator middleware.JWTValidator
}

func New(chain Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{chain: chain, validator: validator, logger: logger}
}

// Register mounts the blockchain routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/blockchain", func(r chi.Router) {
		r.Get("/status/{walletAddress}", h.handleStatus)
		r.Get("/gas-price", h.handleGasPrice)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/record/{verificationId}", h.handleRecord)
			r.Post("/revoke/{verificationId}", h.handleRevoke)
		})
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	walletAddress := chi.URLParam(r, "walletAddress")

	verified, err := h.chain.CheckStatus(r.Context(), walletAddress)
	if err != nil {
		h.logError(r, "status check failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Verification status retrieved", map[string]any{
		"walletAddress": walletAddress,
		"isVerified":    verified,
	})
}

func (h *Handler) handleGasPrice(w http.ResponseWriter, r *http.Request) {
	fees, err := h.chain.GasPrice(r.Context())
	if err != nil {
		h.logError(r, "gas price retrieval failed", err)
		httputil.WriteError(w, err)
		return
	}

	data := map[string]any{"gasPrice": fees.GasPrice.String()}
	if fees.MaxFeePerGas != nil {
		data["maxFeePerGas"] = fees.MaxFeePerGas.String()
	}
	if fees.MaxPriorityFeePerGas != nil {
		data["maxPriorityFeePerGas"] = fees.MaxPriorityFeePerGas.String()
	}
	httputil.WriteSuccess(w, http.StatusOK, "Gas price retrieved successfully", data)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "verificationId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification id"))
		return
	}

	result, err := h.chain.Record(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		h.logError(r, "blockchain recording failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Verification recorded on blockchain", result)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "verificationId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification id"))
		return
	}

	// The reason body is optional.
	var req revokeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.chain.Revoke(r.Context(), id, req.Reason, actorFrom(r.Context()))
	if err != nil {
		h.logError(r, "blockchain revocation failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Verification revoked on blockchain", result)
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
