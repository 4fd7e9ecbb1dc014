package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmodels "verigate/internal/auth/models"
	"verigate/internal/platform/middleware"
	"verigate/internal/policy"
	"verigate/internal/storage/service"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/httputil"
)

// Service defines the uploader operations the handler delegates to.
type Service interface {
	Upload(ctx context.Context, userID uuid.UUID, in service.UploadInput) (*service.UploadResult, error)
	Fetch(ctx context.Context, storageID string, actor policy.Actor) (string, error)
}

// Handler exposes the storage endpoints under /api/storage. Both routes
// require an authenticated session.
type Handler struct {
	storage   Service
	logger    *slog.Logger
	validator middleware.JWTValidator
}

func New(storage Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{storage: storage, validator: validator, logger: logger}
}

// Register mounts the storage routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/storage", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/upload", h.handleUpload)
			r.Get("/ipfs/{hash}", h.handleFetch)
		})
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	// Leave headroom over the document cap for the multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+(1<<20))
	file, header, err := r.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file exceeds the 10MB size limit"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read uploaded file"))
		return
	}

	result, err := h.storage.Upload(r.Context(), userID, service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.logError(r, "upload failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "File uploaded to IPFS successfully", result)
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	url, err := h.storage.Fetch(r.Context(), hash, actorFrom(r.Context()))
	if err != nil {
		h.logError(r, "fetch failed", err)
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
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
