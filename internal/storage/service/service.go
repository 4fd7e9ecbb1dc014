// Package service pins identity documents to content-addressed storage and
// gates reads to the document's owner.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"verigate/internal/platform/metrics"
	"verigate/internal/policy"
	"verigate/internal/verification/models"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/sentinel"
)

// MaxUploadSize caps document uploads at 10MB.
const MaxUploadSize = 10 << 20

// Pinner adds blobs to content-addressed storage and resolves gateway URLs.
type Pinner interface {
	Add(ctx context.Context, name string, data []byte) (string, error)
	GatewayURL(hash string) string
}

// RequestStore is the slice of the verification store the uploader needs to
// gate reads by ownership.
type RequestStore interface {
	FindByStorageID(ctx context.Context, storageID string) (*models.Request, error)
}

// Service is the storage uploader.
type Service struct {
	pinner   Pinner
	requests RequestStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(pinner Pinner, requests RequestStore, logger *slog.Logger, opts ...Option) (*Service, error) {
	if pinner == nil {
		return nil, fmt.Errorf("pinner is required")
	}
	if requests == nil {
		return nil, fmt.Errorf("request store is required")
	}
	svc := &Service{
		pinner:   pinner,
		requests: requests,
		logger:   logger,
		tracer:   otel.Tracer("verigate/storage"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UploadInput is an in-memory document to pin.
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult links the pinned document and its metadata record.
type UploadResult struct {
	FileHash     string `json:"fileHash"`
	StorageID    string `json:"ipfsHash"`
	MetadataHash string `json:"metadataHash"`
	FileURL      string `json:"fileUrl"`
	MetadataURL  string `json:"metadataUrl"`
}

// documentMetadata is pinned alongside the document so the upload is
// self-describing on the storage network.
type documentMetadata struct {
	Name       string `json:"name"`
	Mimetype   string `json:"mimetype"`
	Size       int    `json:"size"`
	Hash       string `json:"hash"`
	UploadedBy string `json:"uploadedBy"`
	Timestamp  string `json:"timestamp"`
}

func allowedContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

// Upload pins the document and a metadata record, concurrently, and returns
// both content identifiers plus the document's sha256 digest.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*UploadResult, error) {
	if len(in.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no file uploaded")
	}
	if len(in.Data) > MaxUploadSize {
		return nil, dErrors.New(dErrors.CodeBadRequest, "file exceeds the 10MB size limit")
	}
	if !allowedContentType(in.ContentType) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "only image files and PDFs are allowed")
	}

	ctx, span := s.tracer.Start(ctx, "storage.Upload",
		trace.WithAttributes(attribute.Int("upload.bytes", len(in.Data))))
	defer span.End()

	digest := sha256.Sum256(in.Data)
	fileHash := hex.EncodeToString(digest[:])

	metadata, err := json.Marshal(documentMetadata{
		Name:       in.Filename,
		Mimetype:   in.ContentType,
		Size:       len(in.Data),
		Hash:       fileHash,
		UploadedBy: userID.String(),
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode document metadata")
	}

	var storageID, metadataID string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := s.pinner.Add(gctx, in.Filename, in.Data)
		if err != nil {
			return fmt.Errorf("pin document: %w", err)
		}
		storageID = id
		return nil
	})
	g.Go(func() error {
		id, err := s.pinner.Add(gctx, in.Filename+".meta.json", metadata)
		if err != nil {
			return fmt.Errorf("pin metadata: %w", err)
		}
		metadataID = id
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "failed to upload file to storage")
	}

	if s.metrics != nil {
		s.metrics.StorageUploads.Inc()
		s.metrics.StorageUploadBytes.Add(float64(len(in.Data)))
	}
	s.logger.InfoContext(ctx, "document pinned",
		"storage_id", storageID, "bytes", len(in.Data), "uploaded_by", userID)

	return &UploadResult{
		FileHash:     fileHash,
		StorageID:    storageID,
		MetadataHash: metadataID,
		FileURL:      s.pinner.GatewayURL(storageID),
		MetadataURL:  s.pinner.GatewayURL(metadataID),
	}, nil
}

// Fetch resolves a content identifier to its gateway URL, gated to the
// owner of the verification request that references it or an admin. The
// content itself is never proxied through this service.
func (s *Service) Fetch(ctx context.Context, storageID string, actor policy.Actor) (string, error) {
	if storageID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "storage hash is required")
	}

	req, err := s.requests.FindByStorageID(ctx, storageID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "file not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve file")
	}
	if !policy.CanAccessResource(actor, req.UserID) {
		return "", dErrors.New(dErrors.CodeForbidden, "you do not have permission to access this file")
	}
	return s.pinner.GatewayURL(storageID), nil
}
