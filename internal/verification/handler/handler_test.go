package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	authmodels "verigate/internal/auth/models"
	"verigate/internal/platform/middleware"
	"verigate/internal/policy"
	"verigate/internal/verification/handler/mocks"
	"verigate/internal/verification/models"
	"verigate/internal/verification/service"
	dErrors "verigate/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/verification-mocks.go -package=mocks Service
type VerificationHandlerSuite struct {
	suite.Suite
}

func TestVerificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(VerificationHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(mockService, nil, logger), mockService
}

func authenticated(req *http.Request, userID uuid.UUID, role authmodels.Role) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyRole, string(role))
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *VerificationHandlerSuite) TestHandleSubmit() {
	userID := uuid.New()

	s.Run("created", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().Submit(gomock.Any(), userID, service.SubmitInput{
			DocumentType: models.DocumentPassport,
			DocumentHash: "a3f1",
			StorageID:    "QmTest",
		}).Return(&models.Request{
			ID:           uuid.New(),
			UserID:       userID,
			DocumentType: models.DocumentPassport,
			Status:       models.StatusPending,
		}, nil)

		body, err := json.Marshal(submitRequest{DocumentType: "passport", DocumentHash: "a3f1", StorageID: "QmTest"})
		require.NoError(s.T(), err)

		req := authenticated(httptest.NewRequest(http.MethodPost, "/api/users/request-verification", bytes.NewReader(body)), userID, authmodels.RoleUser)
		w := httptest.NewRecorder()
		handler.handleSubmit(w, req)

		assert.Equal(s.T(), http.StatusCreated, w.Code)
		resp := decodeBody(s.T(), w)
		assert.Equal(s.T(), true, resp["success"])
		verification := resp["data"].(map[string]any)["verification"].(map[string]any)
		assert.Equal(s.T(), "pending", verification["status"])
	})

	s.Run("missing fields rejected before the service is called", func() {
		handler, _ := newTestHandler(s.T())

		body := []byte(`{"documentType":"passport"}`)
		req := authenticated(httptest.NewRequest(http.MethodPost, "/api/users/request-verification", bytes.NewReader(body)), userID, authmodels.RoleUser)
		w := httptest.NewRecorder()
		handler.handleSubmit(w, req)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})

	s.Run("duplicate pending surfaces as conflict", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().Submit(gomock.Any(), userID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "you already have a pending verification request"))

		body := []byte(`{"documentType":"passport","documentHash":"a3f1","ipfsHash":"QmTest"}`)
		req := authenticated(httptest.NewRequest(http.MethodPost, "/api/users/request-verification", bytes.NewReader(body)), userID, authmodels.RoleUser)
		w := httptest.NewRecorder()
		handler.handleSubmit(w, req)

		assert.Equal(s.T(), http.StatusConflict, w.Code)
		resp := decodeBody(s.T(), w)
		assert.Equal(s.T(), false, resp["success"])
	})
}

func (s *VerificationHandlerSuite) TestHandleList() {
	userID := uuid.New()
	handler, mockService := newTestHandler(s.T())
	mockService.EXPECT().ListForUser(gomock.Any(), userID).Return([]*models.Request{
		{ID: uuid.New(), UserID: userID, Status: models.StatusApproved},
		{ID: uuid.New(), UserID: userID, Status: models.StatusRejected},
	}, nil)

	req := authenticated(httptest.NewRequest(http.MethodGet, "/api/users/verifications", nil), userID, authmodels.RoleUser)
	w := httptest.NewRecorder()
	handler.handleList(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	resp := decodeBody(s.T(), w)
	verifications := resp["data"].(map[string]any)["verifications"].([]any)
	assert.Len(s.T(), verifications, 2)
}

func (s *VerificationHandlerSuite) TestHandleGet() {
	userID := uuid.New()
	requestID := uuid.New()

	router := func(h *Handler) http.Handler {
		r := chi.NewRouter()
		r.Get("/api/users/verifications/{id}", h.handleGet)
		return r
	}

	s.Run("owner retrieves own request", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().GetByID(gomock.Any(), requestID, policy.Actor{ID: userID, Role: authmodels.RoleUser}).
			Return(&models.Request{ID: requestID, UserID: userID, Status: models.StatusPending}, nil)

		req := authenticated(httptest.NewRequest(http.MethodGet, "/api/users/verifications/"+requestID.String(), nil), userID, authmodels.RoleUser)
		w := httptest.NewRecorder()
		router(handler).ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusOK, w.Code)
	})

	s.Run("malformed id", func() {
		handler, _ := newTestHandler(s.T())

		req := authenticated(httptest.NewRequest(http.MethodGet, "/api/users/verifications/not-a-uuid", nil), userID, authmodels.RoleUser)
		w := httptest.NewRecorder()
		router(handler).ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})

	s.Run("foreign request is forbidden", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().GetByID(gomock.Any(), requestID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "you do not have permission to view this verification"))

		req := authenticated(httptest.NewRequest(http.MethodGet, "/api/users/verifications/"+requestID.String(), nil), userID, authmodels.RoleUser)
		w := httptest.NewRecorder()
		router(handler).ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusForbidden, w.Code)
	})
}

func (s *VerificationHandlerSuite) TestHandleReview() {
	adminID := uuid.New()
	requestID := uuid.New()

	router := func(h *Handler) http.Handler {
		r := chi.NewRouter()
		r.Put("/api/users/verifications/{id}/review", h.handleReview)
		return r
	}

	s.Run("approval", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().Review(gomock.Any(), requestID, models.StatusApproved, "", policy.Actor{ID: adminID, Role: authmodels.RoleAdmin}).
			Return(&models.Request{ID: requestID, Status: models.StatusApproved}, nil)

		body := []byte(`{"status":"approved"}`)
		req := authenticated(httptest.NewRequest(http.MethodPut, "/api/users/verifications/"+requestID.String()+"/review", bytes.NewReader(body)), adminID, authmodels.RoleAdmin)
		w := httptest.NewRecorder()
		router(handler).ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusOK, w.Code)
		resp := decodeBody(s.T(), w)
		assert.Equal(s.T(), "Verification approved", resp["message"])
	})

	s.Run("rejection carries the reason through", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().Review(gomock.Any(), requestID, models.StatusRejected, "document unreadable", gomock.Any()).
			Return(&models.Request{ID: requestID, Status: models.StatusRejected, RejectionReason: "document unreadable"}, nil)

		body := []byte(`{"status":"rejected","rejectionReason":"document unreadable"}`)
		req := authenticated(httptest.NewRequest(http.MethodPut, "/api/users/verifications/"+requestID.String()+"/review", bytes.NewReader(body)), adminID, authmodels.RoleAdmin)
		w := httptest.NewRecorder()
		router(handler).ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusOK, w.Code)
	})

	s.Run("non-admin forbidden", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().Review(gomock.Any(), requestID, models.StatusApproved, "", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "requires admin role"))

		body := []byte(`{"status":"approved"}`)
		req := authenticated(httptest.NewRequest(http.MethodPut, "/api/users/verifications/"+requestID.String()+"/review", bytes.NewReader(body)), uuid.New(), authmodels.RoleUser)
		w := httptest.NewRecorder()
		router(handler).ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusForbidden, w.Code)
	})

	s.Run("already reviewed", func() {
		handler, mockService := newTestHandler(s.T())
		mockService.EXPECT().Review(gomock.Any(), requestID, models.StatusRejected, "", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidState, "verification has already been reviewed"))

		body := []byte(`{"status":"rejected"}`)
		req := authenticated(httptest.NewRequest(http.MethodPut, "/api/users/verifications/"+requestID.String()+"/review", bytes.NewReader(body)), adminID, authmodels.RoleAdmin)
		w := httptest.NewRecorder()
		router(handler).ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusConflict, w.Code)
	})
}
