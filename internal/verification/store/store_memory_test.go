package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verigate/internal/verification/models"
	"verigate/pkg/platform/sentinel"
)

type InMemoryRequestStoreSuite struct {
	suite.Suite
	store *InMemoryRequestStore
}

func TestInMemoryRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryRequestStoreSuite))
}

func (s *InMemoryRequestStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func newTestRequest(userID uuid.UUID) *models.Request {
	return &models.Request{
		ID:           uuid.New(),
		UserID:       userID,
		DocumentType: models.DocumentPassport,
		DocumentHash: "a3f1c9",
		StorageID:    "Qm" + uuid.NewString(),
		Status:       models.StatusPending,
		ExpiresAt:    time.Now().Add(models.RetentionWindow),
	}
}

func (s *InMemoryRequestStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	req := newTestRequest(uuid.New())

	s.Require().NoError(s.store.Create(ctx, req))
	s.False(req.CreatedAt.IsZero())

	s.Run("find by id", func() {
		found, err := s.store.FindByID(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(req.StorageID, found.StorageID)
	})

	s.Run("find by storage id", func() {
		found, err := s.store.FindByStorageID(ctx, req.StorageID)
		s.Require().NoError(err)
		s.Equal(req.ID, found.ID)
	})

	s.Run("missing request returns ErrNotFound", func() {
		_, err := s.store.FindByID(ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByStorageID(ctx, "QmMissing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryRequestStoreSuite) TestFindPendingByUser() {
	ctx := context.Background()
	userID := uuid.New()

	s.Run("no pending request", func() {
		_, err := s.store.FindPendingByUser(ctx, userID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("terminal requests are skipped", func() {
		rejected := newTestRequest(userID)
		rejected.Status = models.StatusRejected
		s.Require().NoError(s.store.Create(ctx, rejected))

		_, err := s.store.FindPendingByUser(ctx, userID)
		s.ErrorIs(err, sentinel.ErrNotFound)

		pending := newTestRequest(userID)
		s.Require().NoError(s.store.Create(ctx, pending))

		found, err := s.store.FindPendingByUser(ctx, userID)
		s.Require().NoError(err)
		s.Equal(pending.ID, found.ID)
	})
}

func (s *InMemoryRequestStoreSuite) TestListByUser() {
	ctx := context.Background()
	userID := uuid.New()

	first := newTestRequest(userID)
	first.Status = models.StatusRejected
	s.Require().NoError(s.store.Create(ctx, first))
	time.Sleep(5 * time.Millisecond)
	second := newTestRequest(userID)
	s.Require().NoError(s.store.Create(ctx, second))

	other := newTestRequest(uuid.New())
	s.Require().NoError(s.store.Create(ctx, other))

	list, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID, "most recent first")
	s.Equal(first.ID, list[1].ID)
}

func (s *InMemoryRequestStoreSuite) TestUpdate() {
	ctx := context.Background()
	req := newTestRequest(uuid.New())
	s.Require().NoError(s.store.Create(ctx, req))

	s.Run("rewrites mutable fields", func() {
		req.Status = models.StatusApproved
		req.TxHash = "0xdeadbeef"
		s.Require().NoError(s.store.Update(ctx, req))

		found, err := s.store.FindByID(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, found.Status)
		s.Equal("0xdeadbeef", found.TxHash)
	})

	s.Run("missing request fails", func() {
		ghost := newTestRequest(uuid.New())
		s.ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)
	})

	s.Run("returned records are copies", func() {
		found, err := s.store.FindByID(ctx, req.ID)
		s.Require().NoError(err)
		found.Status = models.StatusRejected

		again, err := s.store.FindByID(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, again.Status)
	})
}
