package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	authmodels "verigate/internal/auth/models"
	authstore "verigate/internal/auth/store"
	"verigate/internal/chain/contract"
	"verigate/internal/policy"
	"verigate/internal/verification/models"
	"verigate/internal/verification/store"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/audit"
)

const testTxHash = "0x9c44bdb07c5d3722c12f7d5d29d540e39b87b0dc3a58c3a0f4196eaeff1d4cba"

type addCall struct {
	wallet, documentHash, storageID string
}

// fakeRegistry stands in for the bound contract. Wait behavior is
// programmable so confirmation failures can be exercised.
type fakeRegistry struct {
	status     map[string]bool
	submitErr  error
	waitErr    error
	waitBlock  uint64
	beforeWait func()
	adds       []addCall
	revokes    []string
	fees       *contract.FeeData
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{status: make(map[string]bool), waitBlock: 42}
}

func (f *fakeRegistry) GetVerificationStatus(_ context.Context, wallet string) (bool, error) {
	if f.submitErr != nil {
		return false, f.submitErr
	}
	return f.status[wallet], nil
}

func (f *fakeRegistry) AddVerification(_ context.Context, wallet, documentHash, storageID string) (*contract.Tx, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.adds = append(f.adds, addCall{wallet, documentHash, storageID})
	return f.newTx(), nil
}

func (f *fakeRegistry) RevokeVerification(_ context.Context, wallet string) (*contract.Tx, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.revokes = append(f.revokes, wallet)
	return f.newTx(), nil
}

func (f *fakeRegistry) SuggestFees(_ context.Context) (*contract.FeeData, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.fees, nil
}

func (f *fakeRegistry) newTx() *contract.Tx {
	return &contract.Tx{
		Hash: testTxHash,
		Wait: func(context.Context) (uint64, error) {
			if f.beforeWait != nil {
				f.beforeWait()
			}
			if f.waitErr != nil {
				return 0, f.waitErr
			}
			return f.waitBlock, nil
		},
	}
}

type RecorderSuite struct {
	suite.Suite
	registry *fakeRegistry
	requests *store.InMemoryRequestStore
	users    *authstore.InMemoryUserStore
	trail    *audit.Recorder
	service  *Service
	admin    policy.Actor
	owner    *authmodels.User
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.registry = newFakeRegistry()
	s.requests = store.NewInMemory()
	s.users = authstore.NewInMemory()
	s.trail = &audit.Recorder{}
	s.admin = policy.Actor{ID: uuid.New(), Role: authmodels.RoleAdmin}

	s.owner = &authmodels.User{
		ID:            uuid.New(),
		WalletAddress: "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
		Role:          authmodels.RoleUser,
	}
	s.Require().NoError(s.users.Create(context.Background(), s.owner))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(s.registry, s.requests, s.users, logger, WithAuditPublisher(s.trail))
	s.Require().NoError(err)
	s.service = svc
}

func (s *RecorderSuite) approvedRequest() *models.Request {
	req := &models.Request{
		ID:           uuid.New(),
		UserID:       s.owner.ID,
		DocumentType: models.DocumentPassport,
		DocumentHash: "a3f1c9",
		StorageID:    "QmDocument",
		Status:       models.StatusApproved,
		ExpiresAt:    time.Now().Add(models.RetentionWindow),
	}
	s.Require().NoError(s.requests.Create(context.Background(), req))
	return req
}

func (s *RecorderSuite) TestRecord() {
	ctx := context.Background()

	s.Run("non-admin forbidden", func() {
		req := s.approvedRequest()
		_, err := s.service.Record(ctx, req.ID, policy.Actor{ID: uuid.New(), Role: authmodels.RoleUser})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Empty(s.registry.adds, "no transaction submitted")
	})

	s.Run("missing request", func() {
		_, err := s.service.Record(ctx, uuid.New(), s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("pending request is not recordable", func() {
		req := s.approvedRequest()
		req.Status = models.StatusPending
		s.Require().NoError(s.requests.Update(ctx, req))

		_, err := s.service.Record(ctx, req.ID, s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("existing tx hash always fails regardless of chain state", func() {
		req := s.approvedRequest()
		req.TxHash = "0xearlier"
		s.Require().NoError(s.requests.Update(ctx, req))

		_, err := s.service.Record(ctx, req.ID, s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Empty(s.registry.adds)
	})

	s.Run("confirmed record persists hash and audits", func() {
		req := s.approvedRequest()

		result, err := s.service.Record(ctx, req.ID, s.admin)
		s.Require().NoError(err)
		s.Equal(testTxHash, result.TxHash)
		s.Equal(uint64(42), result.BlockNumber)

		s.Require().Len(s.registry.adds, 1)
		s.Equal(s.owner.WalletAddress, s.registry.adds[0].wallet)
		s.Equal("a3f1c9", s.registry.adds[0].documentHash)
		s.Equal("QmDocument", s.registry.adds[0].storageID)

		stored, err := s.requests.FindByID(ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(testTxHash, stored.TxHash)
		s.Equal(models.StatusApproved, stored.Status, "recording does not change review status")

		events := s.trail.Events()
		s.Require().Len(events, 1)
		s.Equal(audit.ActionVerificationRecord, events[0].Action)
	})

	s.Run("hash is persisted before confirmation", func() {
		req := s.approvedRequest()
		s.registry.beforeWait = func() {
			stored, err := s.requests.FindByID(ctx, req.ID)
			s.Require().NoError(err)
			s.Equal(testTxHash, stored.TxHash, "hash must be durable before waiting")
		}
		defer func() { s.registry.beforeWait = nil }()

		_, err := s.service.Record(ctx, req.ID, s.admin)
		s.Require().NoError(err)
	})

	s.Run("submission failure leaves hash unset", func() {
		req := s.approvedRequest()
		s.registry.submitErr = errors.New("insufficient funds")
		defer func() { s.registry.submitErr = nil }()

		_, err := s.service.Record(ctx, req.ID, s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeExternal))

		stored, findErr := s.requests.FindByID(ctx, req.ID)
		s.Require().NoError(findErr)
		s.Empty(stored.TxHash, "request stays approved and retryable")
		s.Equal(models.StatusApproved, stored.Status)
	})

	s.Run("confirmation failure keeps the persisted hash", func() {
		req := s.approvedRequest()
		s.registry.waitErr = errors.New("timed out waiting for receipt")
		defer func() { s.registry.waitErr = nil }()

		_, err := s.service.Record(ctx, req.ID, s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeExternal))

		stored, findErr := s.requests.FindByID(ctx, req.ID)
		s.Require().NoError(findErr)
		s.Equal(testTxHash, stored.TxHash, "hash survives for out-of-band follow-up")
	})
}

func (s *RecorderSuite) TestRevoke() {
	ctx := context.Background()

	recorded := func() *models.Request {
		req := s.approvedRequest()
		req.TxHash = testTxHash
		s.Require().NoError(s.requests.Update(ctx, req))
		return req
	}

	s.Run("unrecorded verification cannot be revoked", func() {
		req := s.approvedRequest()
		_, err := s.service.Revoke(ctx, req.ID, "", s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("non-admin forbidden", func() {
		req := recorded()
		_, err := s.service.Revoke(ctx, req.ID, "", policy.Actor{ID: uuid.New(), Role: authmodels.RoleUser})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("revocation rejects the request with the given reason", func() {
		req := recorded()
		result, err := s.service.Revoke(ctx, req.ID, "document forged", s.admin)
		s.Require().NoError(err)
		s.Equal(testTxHash, result.TxHash)

		stored, findErr := s.requests.FindByID(ctx, req.ID)
		s.Require().NoError(findErr)
		s.Equal(models.StatusRejected, stored.Status)
		s.Equal("document forged", stored.RejectionReason)
		s.Empty(stored.TxHash, "rejected requests carry no transaction hash")

		s.Require().Len(s.registry.revokes, 1)
		s.Equal(s.owner.WalletAddress, s.registry.revokes[0])
	})

	s.Run("default revocation reason", func() {
		req := recorded()
		_, err := s.service.Revoke(ctx, req.ID, "", s.admin)
		s.Require().NoError(err)

		stored, findErr := s.requests.FindByID(ctx, req.ID)
		s.Require().NoError(findErr)
		s.Equal("Verification revoked", stored.RejectionReason)
	})

	s.Run("rejection lands before confirmation", func() {
		// The database flips to rejected while the chain may still report
		// verified until the transaction is mined. The database wins for
		// application decisions.
		req := recorded()
		s.registry.beforeWait = func() {
			stored, err := s.requests.FindByID(ctx, req.ID)
			s.Require().NoError(err)
			s.Equal(models.StatusRejected, stored.Status)
		}
		s.registry.waitErr = errors.New("timed out waiting for receipt")
		defer func() {
			s.registry.beforeWait = nil
			s.registry.waitErr = nil
		}()

		_, err := s.service.Revoke(ctx, req.ID, "", s.admin)
		s.True(dErrors.HasCode(err, dErrors.CodeExternal))

		stored, findErr := s.requests.FindByID(ctx, req.ID)
		s.Require().NoError(findErr)
		s.Equal(models.StatusRejected, stored.Status, "optimistic rejection is not rolled back")
	})
}

func (s *RecorderSuite) TestCheckStatus() {
	ctx := context.Background()

	s.Run("invalid address", func() {
		_, err := s.service.CheckStatus(ctx, "not-an-address")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("reads the contract flag", func() {
		s.registry.status[s.owner.WalletAddress] = true

		verified, err := s.service.CheckStatus(ctx, s.owner.WalletAddress)
		s.Require().NoError(err)
		s.True(verified)

		verified, err = s.service.CheckStatus(ctx, "0x0000000000000000000000000000000000000001")
		s.Require().NoError(err)
		s.False(verified)
	})

	s.Run("rpc failure surfaces as external", func() {
		s.registry.submitErr = errors.New("connection refused")
		defer func() { s.registry.submitErr = nil }()

		_, err := s.service.CheckStatus(ctx, s.owner.WalletAddress)
		s.True(dErrors.HasCode(err, dErrors.CodeExternal))
	})
}

func (s *RecorderSuite) TestGasPrice() {
	ctx := context.Background()

	s.Run("passes through fee data", func() {
		s.registry.fees = &contract.FeeData{
			GasPrice:             big.NewInt(12_000_000_000),
			MaxFeePerGas:         big.NewInt(30_000_000_000),
			MaxPriorityFeePerGas: big.NewInt(1_500_000_000),
		}

		fees, err := s.service.GasPrice(ctx)
		s.Require().NoError(err)
		s.Equal(int64(12_000_000_000), fees.GasPrice.Int64())
	})

	s.Run("rpc failure surfaces as external", func() {
		s.registry.submitErr = errors.New("connection refused")
		defer func() { s.registry.submitErr = nil }()

		_, err := s.service.GasPrice(ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeExternal))
	})
}
