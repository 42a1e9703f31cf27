package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"kycgate/internal/kyc/mocks"
	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers/aries"
	"kycgate/internal/kyc/providers/ipfs"
	"kycgate/internal/kyc/store"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestUpload_PartialFailureIsNotFatal() {
	content := mocks.NewMockContentStore(s.ctrl)
	local := ipfs.NewLocal(s.T().TempDir(), "")
	content.EXPECT().Upload(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, f ports.ContentFile) (ports.UploadResult, error) {
			if f.Metadata["artifact"] == string(models.ArtifactSelfie) {
				return ports.UploadResult{}, errors.New("ipfs: connection refused")
			}
			return local.Upload(ctx, f)
		}).Times(2)
	content.EXPECT().GatewayURL(gomock.Any()).Return("").AnyTimes()
	s.svc = s.newService(Config{SkipCredential: true}, Providers{Content: content})

	res, err := s.svc.Submit(s.ctx, s.userID, validSubmission())
	s.Require().NoError(err)
	s.svc.Wait()

	r := s.record(res.RecordID)
	s.Equal(models.StatusCompleted, r.Status)
	s.Contains(r.Uploads, models.ArtifactFront)
	s.NotContains(r.Uploads, models.ArtifactSelfie)
	s.Equal(r.Integrity.FileHashes[models.ArtifactFront], r.Uploads[models.ArtifactFront].Hash)

	payloads := s.ledger.Payloads()
	s.Require().Len(payloads, 1)
	s.Len(payloads[0].ContentIDs, 1)
}

func (s *ServiceSuite) TestCredential_ProductionIssuesRealCredential() {
	issuer := aries.NewStub()
	s.svc = s.newService(Config{Production: true}, Providers{Issuer: issuer})

	res, err := s.svc.Submit(s.ctx, s.userID, validSubmission())
	s.Require().NoError(err)
	s.svc.Wait()

	r := s.record(res.RecordID)
	s.Equal(models.StatusCompleted, r.Status)
	s.Require().NotNil(r.Credential)
	s.Equal(models.CredentialIssued, r.Credential.Kind)
	s.False(r.Credential.IsSynthetic())

	issued := issuer.Issued()
	s.Require().Len(issued, 1)
	s.Equal(r.Integrity.MerkleRoot, issued[0].MerkleRoot)
	s.Equal(r.ID, issued[0].RecordID)
}

func (s *ServiceSuite) TestCredential_NonProductionIsSynthetic() {
	issuer := mocks.NewMockCredentialIssuer(s.ctrl)
	issuer.EXPECT().Issue(gomock.Any(), gomock.Any()).Times(0)
	s.svc = s.newService(Config{Production: false}, Providers{Issuer: issuer})

	res, err := s.svc.Submit(s.ctx, s.userID, validSubmission())
	s.Require().NoError(err)
	s.svc.Wait()

	r := s.record(res.RecordID)
	s.Equal(models.StatusCompleted, r.Status)
	s.True(r.Credential.IsSynthetic())
}

func (s *ServiceSuite) TestCredential_IssuerFailureParksThenRepairCompletes() {
	issuer := mocks.NewMockCredentialIssuer(s.ctrl)
	issuer.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(nil, errors.New("aries: 503"))
	s.svc = s.newService(Config{Production: true}, Providers{Issuer: issuer})

	res, err := s.svc.Submit(s.ctx, s.userID, validSubmission())
	s.Require().NoError(err)
	s.svc.Wait()

	r := s.record(res.RecordID)
	s.Equal(models.StatusAIVerified, r.Status)
	s.Contains(r.Note, "credential issuance failed")
	s.Nil(r.Credential)
	s.Empty(s.ledger.Payloads())

	report, err := s.svc.Repair(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, report.Repaired)
	s.Equal(models.StatusAIVerified, report.Results[0].From)

	r = s.record(res.RecordID)
	s.Equal(models.StatusCompleted, r.Status)
	s.True(r.Credential.IsSynthetic())
	s.Equal(models.UserKYCVerified, s.userStatus())
}

func (s *ServiceSuite) TestPublisherFailureDoesNotBlockPipeline() {
	publisher := mocks.NewMockStatusPublisher(s.ctrl)
	publisher.EXPECT().PublishStatusChanged(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).AnyTimes()
	s.svc = s.newService(Config{SkipCredential: true}, Providers{})
	WithPublisher(publisher)(s.svc)

	res, err := s.svc.Submit(s.ctx, s.userID, validSubmission())
	s.Require().NoError(err)
	s.svc.Wait()

	s.Equal(models.StatusCompleted, s.record(res.RecordID).Status)
}

func (s *ServiceSuite) TestSubmit_StoreLookupFailure() {
	st := mocks.NewMockStore(s.ctrl)
	st.EXPECT().FindActiveByUser(gomock.Any(), s.userID).Return(nil, errors.New("connection reset"))
	svc := New(st, store.NewInMemoryUserStatusStore(), nopArtifacts{}, nopGuard{}, Providers{}, Config{})

	_, err := svc.Submit(s.ctx, s.userID, validSubmission())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestSubmit_CreateFailureRemovesArtifacts() {
	st := mocks.NewMockStore(s.ctrl)
	st.EXPECT().FindActiveByUser(gomock.Any(), s.userID).Return(nil, sentinel.ErrNotFound)
	st.EXPECT().CreateIfNoneActive(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	var saved id.RecordID
	art := mocks.NewMockArtifactStore(s.ctrl)
	art.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, recordID id.RecordID, kind models.ArtifactKind, _ []byte) (string, error) {
			saved = recordID
			return "/data/" + string(kind), nil
		}).Times(2)
	art.EXPECT().Remove(gomock.Any()).DoAndReturn(func(recordID id.RecordID) error {
		s.Equal(saved, recordID)
		return nil
	})
	svc := New(st, s.users, art, nopGuard{}, Providers{}, Config{})

	_, err := svc.Submit(s.ctx, s.userID, validSubmission())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestSubmit_SaveFailureRemovesPartialArtifacts() {
	art := mocks.NewMockArtifactStore(s.ctrl)
	gomock.InOrder(
		art.EXPECT().Save(gomock.Any(), gomock.Any(), models.ArtifactFront, gomock.Any()).Return("/data/front.png", nil),
		art.EXPECT().Save(gomock.Any(), gomock.Any(), models.ArtifactSelfie, gomock.Any()).Return("", errors.New("permission denied")),
		art.EXPECT().Remove(gomock.Any()).Return(nil),
	)
	svc := New(s.store, s.users, art, nopGuard{}, Providers{}, Config{})

	_, err := svc.Submit(s.ctx, s.userID, validSubmission())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.store.FindLatestByUser(s.ctx, s.userID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestSubmit_GuardUnavailable() {
	g := mocks.NewMockSubmissionGuard(s.ctrl)
	g.EXPECT().Acquire(gomock.Any(), s.userID).Return(nil, errors.New("redis: i/o timeout"))
	svc := New(s.store, s.users, nopArtifacts{}, g, Providers{}, Config{})

	_, err := svc.Submit(s.ctx, s.userID, validSubmission())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestLedgerStatus_Unavailable() {
	l := mocks.NewMockLedger(s.ctrl)
	l.EXPECT().IsVerified(gomock.Any(), s.userID).Return(false, errors.New("rpc down"))
	s.svc = s.newService(Config{}, Providers{Ledger: l})

	_, err := s.svc.LedgerStatus(s.ctx, s.userID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

type nopArtifacts struct{}

func (nopArtifacts) Save(_ context.Context, _ id.RecordID, kind models.ArtifactKind, _ []byte) (string, error) {
	return string(kind), nil
}

func (nopArtifacts) Remove(id.RecordID) error { return nil }

type nopGuard struct{}

func (nopGuard) Acquire(context.Context, id.UserID) (func(), error) { return func() {}, nil }
