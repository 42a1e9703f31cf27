package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRecord() *VerificationRecord {
	return NewVerificationRecord(
		id.NewRecordID(),
		id.UserID(uuid.New()),
		DocumentAadhaar,
		"123456789012",
		map[ArtifactKind]string{ArtifactFront: "f.jpg", ArtifactSelfie: "s.jpg"},
		Integrity{
			FileHashes:         map[ArtifactKind]string{ArtifactFront: "aa", ArtifactSelfie: "bb"},
			MerkleRoot:         "root",
			DocumentNumberHash: "dn",
			UserIDHash:         "uid",
		},
		"Chrome on Linux",
		t0,
	)
}

func TestRecord_HappyPath(t *testing.T) {
	r := newTestRecord()
	require.Equal(t, StatusSubmitted, r.Status)
	require.Len(t, r.AI.Steps, 6)

	require.NoError(t, r.StartAI(t0.Add(time.Second)))
	assert.Equal(t, AIProcessing, r.AI.Status)
	for _, s := range r.AI.Steps {
		assert.Equal(t, StepProcessing, s.Status)
	}

	require.NoError(t, r.ApplyAIOutcome(AIOutcome{Verified: true, Confidence: 0.95, FaceMatchScore: 0.92}, "", t0.Add(2*time.Second)))
	assert.Equal(t, StatusAIVerified, r.Status)
	assert.Equal(t, 0.95, r.AI.Confidence)
	for _, s := range r.AI.Steps {
		assert.Equal(t, StepCompleted, s.Status)
	}

	require.NoError(t, r.IssueCredential(Credential{Kind: CredentialSynthetic, ID: "c1"}, t0.Add(3*time.Second)))
	assert.Equal(t, StatusCredentialIssued, r.Status)
	assert.True(t, r.Credential.IsSynthetic())

	done := t0.Add(4 * time.Second)
	require.NoError(t, r.Complete(LedgerRegistration{TxHash: "0xabc", BlockNumber: 42}, done))
	assert.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.CompletedAt)
	assert.Equal(t, done, *r.CompletedAt)
	assert.Equal(t, uint64(42), r.Ledger.BlockNumber)
}

func TestRecord_NegativeVerdictRejects(t *testing.T) {
	r := newTestRecord()
	require.NoError(t, r.StartAI(t0))
	require.NoError(t, r.ApplyAIOutcome(AIOutcome{Verified: false, Errors: []string{"face mismatch"}}, "verification failed: face mismatch", t0))

	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, RejectionVerificationFailed, r.RejectionCategory)
	assert.Contains(t, r.RejectionReason, "face mismatch")
	assert.Equal(t, []string{"face mismatch"}, r.AI.Errors)
	assert.Equal(t, StepFailed, r.AI.Steps[len(r.AI.Steps)-1].Status)
}

func TestRecord_ProviderFailureRejectsAsUnavailable(t *testing.T) {
	r := newTestRecord()
	require.NoError(t, r.StartAI(t0))
	require.NoError(t, r.FailAI("verification service unavailable", []string{"timeout"}, t0))

	assert.Equal(t, StatusRejected, r.Status)
	assert.Equal(t, RejectionVerificationUnavailable, r.RejectionCategory)
	assert.Equal(t, AIFailed, r.AI.Status)
}

func TestRecord_TerminalIsImmutable(t *testing.T) {
	r := newTestRecord()
	require.NoError(t, r.Reject("processing timeout", RejectionProcessingTimeout, t0))

	errs := []error{
		r.StartAI(t0),
		r.IssueCredential(Credential{}, t0),
		r.Complete(LedgerRegistration{}, t0),
		r.Reject("again", RejectionStale, t0),
		r.NoteFailure("note", t0),
		r.RecordUpload(ArtifactFront, ContentUpload{CID: "x"}, t0),
	}
	for _, err := range errs {
		assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
	}
	assert.Equal(t, "processing timeout", r.RejectionReason)
	assert.Empty(t, r.Uploads)
}

func TestRecord_SkippingStagesIsRefused(t *testing.T) {
	r := newTestRecord()
	assert.ErrorIs(t, r.IssueCredential(Credential{}, t0), sentinel.ErrInvalidState)
	assert.ErrorIs(t, r.Complete(LedgerRegistration{}, t0), sentinel.ErrInvalidState)
	assert.ErrorIs(t, r.ApplyAIOutcome(AIOutcome{Verified: true}, "", t0), sentinel.ErrInvalidState)
	assert.Equal(t, StatusSubmitted, r.Status)
}

func TestRecord_IsStale(t *testing.T) {
	r := newTestRecord()
	assert.False(t, r.IsStale(t0.Add(9*time.Minute), 10*time.Minute))
	assert.True(t, r.IsStale(t0.Add(11*time.Minute), 10*time.Minute))

	require.NoError(t, r.Reject("x", RejectionVerificationFailed, t0))
	assert.False(t, r.IsStale(t0.Add(time.Hour), 10*time.Minute))
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := newTestRecord()
	require.NoError(t, r.StartAI(t0))
	c := r.Clone()

	c.Integrity.FileHashes[ArtifactFront] = "tampered"
	c.AI.Steps[0].Status = StepFailed
	c.Artifacts[ArtifactBack] = "b.jpg"

	assert.Equal(t, "aa", r.Integrity.FileHashes[ArtifactFront])
	assert.Equal(t, StepProcessing, r.AI.Steps[0].Status)
	assert.NotContains(t, r.Artifacts, ArtifactBack)
	assert.False(t, c.Integrity.Equal(r.Integrity))
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Offset: 0, Limit: DefaultPageLimit}, Page{Offset: -3}.Normalize())
	assert.Equal(t, Page{Offset: 5, Limit: MaxPageLimit}, Page{Offset: 5, Limit: 1000}.Normalize())
}
