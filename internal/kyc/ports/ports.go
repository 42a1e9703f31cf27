// Package ports declares the external collaborators of the verification
// pipeline. Each contract has a fixed result shape so the orchestrator never
// inspects loosely typed provider payloads.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/ports.go -package=mocks

import (
	"context"
	"time"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
)

// ContentStore uploads artifacts to content-addressed storage.
type ContentStore interface {
	Upload(ctx context.Context, file ContentFile) (UploadResult, error)
	GatewayURL(cid string) string
}

type ContentFile struct {
	Name     string
	Data     []byte
	Metadata map[string]string
}

type UploadResult struct {
	CID      string
	Size     int64
	Provider string
}

// Verifier is the AI document and face verification provider.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

type VerifyRequest struct {
	UserID         id.UserID
	DocumentType   models.DocumentType
	DocumentNumber string
	Front          []byte
	Back           []byte
	Selfie         []byte
}

// VerifyResult is the provider's verdict; Confidence and FaceMatchScore are in [0,1].
type VerifyResult struct {
	Verified       bool
	Decision       string
	Confidence     float64
	FaceMatchScore float64
	OCRData        map[string]any
	Errors         []string
}

// CredentialIssuer issues a verifiable credential for verified attributes.
type CredentialIssuer interface {
	Issue(ctx context.Context, attrs CredentialAttributes) (*IssuedCredential, error)
}

type CredentialAttributes struct {
	UserID             id.UserID
	RecordID           id.RecordID
	DocumentType       models.DocumentType
	DocumentNumberHash string
	MerkleRoot         string
	Confidence         float64
	VerifiedAt         time.Time
}

type IssuedCredential struct {
	CredentialID string
	ExchangeID   string
}

// Ledger anchors verification hashes on a blockchain.
type Ledger interface {
	Register(ctx context.Context, userID id.UserID, payload LedgerPayload) (*LedgerReceipt, error)
	IsVerified(ctx context.Context, userID id.UserID) (bool, error)
	Health(ctx context.Context) error
}

// LedgerPayload is the anonymized, hash-only view of a record committed on-chain.
type LedgerPayload struct {
	DocumentType       models.DocumentType `json:"document_type"`
	DocumentNumberHash string              `json:"document_number_hash"`
	UserIDHash         string              `json:"user_id_hash"`
	FileHashes         map[string]string   `json:"file_hashes"`
	MerkleRoot         string              `json:"merkle_root"`
	AIConfidence       float64             `json:"ai_confidence"`
	FaceMatchScore     float64             `json:"face_match_score"`
	ContentIDs         map[string]string   `json:"content_ids,omitempty"`
	CredentialID       string              `json:"credential_id,omitempty"`
}

type LedgerReceipt struct {
	TxHash           string
	BlockNumber      uint64
	VerificationHash string
}

// UserStatusStore holds the denormalized per-user KYC status.
type UserStatusStore interface {
	SetKYCStatus(ctx context.Context, userID id.UserID, status models.UserKYCStatus, at time.Time) error
	GetKYCStatus(ctx context.Context, userID id.UserID) (models.UserKYCStatus, error)
}

// StatusPublisher announces persisted status transitions.
type StatusPublisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChanged) error
}

type StatusChanged struct {
	RecordID          id.RecordID              `json:"record_id"`
	UserID            id.UserID                `json:"user_id"`
	From              models.Status            `json:"from"`
	To                models.Status            `json:"to"`
	RejectionCategory models.RejectionCategory `json:"rejection_category,omitempty"`
	OccurredAt        time.Time                `json:"occurred_at"`
}

// SubmissionGuard serializes submissions per user across processes.
type SubmissionGuard interface {
	Acquire(ctx context.Context, userID id.UserID) (release func(), err error)
}

// ArtifactStore persists uploaded images locally and returns their paths.
// Remove drops every artifact of a record that was never created.
type ArtifactStore interface {
	Save(ctx context.Context, recordID id.RecordID, kind models.ArtifactKind, data []byte) (string, error)
	Remove(recordID id.RecordID) error
}
