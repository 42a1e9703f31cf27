package models

import (
	"fmt"
	"maps"
	"slices"
	"time"

	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// ArtifactKind names one uploaded image.
type ArtifactKind string

const (
	ArtifactFront  ArtifactKind = "front"
	ArtifactBack   ArtifactKind = "back"
	ArtifactSelfie ArtifactKind = "selfie"
)

// ArtifactOrder fixes the Merkle leaf order.
var ArtifactOrder = []ArtifactKind{ArtifactFront, ArtifactBack, ArtifactSelfie}

// Integrity holds the tamper-evidence anchors computed once at submission.
type Integrity struct {
	FileHashes         map[ArtifactKind]string `json:"file_hashes"`
	MerkleRoot         string                  `json:"merkle_root"`
	DocumentNumberHash string                  `json:"document_number_hash"`
	UserIDHash         string                  `json:"user_id_hash"`
}

// Equal compares every anchor, including the per-file map.
func (i Integrity) Equal(o Integrity) bool {
	return i.MerkleRoot == o.MerkleRoot &&
		i.DocumentNumberHash == o.DocumentNumberHash &&
		i.UserIDHash == o.UserIDHash &&
		maps.Equal(i.FileHashes, o.FileHashes)
}

// ContentUpload is the content-store result for one artifact.
type ContentUpload struct {
	CID        string    `json:"cid"`
	Hash       string    `json:"hash"`
	Provider   string    `json:"provider"`
	GatewayURL string    `json:"gateway_url,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// AIStatus is the verification sub-state.
type AIStatus string

const (
	AIPending    AIStatus = "pending"
	AIProcessing AIStatus = "processing"
	AIVerified   AIStatus = "verified"
	AIFailed     AIStatus = "failed"
)

// StepStatus is the progress of one named AI step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// AI step names in execution order.
const (
	StepQualityCheck       = "quality_check"
	StepTamperingDetection = "tampering_detection"
	StepOCRExtraction      = "ocr_extraction"
	StepDocumentValidation = "document_validation"
	StepFaceMatching       = "face_matching"
	StepFinalDecision      = "final_decision"
)

var aiStepNames = []string{
	StepQualityCheck,
	StepTamperingDetection,
	StepOCRExtraction,
	StepDocumentValidation,
	StepFaceMatching,
	StepFinalDecision,
}

type AIStep struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

type AIVerification struct {
	Status         AIStatus       `json:"status"`
	Decision       string         `json:"decision,omitempty"`
	Confidence     float64        `json:"confidence"`
	FaceMatchScore float64        `json:"face_match_score"`
	OCRData        map[string]any `json:"ocr_data,omitempty"`
	Steps          []AIStep       `json:"steps"`
	Errors         []string       `json:"errors,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

func newAIVerification() AIVerification {
	steps := make([]AIStep, len(aiStepNames))
	for i, name := range aiStepNames {
		steps[i] = AIStep{Name: name, Status: StepPending}
	}
	return AIVerification{Status: AIPending, Steps: steps}
}

func (a *AIVerification) setSteps(status StepStatus) {
	for i := range a.Steps {
		a.Steps[i].Status = status
	}
}

// AIOutcome is what the pipeline learned from the verification provider.
type AIOutcome struct {
	Verified       bool
	Decision       string
	Confidence     float64
	FaceMatchScore float64
	OCRData        map[string]any
	Errors         []string
}

// CredentialKind tags how a credential was produced.
type CredentialKind string

const (
	CredentialIssued    CredentialKind = "issued"
	CredentialSynthetic CredentialKind = "synthetic"
)

type Credential struct {
	Kind       CredentialKind `json:"kind"`
	ID         string         `json:"credential_id"`
	ExchangeID string         `json:"exchange_id"`
	IssuedAt   time.Time      `json:"issued_at"`
}

func (c Credential) IsSynthetic() bool { return c.Kind == CredentialSynthetic }

type LedgerRegistration struct {
	TxHash           string    `json:"tx_hash"`
	BlockNumber      uint64    `json:"block_number"`
	VerificationHash string    `json:"verification_hash"`
	RegisteredAt     time.Time `json:"registered_at"`
}

// VerificationRecord is one KYC submission attempt and its lifecycle.
type VerificationRecord struct {
	ID                id.RecordID
	UserID            id.UserID
	DocumentType      DocumentType
	DocumentNumber    string
	Artifacts         map[ArtifactKind]string
	Integrity         Integrity
	Uploads           map[ArtifactKind]ContentUpload
	AI                AIVerification
	Credential        *Credential
	Ledger            *LedgerRegistration
	Status            Status
	RejectionReason   string
	RejectionCategory RejectionCategory
	Note              string
	SubmittedFrom     string
	SubmittedAt       time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// NewVerificationRecord creates a record in the submitted state.
func NewVerificationRecord(
	recordID id.RecordID,
	userID id.UserID,
	docType DocumentType,
	docNumber string,
	artifacts map[ArtifactKind]string,
	integrity Integrity,
	submittedFrom string,
	now time.Time,
) *VerificationRecord {
	return &VerificationRecord{
		ID:             recordID,
		UserID:         userID,
		DocumentType:   docType,
		DocumentNumber: docNumber,
		Artifacts:      artifacts,
		Integrity:      integrity,
		Uploads:        map[ArtifactKind]ContentUpload{},
		AI:             newAIVerification(),
		Status:         StatusSubmitted,
		SubmittedFrom:  submittedFrom,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
}

// IsStale reports whether an in-flight record has outlived the staleness window.
func (r *VerificationRecord) IsStale(now time.Time, staleAfter time.Duration) bool {
	return !r.Status.IsTerminal() && now.Sub(r.SubmittedAt) > staleAfter
}

func (r *VerificationRecord) transition(next Status, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", sentinel.ErrInvalidState, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

// RecordUpload stores a content-store result. Terminal records are immutable.
func (r *VerificationRecord) RecordUpload(kind ArtifactKind, upload ContentUpload, now time.Time) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("%w: record is %s", sentinel.ErrInvalidState, r.Status)
	}
	if r.Uploads == nil {
		r.Uploads = map[ArtifactKind]ContentUpload{}
	}
	r.Uploads[kind] = upload
	r.UpdatedAt = now
	return nil
}

// StartAI moves the record into ai_processing and marks every step in progress.
func (r *VerificationRecord) StartAI(now time.Time) error {
	if err := r.transition(StatusAIProcessing, now); err != nil {
		return err
	}
	r.AI.Status = AIProcessing
	r.AI.StartedAt = &now
	r.AI.setSteps(StepProcessing)
	return nil
}

// ApplyAIOutcome records the provider verdict. A negative verdict rejects the record.
func (r *VerificationRecord) ApplyAIOutcome(outcome AIOutcome, reason string, now time.Time) error {
	if r.Status != StatusAIProcessing {
		return fmt.Errorf("%w: ai outcome on %s record", sentinel.ErrInvalidState, r.Status)
	}
	r.AI.Decision = outcome.Decision
	r.AI.Confidence = outcome.Confidence
	r.AI.FaceMatchScore = outcome.FaceMatchScore
	r.AI.OCRData = outcome.OCRData
	r.AI.Errors = slices.Clone(outcome.Errors)
	r.AI.FinishedAt = &now

	if outcome.Verified {
		r.AI.Status = AIVerified
		r.AI.setSteps(StepCompleted)
		return r.transition(StatusAIVerified, now)
	}

	r.AI.Status = AIFailed
	r.AI.setSteps(StepCompleted)
	r.AI.Steps[len(r.AI.Steps)-1].Status = StepFailed
	return r.Reject(reason, RejectionVerificationFailed, now)
}

// FailAI records a provider error; the record is rejected as unverifiable.
func (r *VerificationRecord) FailAI(reason string, errs []string, now time.Time) error {
	if r.Status != StatusAIProcessing {
		return fmt.Errorf("%w: ai failure on %s record", sentinel.ErrInvalidState, r.Status)
	}
	r.AI.Status = AIFailed
	r.AI.Errors = slices.Clone(errs)
	r.AI.FinishedAt = &now
	for i := range r.AI.Steps {
		if r.AI.Steps[i].Status != StepCompleted {
			r.AI.Steps[i].Status = StepFailed
		}
	}
	return r.Reject(reason, RejectionVerificationUnavailable, now)
}

// IssueCredential attaches a credential and advances to credential_issued.
func (r *VerificationRecord) IssueCredential(cred Credential, now time.Time) error {
	if err := r.transition(StatusCredentialIssued, now); err != nil {
		return err
	}
	r.Credential = &cred
	r.Note = ""
	return nil
}

// Complete attaches the ledger registration and closes the record.
func (r *VerificationRecord) Complete(reg LedgerRegistration, now time.Time) error {
	if err := r.transition(StatusCompleted, now); err != nil {
		return err
	}
	r.Ledger = &reg
	r.Note = ""
	r.CompletedAt = &now
	return nil
}

// Reject terminates the record with a reason.
func (r *VerificationRecord) Reject(reason string, category RejectionCategory, now time.Time) error {
	if err := r.transition(StatusRejected, now); err != nil {
		return err
	}
	r.RejectionReason = reason
	r.RejectionCategory = category
	r.CompletedAt = &now
	return nil
}

// NoteFailure records why a stage could not advance, leaving status unchanged.
func (r *VerificationRecord) NoteFailure(note string, now time.Time) error {
	if r.Status.IsTerminal() {
		return fmt.Errorf("%w: record is %s", sentinel.ErrInvalidState, r.Status)
	}
	r.Note = note
	r.UpdatedAt = now
	return nil
}

// IsRepairable reports whether the record is parked after verification succeeded.
func (r *VerificationRecord) IsRepairable() bool {
	return r.Status == StatusAIVerified || r.Status == StatusCredentialIssued
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *VerificationRecord) Clone() *VerificationRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Artifacts = maps.Clone(r.Artifacts)
	c.Integrity.FileHashes = maps.Clone(r.Integrity.FileHashes)
	c.Uploads = maps.Clone(r.Uploads)
	c.AI.OCRData = maps.Clone(r.AI.OCRData)
	c.AI.Steps = slices.Clone(r.AI.Steps)
	c.AI.Errors = slices.Clone(r.AI.Errors)
	if r.AI.StartedAt != nil {
		t := *r.AI.StartedAt
		c.AI.StartedAt = &t
	}
	if r.AI.FinishedAt != nil {
		t := *r.AI.FinishedAt
		c.AI.FinishedAt = &t
	}
	if r.Credential != nil {
		cred := *r.Credential
		c.Credential = &cred
	}
	if r.Ledger != nil {
		reg := *r.Ledger
		c.Ledger = &reg
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status *Status
	UserID *id.UserID
}

// Page is an offset/limit window.
type Page struct {
	Offset int
	Limit  int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page into the allowed range.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
