package handler

import (
	"time"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/service"
)

// SubmitResponse is the HTTP response for POST /kyc/submit.
type SubmitResponse struct {
	RecordID    string    `json:"record_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// StatusResponse carries a null record when the user never submitted.
type StatusResponse struct {
	Record    *RecordResponse `json:"record"`
	KYCStatus string          `json:"kyc_status"`
}

type LedgerStatusResponse struct {
	Verified bool `json:"verified"`
}

// RecordResponse is the public view of a verification record. The raw
// document number and local artifact paths are never exposed.
type RecordResponse struct {
	ID                string                                       `json:"id"`
	UserID            string                                       `json:"user_id"`
	DocumentType      string                                       `json:"document_type"`
	Status            string                                       `json:"status"`
	RejectionReason   string                                       `json:"rejection_reason,omitempty"`
	RejectionCategory string                                       `json:"rejection_category,omitempty"`
	Note              string                                       `json:"note,omitempty"`
	Integrity         models.Integrity                             `json:"integrity"`
	Uploads           map[models.ArtifactKind]models.ContentUpload `json:"uploads"`
	AI                AIResponse                                   `json:"ai"`
	Credential        *models.Credential                           `json:"credential,omitempty"`
	Ledger            *models.LedgerRegistration                   `json:"ledger,omitempty"`
	SubmittedFrom     string                                       `json:"submitted_from,omitempty"`
	SubmittedAt       time.Time                                    `json:"submitted_at"`
	UpdatedAt         time.Time                                    `json:"updated_at"`
	CompletedAt       *time.Time                                   `json:"completed_at,omitempty"`
}

// FromRecord returns nil for a nil record.
func FromRecord(r *models.VerificationRecord) *RecordResponse {
	if r == nil {
		return nil
	}
	uploads := r.Uploads
	if uploads == nil {
		uploads = map[models.ArtifactKind]models.ContentUpload{}
	}
	return &RecordResponse{
		ID:                r.ID.String(),
		UserID:            r.UserID.String(),
		DocumentType:      string(r.DocumentType),
		Status:            string(r.Status),
		RejectionReason:   r.RejectionReason,
		RejectionCategory: string(r.RejectionCategory),
		Note:              r.Note,
		Integrity:         r.Integrity,
		Uploads:           uploads,
		AI:                fromAI(r.AI),
		Credential:        r.Credential,
		Ledger:            r.Ledger,
		SubmittedFrom:     r.SubmittedFrom,
		SubmittedAt:       r.SubmittedAt,
		UpdatedAt:         r.UpdatedAt,
		CompletedAt:       r.CompletedAt,
	}
}

// AIResponse omits the provider's OCR output, which can echo the document number.
type AIResponse struct {
	Status         string          `json:"status"`
	Decision       string          `json:"decision,omitempty"`
	Confidence     float64         `json:"confidence"`
	FaceMatchScore float64         `json:"face_match_score"`
	Steps          []models.AIStep `json:"steps"`
	Errors         []string        `json:"errors,omitempty"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

func fromAI(a models.AIVerification) AIResponse {
	return AIResponse{
		Status:         string(a.Status),
		Decision:       a.Decision,
		Confidence:     a.Confidence,
		FaceMatchScore: a.FaceMatchScore,
		Steps:          a.Steps,
		Errors:         a.Errors,
		StartedAt:      a.StartedAt,
		FinishedAt:     a.FinishedAt,
	}
}

type ListResponse struct {
	Records []*RecordResponse `json:"records"`
	Total   int               `json:"total"`
	Offset  int               `json:"offset"`
	Limit   int               `json:"limit"`
}

func FromListResult(res *service.ListResult) *ListResponse {
	records := make([]*RecordResponse, 0, len(res.Records))
	for _, r := range res.Records {
		records = append(records, FromRecord(r))
	}
	return &ListResponse{Records: records, Total: res.Total, Offset: res.Offset, Limit: res.Limit}
}

type StatsResponse struct {
	ByStatus map[string]int `json:"by_status"`
	Total    int            `json:"total"`
	InFlight int            `json:"in_flight"`
}

func FromStats(s *service.Stats) *StatsResponse {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, n := range s.ByStatus {
		byStatus[string(status)] = n
	}
	return &StatsResponse{ByStatus: byStatus, Total: s.Total, InFlight: s.InFlight}
}

type RepairResultResponse struct {
	RecordID string `json:"record_id"`
	From     string `json:"from"`
	Status   string `json:"status"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

type RepairResponse struct {
	Attempted int                    `json:"attempted"`
	Repaired  int                    `json:"repaired"`
	Failed    int                    `json:"failed"`
	Skipped   int                    `json:"skipped"`
	Results   []RepairResultResponse `json:"results"`
}

func FromRepairReport(r *service.RepairReport) *RepairResponse {
	results := make([]RepairResultResponse, 0, len(r.Results))
	for _, res := range r.Results {
		results = append(results, RepairResultResponse{
			RecordID: res.RecordID.String(),
			From:     string(res.From),
			Status:   string(res.Status),
			Outcome:  res.Outcome,
			Error:    res.Error,
		})
	}
	return &RepairResponse{
		Attempted: r.Attempted,
		Repaired:  r.Repaired,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Results:   results,
	}
}
