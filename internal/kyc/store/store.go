// Package store persists verification records and per-user KYC status.
//
// Both implementations enforce the same contract: at most one non-terminal
// record per user, integrity anchors written once at creation, and updates
// applied as read-modify-write under a row lock so a terminal record can
// never be overwritten by a late pipeline write.
package store

import "kycgate/internal/kyc/models"

// pin restores fields that are fixed at creation so a mutator cannot change them.
func pin(dst, orig *models.VerificationRecord) {
	dst.ID = orig.ID
	dst.UserID = orig.UserID
	dst.DocumentType = orig.DocumentType
	dst.DocumentNumber = orig.DocumentNumber
	dst.SubmittedAt = orig.SubmittedAt
	dst.SubmittedFrom = orig.SubmittedFrom
	dst.Artifacts = orig.Artifacts
	dst.Integrity = orig.Integrity
}
