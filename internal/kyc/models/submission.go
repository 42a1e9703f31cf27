package models

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultMaxFileBytes caps a single uploaded image.
const DefaultMaxFileBytes int64 = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// UploadedFile is an image received from the client.
type UploadedFile struct {
	Filename string
	Data     []byte
}

// ContentType sniffs the image type from its bytes rather than trusting the client.
func (f *UploadedFile) ContentType() string {
	return http.DetectContentType(f.Data)
}

// Submission is the raw input of a KYC submit call.
type Submission struct {
	DocumentType   string
	DocumentNumber string
	Front          *UploadedFile
	Back           *UploadedFile
	Selfie         *UploadedFile
}

// Files returns the present artifacts keyed by kind.
func (s Submission) Files() map[ArtifactKind]*UploadedFile {
	out := make(map[ArtifactKind]*UploadedFile, 3)
	if s.Front != nil {
		out[ArtifactFront] = s.Front
	}
	if s.Back != nil {
		out[ArtifactBack] = s.Back
	}
	if s.Selfie != nil {
		out[ArtifactSelfie] = s.Selfie
	}
	return out
}

// ValidatedSubmission is a submission that passed every field check.
type ValidatedSubmission struct {
	DocumentType   DocumentType
	DocumentNumber string
	Files          map[ArtifactKind]*UploadedFile
}

// Validate checks every field and returns all problems at once. No side effects.
func (s Submission) Validate(maxFileBytes int64) (ValidatedSubmission, []string) {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	var problems []string

	docType := DocumentType(strings.ToLower(strings.TrimSpace(s.DocumentType)))
	number := NormalizeDocumentNumber(s.DocumentNumber)

	switch {
	case docType == "":
		problems = append(problems, "document_type is required")
	case !docType.IsValid():
		names := make([]string, 0, len(documentRules))
		for _, t := range DocumentTypes() {
			names = append(names, string(t))
		}
		problems = append(problems, fmt.Sprintf("document_type must be one of: %s", strings.Join(names, ", ")))
	}

	if number == "" {
		problems = append(problems, "document_number is required")
	} else if docType.IsValid() {
		if err := docType.ValidateNumber(number); err != nil {
			problems = append(problems, err.Error())
		}
	}

	problems = append(problems, checkFile("front", s.Front, true, maxFileBytes)...)
	problems = append(problems, checkFile("back", s.Back, docType.RequiresBack(), maxFileBytes)...)
	problems = append(problems, checkFile("selfie", s.Selfie, true, maxFileBytes)...)

	if len(problems) > 0 {
		return ValidatedSubmission{}, problems
	}
	return ValidatedSubmission{
		DocumentType:   docType,
		DocumentNumber: number,
		Files:          s.Files(),
	}, nil
}

func checkFile(field string, f *UploadedFile, required bool, maxBytes int64) []string {
	if f == nil {
		if required {
			return []string{field + " image is required"}
		}
		return nil
	}
	if len(f.Data) == 0 {
		return []string{field + " image is empty"}
	}
	var problems []string
	if int64(len(f.Data)) > maxBytes {
		problems = append(problems, fmt.Sprintf("%s image exceeds %d bytes", field, maxBytes))
	}
	if !allowedImageTypes[f.ContentType()] {
		problems = append(problems, field+" image must be JPEG or PNG")
	}
	return problems
}
