package models

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x01}, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x02}, 32)...)
)

func img(data []byte) *UploadedFile { return &UploadedFile{Filename: "x", Data: data} }

func TestSubmission_Validate(t *testing.T) {
	t.Run("aadhaar with spaces and two images is accepted", func(t *testing.T) {
		v, problems := Submission{
			DocumentType:   "Aadhaar",
			DocumentNumber: "1234 5678 9012",
			Front:          img(jpegBytes),
			Selfie:         img(pngBytes),
		}.Validate(0)

		require.Empty(t, problems)
		assert.Equal(t, DocumentAadhaar, v.DocumentType)
		assert.Equal(t, "123456789012", v.DocumentNumber)
		assert.Len(t, v.Files, 2)
	})

	t.Run("driving license requires the back image", func(t *testing.T) {
		_, problems := Submission{
			DocumentType:   "driving_license",
			DocumentNumber: "MH1420110062821",
			Front:          img(jpegBytes),
			Selfie:         img(jpegBytes),
		}.Validate(0)

		assert.Equal(t, []string{"back image is required"}, problems)
	})

	t.Run("collects every problem at once", func(t *testing.T) {
		_, problems := Submission{
			DocumentType:   "library_card",
			DocumentNumber: "",
			Front:          img([]byte("plain text")),
		}.Validate(0)

		joined := strings.Join(problems, "|")
		assert.Contains(t, joined, "document_type must be one of")
		assert.Contains(t, joined, "document_number is required")
		assert.Contains(t, joined, "front image must be JPEG or PNG")
		assert.Contains(t, joined, "selfie image is required")
	})

	t.Run("number must match the type format", func(t *testing.T) {
		_, problems := Submission{
			DocumentType:   "pan",
			DocumentNumber: "ABCDE12345",
			Front:          img(jpegBytes),
			Selfie:         img(jpegBytes),
		}.Validate(0)

		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "pan")
	})

	t.Run("oversized and empty images", func(t *testing.T) {
		_, problems := Submission{
			DocumentType:   "passport",
			DocumentNumber: "A1234567",
			Front:          img(jpegBytes),
			Selfie:         img(nil),
		}.Validate(8)

		assert.Contains(t, problems, "front image exceeds 8 bytes")
		assert.Contains(t, problems, "selfie image is empty")
	})
}

func TestDocumentNumberFormats(t *testing.T) {
	tests := []struct {
		docType DocumentType
		number  string
		valid   bool
	}{
		{DocumentAadhaar, "123456789012", true},
		{DocumentAadhaar, "12345678901", false},
		{DocumentPAN, "ABCDE1234F", true},
		{DocumentVoterID, "ABC1234567", true},
		{DocumentDrivingLicense, "MH1420110062821", true},
		{DocumentPassport, "A1234567", true},
		{DocumentPassport, "12345678", false},
		{DocumentNationalID, "AB12345678", true},
		{DocumentNationalID, "1234567", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.docType)+"/"+tt.number, func(t *testing.T) {
			err := tt.docType.ValidateNumber(tt.number)
			assert.Equal(t, tt.valid, err == nil, err)
		})
	}
}
