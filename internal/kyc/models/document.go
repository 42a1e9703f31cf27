package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DocumentType is the kind of identity document submitted.
type DocumentType string

const (
	DocumentAadhaar        DocumentType = "aadhaar"
	DocumentPAN            DocumentType = "pan"
	DocumentVoterID        DocumentType = "voter_id"
	DocumentDrivingLicense DocumentType = "driving_license"
	DocumentPassport       DocumentType = "passport"
	DocumentNationalID     DocumentType = "national_id"
)

type documentRule struct {
	pattern      *regexp.Regexp
	format       string
	requiresBack bool
}

// Numbers are matched after NormalizeDocumentNumber.
var documentRules = map[DocumentType]documentRule{
	DocumentAadhaar:        {regexp.MustCompile(`^\d{12}$`), "12 digits", false},
	DocumentPAN:            {regexp.MustCompile(`^[A-Z]{5}\d{4}[A-Z]$`), "5 letters, 4 digits, 1 letter", false},
	DocumentVoterID:        {regexp.MustCompile(`^[A-Z]{3}\d{7}$`), "3 letters followed by 7 digits", true},
	DocumentDrivingLicense: {regexp.MustCompile(`^[A-Z]{2}\d{13}$`), "2 letters followed by 13 digits", true},
	DocumentPassport:       {regexp.MustCompile(`^[A-Z]\d{7}$`), "1 letter followed by 7 digits", false},
	DocumentNationalID:     {regexp.MustCompile(`^[A-Z0-9]{8,15}$`), "8 to 15 letters or digits", false},
}

// DocumentTypes returns the recognized types in stable order.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, 0, len(documentRules))
	for t := range documentRules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t DocumentType) IsValid() bool {
	_, ok := documentRules[t]
	return ok
}

// RequiresBack reports whether the back side of the document must be uploaded.
func (t DocumentType) RequiresBack() bool {
	return documentRules[t].requiresBack
}

// NormalizeDocumentNumber strips spaces and hyphens and upper-cases the number.
func NormalizeDocumentNumber(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateNumber checks a normalized number against the type's format.
func (t DocumentType) ValidateNumber(number string) error {
	rule, ok := documentRules[t]
	if !ok {
		return fmt.Errorf("unsupported document type %q", t)
	}
	if !rule.pattern.MatchString(number) {
		return fmt.Errorf("document_number must be %s for %s", rule.format, t)
	}
	return nil
}
