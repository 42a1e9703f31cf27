package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// multipartMemory is how much of a form is buffered in memory before spilling to disk.
const multipartMemory = 8 << 20

// parseSubmission reads the multipart form. Field-level validation happens in
// the service; this only rejects bodies that cannot be read at all. Files are
// read up to one byte past the limit so oversize images are reported as such.
func (h *Handler) parseSubmission(w http.ResponseWriter, r *http.Request) (models.Submission, error) {
	// three images plus form fields
	r.Body = http.MaxBytesReader(w, r.Body, 3*(h.maxFileBytes+1)+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.Submission{}, dErrors.New(dErrors.CodeValidation, "request body too large").
				WithDetails("images must each be at most " + strconv.FormatInt(h.maxFileBytes, 10) + " bytes")
		}
		return models.Submission{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "expected a multipart/form-data body")
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	sub := models.Submission{
		DocumentType:   r.FormValue("document_type"),
		DocumentNumber: r.FormValue("document_number"),
	}
	var err error
	if sub.Front, err = h.formFile(r, "front"); err != nil {
		return models.Submission{}, err
	}
	if sub.Back, err = h.formFile(r, "back"); err != nil {
		return models.Submission{}, err
	}
	if sub.Selfie, err = h.formFile(r, "selfie"); err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

func (h *Handler) formFile(r *http.Request, field string) (*models.UploadedFile, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read "+field+" image")
	}
	defer f.Close()
	return readUpload(f, header, h.maxFileBytes)
}

func readUpload(f multipart.File, header *multipart.FileHeader, maxBytes int64) (*models.UploadedFile, error) {
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read uploaded image")
	}
	return &models.UploadedFile{Filename: header.Filename, Data: data}, nil
}

// parseListQuery reads status, user_id, offset and limit from the query string.
func parseListQuery(r *http.Request) (models.ListFilter, models.Page, error) {
	q := r.URL.Query()
	var (
		filter models.ListFilter
		page   models.Page
		bad    []string
	)

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			bad = append(bad, "status must be one of the verification statuses")
		} else {
			filter.Status = &status
		}
	}
	if raw := strings.TrimSpace(q.Get("user_id")); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			bad = append(bad, "user_id must be a UUID")
		} else {
			filter.UserID = &userID
		}
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			bad = append(bad, "offset must be a non-negative integer")
		}
		page.Offset = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			bad = append(bad, "limit must be a positive integer")
		}
		page.Limit = n
	}

	if len(bad) > 0 {
		return filter, page, dErrors.New(dErrors.CodeBadRequest, "invalid query parameters").WithDetails(bad...)
	}
	return filter, page, nil
}
