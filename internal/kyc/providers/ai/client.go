// Package ai calls the document and face verification service.
package ai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers"
	"kycgate/pkg/platform/circuit"
)

const providerID = "ai"

// Decisions returned by the service.
const (
	DecisionVerified     = "verified"
	DecisionManualReview = "manual_review"
	DecisionRejected     = "rejected"
)

// Client talks to the verification service's multipart /analyze endpoint.
type Client struct {
	http    *resty.Client
	policy  providers.RetryPolicy
	breaker *circuit.Breaker
}

// Option configures the Client.
type Option func(*Client)

func WithRetryPolicy(p providers.RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithBreaker fails calls fast while the service keeps timing out or erroring.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New creates a client for baseURL. The timeout bounds each attempt.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:   resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(timeout),
		policy: providers.DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type documentValidation struct {
	Issues []string `json:"issues"`
}

type analyzeResponse struct {
	Success            bool               `json:"success"`
	Status             string             `json:"status"`
	RequestID          string             `json:"request_id"`
	FinalStatus        string             `json:"final_status"`
	FinalDecision      string             `json:"finalDecision"`
	Verified           bool               `json:"verified"`
	Confidence         float64            `json:"confidence"`
	FaceMatchScore     float64            `json:"faceMatchScore"`
	OCRConfidence      float64            `json:"ocrConfidence"`
	OCRText            string             `json:"ocr_text"`
	ExtractedData      map[string]any     `json:"extracted_data"`
	TamperDetection    float64            `json:"tamperDetection"`
	DocumentValidity   *bool              `json:"document_validity"`
	DocumentValidation documentValidation `json:"document_validation"`
	Message            string             `json:"message"`
	Errors             []string           `json:"errors"`
	Error              string             `json:"error"`
}

// Verify submits the artifacts and maps the service response to a fixed result.
// Retryable failures (timeouts, 5xx, 429) are retried per the client's policy.
func (c *Client) Verify(ctx context.Context, req ports.VerifyRequest) (*ports.VerifyResult, error) {
	return providers.Guard(ctx, c.breaker, providerID, func(ctx context.Context) (*ports.VerifyResult, error) {
		return providers.Do(ctx, c.policy, func(ctx context.Context) (*ports.VerifyResult, error) {
			return c.analyze(ctx, req)
		})
	})
}

func (c *Client) analyze(ctx context.Context, req ports.VerifyRequest) (*ports.VerifyResult, error) {
	var out analyzeResponse
	r := c.http.R().
		SetContext(ctx).
		SetFileReader("id_image", "front.jpg", bytes.NewReader(req.Front)).
		SetFileReader("selfie", "selfie.jpg", bytes.NewReader(req.Selfie)).
		SetFormData(map[string]string{
			"user_id":         req.UserID.String(),
			"document_type":   string(req.DocumentType),
			"document_number": req.DocumentNumber,
		}).
		SetResult(&out)
	if len(req.Back) > 0 {
		r.SetFileReader("document_back", "back.jpg", bytes.NewReader(req.Back))
	}

	resp, err := r.Post("/analyze")
	if err != nil {
		return nil, providers.FromTransportError(providerID, err)
	}
	if resp.IsError() {
		return nil, providers.FromHTTPStatus(providerID, resp.StatusCode(), resp.String())
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, fmt.Sprintf("analysis unsuccessful: %s", msg), nil)
	}
	return toResult(out), nil
}

func toResult(out analyzeResponse) *ports.VerifyResult {
	decision := out.FinalStatus
	if decision == "" {
		decision = out.FinalDecision
	}
	verified := out.Verified && (decision == "" || decision == DecisionVerified)
	if decision == "" {
		decision = DecisionRejected
		if verified {
			decision = DecisionVerified
		}
	}

	ocr := map[string]any{}
	for k, v := range out.ExtractedData {
		ocr[k] = v
	}
	if out.OCRText != "" {
		ocr["text"] = out.OCRText
	}
	if out.OCRConfidence > 0 {
		ocr["confidence"] = out.OCRConfidence
	}
	if out.TamperDetection > 0 {
		ocr["tamper_score"] = out.TamperDetection
	}

	errs := append([]string(nil), out.Errors...)
	errs = append(errs, out.DocumentValidation.Issues...)
	if !verified && len(errs) == 0 && out.Message != "" {
		errs = append(errs, out.Message)
	}

	return &ports.VerifyResult{
		Verified:       verified,
		Decision:       decision,
		Confidence:     out.Confidence,
		FaceMatchScore: out.FaceMatchScore,
		OCRData:        ocr,
		Errors:         errs,
	}
}

// Health calls the service's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return providers.FromTransportError(providerID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return providers.FromHTTPStatus(providerID, resp.StatusCode(), resp.String())
	}
	return nil
}
