// Package aries issues credentials through an ACA-Py agent's admin API.
package aries

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers"
)

const providerID = "aries"

// Client sends issue-credential 2.0 offers over an established connection.
type Client struct {
	http         *resty.Client
	connectionID string
	credDefID    string
}

func New(adminURL, apiKey, connectionID, credDefID string, timeout time.Duration) *Client {
	hc := resty.New().SetBaseURL(strings.TrimRight(adminURL, "/")).SetTimeout(timeout)
	if apiKey != "" {
		hc.SetHeader("X-API-Key", apiKey)
	}
	return &Client{http: hc, connectionID: connectionID, credDefID: credDefID}
}

type previewAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type credentialPreview struct {
	Type       string             `json:"@type"`
	Attributes []previewAttribute `json:"attributes"`
}

type sendRequest struct {
	ConnectionID      string            `json:"connection_id"`
	Comment           string            `json:"comment"`
	AutoRemove        bool              `json:"auto_remove"`
	CredentialPreview credentialPreview `json:"credential_preview"`
	Filter            map[string]any    `json:"filter"`
}

type exchangeRecord struct {
	CredExID string `json:"cred_ex_id"`
	ThreadID string `json:"thread_id"`
	State    string `json:"state"`
}

// Issue offers a KYC credential carrying only hashed identity attributes.
func (c *Client) Issue(ctx context.Context, attrs ports.CredentialAttributes) (*ports.IssuedCredential, error) {
	if c.connectionID == "" {
		return nil, providers.NewProviderError(providers.ErrorInternal, providerID, "no connection configured", nil)
	}

	body := sendRequest{
		ConnectionID: c.connectionID,
		Comment:      "KYC verification credential",
		CredentialPreview: credentialPreview{
			Type: "issue-credential/2.0/credential-preview",
			Attributes: []previewAttribute{
				{Name: "record_id", Value: attrs.RecordID.String()},
				{Name: "document_type", Value: string(attrs.DocumentType)},
				{Name: "document_number_hash", Value: attrs.DocumentNumberHash},
				{Name: "merkle_root", Value: attrs.MerkleRoot},
				{Name: "confidence", Value: strconv.FormatFloat(attrs.Confidence, 'f', 4, 64)},
				{Name: "verified_at", Value: attrs.VerifiedAt.UTC().Format(time.RFC3339)},
			},
		},
		Filter: map[string]any{"indy": map[string]any{"cred_def_id": c.credDefID}},
	}

	var out exchangeRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/issue-credential-2.0/send")
	if err != nil {
		return nil, providers.FromTransportError(providerID, err)
	}
	if resp.IsError() {
		return nil, providers.FromHTTPStatus(providerID, resp.StatusCode(), resp.String())
	}
	if out.CredExID == "" {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "response missing cred_ex_id", nil)
	}

	credentialID := out.ThreadID
	if credentialID == "" {
		credentialID = fmt.Sprintf("cred-%s", out.CredExID)
	}
	return &ports.IssuedCredential{CredentialID: credentialID, ExchangeID: out.CredExID}, nil
}

// Health queries the agent's readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/status/ready")
	if err != nil {
		return providers.FromTransportError(providerID, err)
	}
	if resp.IsError() {
		return providers.FromHTTPStatus(providerID, resp.StatusCode(), resp.String())
	}
	return nil
}
