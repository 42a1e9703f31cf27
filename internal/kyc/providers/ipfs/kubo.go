// Package ipfs stores artifacts in content-addressed storage: a Kubo node
// over its RPC API, a local directory keyed by CID, or nothing at all.
package ipfs

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ipfs/go-cid"

	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers"
)

const (
	ProviderKubo  = "ipfs-kubo"
	ProviderLocal = "ipfs-local"
)

// Kubo pins files through the /api/v0/add RPC.
type Kubo struct {
	http    *resty.Client
	gateway string
}

func NewKubo(apiURL, gatewayURL string, timeout time.Duration) *Kubo {
	return &Kubo{
		http:    resty.New().SetBaseURL(strings.TrimRight(apiURL, "/")).SetTimeout(timeout),
		gateway: strings.TrimRight(gatewayURL, "/"),
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func (k *Kubo) Upload(ctx context.Context, file ports.ContentFile) (ports.UploadResult, error) {
	var out addResponse
	resp, err := k.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"pin": "true", "cid-version": "1"}).
		SetFileReader("file", file.Name, bytes.NewReader(file.Data)).
		SetResult(&out).
		Post("/api/v0/add")
	if err != nil {
		return ports.UploadResult{}, providers.FromTransportError(ProviderKubo, err)
	}
	if resp.IsError() {
		return ports.UploadResult{}, providers.FromHTTPStatus(ProviderKubo, resp.StatusCode(), resp.String())
	}

	c, err := cid.Decode(out.Hash)
	if err != nil {
		return ports.UploadResult{}, providers.NewProviderError(providers.ErrorBadData, ProviderKubo, "invalid cid in response", err)
	}

	size, err := strconv.ParseInt(out.Size, 10, 64)
	if err != nil {
		size = int64(len(file.Data))
	}
	return ports.UploadResult{CID: c.String(), Size: size, Provider: ProviderKubo}, nil
}

func (k *Kubo) GatewayURL(c string) string {
	if k.gateway == "" || c == "" {
		return ""
	}
	return k.gateway + "/" + c
}
