package ipfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"kycgate/internal/kyc/ports"
)

// Local writes artifacts under dir named by their CIDv1 (raw codec, sha2-256),
// so the identifiers match what an IPFS node would assign to a raw block.
type Local struct {
	dir     string
	gateway string
}

func NewLocal(dir, gatewayURL string) *Local {
	return &Local{dir: dir, gateway: strings.TrimRight(gatewayURL, "/")}
}

// ComputeCID returns the CIDv1 of data without storing it.
func ComputeCID(data []byte) (cid.Cid, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

func (l *Local) Upload(_ context.Context, file ports.ContentFile) (ports.UploadResult, error) {
	c, err := ComputeCID(file.Data)
	if err != nil {
		return ports.UploadResult{}, err
	}
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return ports.UploadResult{}, fmt.Errorf("create content dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, c.String()), file.Data, 0o640); err != nil {
		return ports.UploadResult{}, fmt.Errorf("write content: %w", err)
	}
	return ports.UploadResult{CID: c.String(), Size: int64(len(file.Data)), Provider: ProviderLocal}, nil
}

func (l *Local) GatewayURL(c string) string {
	if l.gateway == "" || c == "" {
		return ""
	}
	return l.gateway + "/" + c
}

// Disabled refuses every upload; the pipeline records nothing and continues.
type Disabled struct{}

// ErrDisabled is returned by Disabled.Upload.
var ErrDisabled = errors.New("content store disabled")

func (Disabled) Upload(context.Context, ports.ContentFile) (ports.UploadResult, error) {
	return ports.UploadResult{}, ErrDisabled
}

func (Disabled) GatewayURL(string) string { return "" }
