// Package artifacts keeps the submitted images on local disk for the
// lifetime of the pipeline and for later audit.
package artifacts

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
)

// Disk writes artifacts under dir/<record id>/<kind>.<ext>.
type Disk struct {
	dir string
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) Save(ctx context.Context, recordID id.RecordID, kind models.ArtifactKind, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	recordDir := filepath.Join(d.dir, recordID.String())
	if err := os.MkdirAll(recordDir, 0o750); err != nil {
		return "", fmt.Errorf("create record dir: %w", err)
	}

	path := filepath.Join(recordDir, string(kind)+extension(data))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit %s artifact: %w", kind, err)
	}
	return path, nil
}

// Remove deletes every artifact of a record.
func (d *Disk) Remove(recordID id.RecordID) error {
	return os.RemoveAll(filepath.Join(d.dir, recordID.String()))
}

func extension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}
