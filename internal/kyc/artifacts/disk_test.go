package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSave(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	recordID := id.NewRecordID()

	path, err := d.Save(context.Background(), recordID, models.ArtifactFront, pngHeader)
	require.NoError(t, err)

	assert.Equal(t, "front.png", filepath.Base(path))
	assert.Equal(t, recordID.String(), filepath.Base(filepath.Dir(path)))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)
}

func TestSave_CancelledContext(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Save(ctx, id.NewRecordID(), models.ArtifactSelfie, pngHeader)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir)
	require.NoError(t, err)
	recordID := id.NewRecordID()
	_, err = d.Save(context.Background(), recordID, models.ArtifactFront, []byte("data"))
	require.NoError(t, err)

	require.NoError(t, d.Remove(recordID))
	_, err = os.Stat(filepath.Join(dir, recordID.String()))
	assert.True(t, os.IsNotExist(err))
}
