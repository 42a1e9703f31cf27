package ipfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers"
	"kycgate/internal/platform/config"
)

func TestLocal_UploadIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	store := NewLocal(dir, "http://gw/ipfs")

	res, err := store.Upload(context.Background(), ports.ContentFile{Name: "front", Data: []byte("front-bytes")})
	require.NoError(t, err)

	assert.Equal(t, ProviderLocal, res.Provider)
	assert.Equal(t, int64(len("front-bytes")), res.Size)

	parsed, err := cid.Decode(res.CID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), parsed.Version())
	assert.Equal(t, uint64(cid.Raw), parsed.Type())

	stored, err := os.ReadFile(filepath.Join(dir, res.CID))
	require.NoError(t, err)
	assert.Equal(t, "front-bytes", string(stored))

	again, err := store.Upload(context.Background(), ports.ContentFile{Name: "copy", Data: []byte("front-bytes")})
	require.NoError(t, err)
	assert.Equal(t, res.CID, again.CID)
	assert.Equal(t, "http://gw/ipfs/"+res.CID, store.GatewayURL(res.CID))
}

func TestKubo_Upload(t *testing.T) {
	want, err := ComputeCID([]byte("selfie"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/add", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("pin"))
		assert.Equal(t, "1", r.URL.Query().Get("cid-version"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Name":"selfie","Hash":"` + want.String() + `","Size":"14"}`))
	}))
	defer srv.Close()

	k := NewKubo(srv.URL, "https://ipfs.io/ipfs/", time.Second)
	res, err := k.Upload(context.Background(), ports.ContentFile{Name: "selfie", Data: []byte("selfie")})

	require.NoError(t, err)
	assert.Equal(t, want.String(), res.CID)
	assert.Equal(t, int64(14), res.Size)
	assert.Equal(t, ProviderKubo, res.Provider)
	assert.Equal(t, "https://ipfs.io/ipfs/"+want.String(), k.GatewayURL(res.CID))
}

func TestKubo_RejectsMalformedCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Name":"x","Hash":"not-a-cid","Size":"1"}`))
	}))
	defer srv.Close()

	_, err := NewKubo(srv.URL, "", time.Second).Upload(context.Background(), ports.ContentFile{Data: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, providers.ErrorBadData, providers.GetCategory(err))
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), ports.ContentFile{})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Empty(t, Disabled{}.GatewayURL("x"))
}

func TestNew_SelectsByMode(t *testing.T) {
	s, err := New(config.IPFSConfig{Mode: "kubo", APIURL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &Kubo{}, s)

	s, err = New(config.IPFSConfig{Mode: "disabled"})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, s)

	_, err = New(config.IPFSConfig{Mode: "s3"})
	assert.Error(t, err)
}
