package regions

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteTable = `regions:
  - code: CAT
    description: Catamarca
    url: https://example.test/cat
  - code: SAL
    description: Salta
    url: https://example.test/sal
`

func TestFetch(t *testing.T) {
	client := NewClient(5 * time.Second)
	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://config.example.test/regions.yaml",
		httpmock.NewStringResponder(http.StatusOK, remoteTable))
	httpmock.RegisterResponder(http.MethodGet, "https://config.example.test/missing.yaml",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))
	httpmock.RegisterResponder(http.MethodGet, "https://config.example.test/broken.yaml",
		httpmock.NewStringResponder(http.StatusOK, "regions: [\n"))

	ctx := context.Background()

	got, err := Fetch(ctx, client, "https://config.example.test/regions.yaml")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CAT", got[0].Code)
	assert.Equal(t, "https://example.test/sal", got[1].URL)

	_, err = Fetch(ctx, client, "https://config.example.test/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = Fetch(ctx, client, "https://config.example.test/broken.yaml")
	assert.Error(t, err)

	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestLoadSource(t *testing.T) {
	client := NewClient(5 * time.Second)
	httpmock.ActivateNonDefault(client.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://config.example.test/regions.yaml",
		httpmock.NewStringResponder(http.StatusOK, remoteTable))

	remote, err := LoadSource(context.Background(), client, "http://config.example.test/regions.yaml")
	require.NoError(t, err)
	assert.Len(t, remote, 2)

	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(remoteTable), 0o644))

	local, err := LoadSource(context.Background(), client, path)
	require.NoError(t, err)
	assert.Equal(t, remote, local)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
