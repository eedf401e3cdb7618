package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckNewerVersion(t *testing.T) {
	srv := feed(t, http.StatusOK, `{"version":"1.3.0","download_url":"https://example.com/p.zip","changelog":"Nuevo informe"}`)

	info, err := New("1.2.9", srv.URL, 0, nil).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Available)
	assert.Equal(t, "1.3.0", info.LatestVersion)
	assert.Equal(t, "https://example.com/p.zip", info.DownloadURL)
	assert.Equal(t, "Nuevo informe", info.Changelog)
}

func TestCheckUpToDate(t *testing.T) {
	srv := feed(t, http.StatusOK, `{"version":"v1.10.0"}`)

	for _, current := range []string{"1.10.0", "v1.10", "1.11.0"} {
		info, err := New(current, srv.URL, 0, nil).Check(context.Background())
		require.NoError(t, err, current)
		assert.False(t, info.Available, current)
	}
}

func TestCheckFailures(t *testing.T) {
	_, err := New("1.0.0", "", 0, nil).Check(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)

	srv := feed(t, http.StatusInternalServerError, `oops`)
	_, err = New("1.0.0", srv.URL, 0, nil).Check(context.Background())
	assert.ErrorContains(t, err, "status: 500")

	srv = feed(t, http.StatusOK, `{"version":"latest"}`)
	_, err = New("1.0.0", srv.URL, 0, nil).Check(context.Background())
	assert.ErrorContains(t, err, "invalid version")

	srv = feed(t, http.StatusOK, `not json`)
	_, err = New("1.0.0", srv.URL, 0, nil).Check(context.Background())
	assert.ErrorContains(t, err, "failed to parse")

	_, err = New("dev", srv.URL, 0, nil).Check(context.Background())
	assert.ErrorContains(t, err, "invalid current version")
}
