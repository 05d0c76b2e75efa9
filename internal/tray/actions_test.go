package tray

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverPort(t *testing.T, ts *httptest.Server) uint16 {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.ParseUint(u.Port(), 10, 16)
	require.NoError(t, err)
	return uint16(port)
}

func TestSnapshotLink(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/snapshot/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"abc123"}`))
	}))
	defer ts.Close()

	port := serverPort(t, ts)
	link, err := SnapshotLink(context.Background(), port)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:"+strconv.Itoa(int(port))+"/snapshot?token=abc123", link)
}

func TestSnapshotLinkEmptyToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":""}`))
	}))
	defer ts.Close()

	_, err := SnapshotLink(context.Background(), serverPort(t, ts))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty snapshot token")
}

func TestSnapshotLinkBackendError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := SnapshotLink(context.Background(), serverPort(t, ts))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 500")
}
