package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/verify", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "19900101-00001", body["idPrimary"])
		require.Equal(t, "Amina Hasan", body["idSecondary"])

		json.NewEncoder(w).Encode(Result{Verified: true, NormalizedName: "Amina Hassan"})
	}))
	defer srv.Close()

	cli := NewHTTPClient(srv.URL, "secret")
	result, err := cli.Verify(context.Background(), "19900101-00001", "Amina Hasan")
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "Amina Hassan", result.NormalizedName)
}

func TestHTTPClient_VerifyRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Verified: false, Error: "no such citizen"})
	}))
	defer srv.Close()

	cli := NewHTTPClient(srv.URL, "")
	result, err := cli.Verify(context.Background(), "00000000-00000", "Nobody")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, "no such citizen", result.Error)
}

func TestHTTPClient_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cli := NewHTTPClient(srv.URL, "")
	_, err := cli.Verify(context.Background(), "19900101-00001", "Amina")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPClient_UnreachableService(t *testing.T) {
	cli := NewHTTPClient("http://127.0.0.1:1", "")
	_, err := cli.Verify(context.Background(), "19900101-00001", "Amina")
	require.Error(t, err)
}

func TestMockClient_Verify(t *testing.T) {
	cli := MockClient{}

	result, err := cli.Verify(context.Background(), "19900101-00001", "Amina Hassan")
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "Amina Hassan", result.NormalizedName)

	result, err = cli.Verify(context.Background(), "", "Amina Hassan")
	require.NoError(t, err)
	assert.False(t, result.Verified)
}
