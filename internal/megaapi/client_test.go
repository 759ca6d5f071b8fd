package megaapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponder(t *testing.T, status int, body string, check func(*http.Request)) *http.Client {
	t.Helper()
	return &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if check != nil {
				check(r)
			}
			resp := &http.Response{
				StatusCode: status,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader(body)),
			}
			resp.Header.Set("Content-Type", "application/json")
			return resp, nil
		}),
	}
}

func TestRequestDownloadURL(t *testing.T) {
	var gotIDs []string
	client := jsonResponder(t, http.StatusOK,
		`[{"g":"https://dl.example.com/file.bin","s":12345,"at":"attrblob","msd":1}]`,
		func(r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/cs", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			gotIDs = append(gotIDs, r.URL.Query().Get("id"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var payload []map[string]string
			require.NoError(t, json.Unmarshal(body, &payload))
			assert.Equal(t, []map[string]string{{"a": "g", "g": "1", "ssl": "1", "p": "AbCdEf12"}}, payload)
		})

	c := NewClient("https://api.test/cs", client)
	md, err := c.RequestDownloadURL(context.Background(), "AbCdEf12")
	require.NoError(t, err)
	assert.Equal(t, &FileMetadata{
		SizeBytes:           12345,
		EncryptedAttributes: "attrblob",
		DownloadURL:         "https://dl.example.com/file.bin",
	}, md)

	_, err = c.RequestDownloadURL(context.Background(), "AbCdEf12")
	require.NoError(t, err)
	require.Len(t, gotIDs, 2)
	assert.NotEmpty(t, gotIDs[0])
	assert.NotEqual(t, gotIDs[0], gotIDs[1])
}

func TestRequestDownloadURLAppendsIDToExistingQuery(t *testing.T) {
	client := jsonResponder(t, http.StatusOK, `[{"g":"u","s":0,"at":"a"}]`, func(r *http.Request) {
		assert.Equal(t, "x", r.URL.Query().Get("v"))
		assert.NotEmpty(t, r.URL.Query().Get("id"))
	})
	md, err := NewClient("https://api.test/cs?v=x", client).RequestDownloadURL(context.Background(), "AbCdEf12")
	require.NoError(t, err)
	assert.Equal(t, int64(0), md.SizeBytes)
}

func TestRequestDownloadURLErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "http status", status: http.StatusServiceUnavailable, body: ``, wantErr: ErrHTTPStatus},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: ErrBadResponse},
		{name: "object not array", status: http.StatusOK, body: `{"g":"u","s":1,"at":"a"}`, wantErr: ErrBadResponse},
		{name: "empty array", status: http.StatusOK, body: `[]`, wantErr: ErrBadResponse},
		{name: "missing url", status: http.StatusOK, body: `[{"s":1,"at":"a"}]`, wantErr: ErrBadResponse},
		{name: "missing size", status: http.StatusOK, body: `[{"g":"u","at":"a"}]`, wantErr: ErrBadResponse},
		{name: "missing attributes", status: http.StatusOK, body: `[{"g":"u","s":1}]`, wantErr: ErrBadResponse},
		{name: "wrong field type", status: http.StatusOK, body: `[{"g":"u","s":"big","at":"a"}]`, wantErr: ErrBadResponse},
		{name: "not found", status: http.StatusOK, body: `[-9]`, wantErr: ErrNotFound},
		{name: "quota", status: http.StatusOK, body: `[-17]`, wantErr: ErrQuotaExceeded},
		{name: "bare error code", status: http.StatusOK, body: `-3`, wantErr: ErrTemporarilyOff},
		{name: "login", status: http.StatusOK, body: `[-11]`, wantErr: ErrLoginRequired},
		{name: "embedded error", status: http.StatusOK, body: `[{"e":-18}]`, wantErr: ErrTemporarilyOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("https://api.test/cs", jsonResponder(t, tt.status, tt.body, nil))
			md, err := c.RequestDownloadURL(context.Background(), "AbCdEf12")
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, ErrNetwork)
			assert.Nil(t, md)
		})
	}
}

func TestUnknownAPIErrorCode(t *testing.T) {
	c := NewClient("https://api.test/cs", jsonResponder(t, http.StatusOK, `[-2]`, nil))
	_, err := c.RequestDownloadURL(context.Background(), "AbCdEf12")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, -2, apiErr.Code)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "mega_api_error:-2", err.Error())
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	_, err := NewClient("https://api.test/cs", client).RequestDownloadURL(context.Background(), "AbCdEf12")
	require.ErrorIs(t, err, ErrNetwork)
}

func TestFetchBytesAndOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("ciphertext-bytes"))
	}))
	defer srv.Close()

	c := NewClient("", srv.Client())
	got, err := c.FetchBytes(context.Background(), srv.URL+"/dl")
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext-bytes"), got)

	body, err := c.Open(context.Background(), srv.URL+"/dl")
	require.NoError(t, err)
	streamed, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, got, streamed)

	_, err = c.FetchBytes(context.Background(), srv.URL+"/missing")
	require.ErrorIs(t, err, ErrHTTPStatus)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(" ", nil)
	assert.Equal(t, DefaultAPIURL, c.apiURL)
	require.NotNil(t, c.client)
	assert.NotZero(t, c.client.Timeout)
}
