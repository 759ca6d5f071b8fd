// Package megaapi talks to the Mega API endpoint and the transient content
// URLs it hands out. It never retries.
package megaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const DefaultAPIURL = "https://g.api.mega.co.nz/cs"

// FileMetadata is the answer to a "g" request for a public file.
type FileMetadata struct {
	SizeBytes           int64
	EncryptedAttributes string
	DownloadURL         string
}

type Client struct {
	client    *http.Client
	apiURL    string
	requestID uint64
}

// NewClient returns a client for apiURL. Empty apiURL means DefaultAPIURL and a
// nil httpClient gets a 20s timeout.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		client:    httpClient,
		apiURL:    apiURL,
		requestID: uint64(time.Now().UnixNano()),
	}
}

type fileRequest struct {
	Action string `json:"a"`
	G      string `json:"g"`
	SSL    string `json:"ssl"`
	Handle string `json:"p"`
}

type fileResponse struct {
	Size        *int64  `json:"s"`
	Attributes  *string `json:"at"`
	DownloadURL *string `json:"g"`
	ErrorCode   int     `json:"e"`
}

// RequestDownloadURL fetches size, encrypted attributes and a download URL for
// a public file handle.
func (c *Client) RequestDownloadURL(ctx context.Context, fileID string) (*FileMetadata, error) {
	requestID := atomic.AddUint64(&c.requestID, 1)
	requestURL := c.apiURL
	if strings.Contains(requestURL, "?") {
		requestURL += "&id=" + strconv.FormatUint(requestID, 10)
	} else {
		requestURL += "?id=" + strconv.FormatUint(requestID, 10)
	}

	payload, err := json.Marshal([]fileRequest{{Action: "g", G: "1", SSL: "1", Handle: fileID}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w:%d", ErrHTTPStatus, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return decodeFileResponse(raw)
}

func decodeFileResponse(raw []byte) (*FileMetadata, error) {
	var body []json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		// Request-level failures come back as a bare number.
		var code int
		if json.Unmarshal(raw, &code) == nil && code < 0 {
			return nil, mapAPIError(code)
		}
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrBadResponse)
	}

	var code int
	if err := json.Unmarshal(body[0], &code); err == nil {
		return nil, mapAPIError(code)
	}

	var out fileResponse
	if err := json.Unmarshal(body[0], &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if out.ErrorCode != 0 {
		return nil, mapAPIError(out.ErrorCode)
	}
	switch {
	case out.Size == nil:
		return nil, fmt.Errorf("%w: size missing", ErrBadResponse)
	case out.Attributes == nil || *out.Attributes == "":
		return nil, fmt.Errorf("%w: attributes missing", ErrBadResponse)
	case out.DownloadURL == nil || *out.DownloadURL == "":
		return nil, fmt.Errorf("%w: download url missing", ErrBadResponse)
	}
	return &FileMetadata{
		SizeBytes:           *out.Size,
		EncryptedAttributes: *out.Attributes,
		DownloadURL:         *out.DownloadURL,
	}, nil
}

// Open issues the content GET and returns the body unread. Callers close it.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w:%d", ErrHTTPStatus, resp.StatusCode)
	}
	return &networkBody{rc: resp.Body}, nil
}

// FetchBytes downloads the whole content body.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	body, err := c.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// networkBody tags read failures as network errors so they stay apart from
// decryption failures further down the pipe.
type networkBody struct {
	rc io.ReadCloser
}

func (b *networkBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return n, err
}

func (b *networkBody) Close() error {
	return b.rc.Close()
}
