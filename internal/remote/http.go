package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore is a Store that talks to a todomirror server.
type HTTPStore struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPStore creates a client for the mirror at baseURL.
func NewHTTPStore(baseURL string, timeout time.Duration) (*HTTPStore, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url must be http or https, got %q", baseURL)
	}
	return &HTTPStore{
		base:   u,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Get fetches the JSON value at path.
func (s *HTTPStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	resp, err := s.do(ctx, http.MethodGet, s.endpoint("v1/data", path), "", nil)
	if err != nil {
		return nil, unreachable(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound(path)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unreachable(path, err)
	}
	return data, nil
}

// Set replaces the JSON value at path.
func (s *HTTPStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	resp, err := s.do(ctx, http.MethodPut, s.endpoint("v1/data", path), "application/json", bytes.NewReader(value))
	if err != nil {
		return unreachable(path, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// PutBlob uploads body to path.
func (s *HTTPStore) PutBlob(ctx context.Context, path, contentType string, body io.Reader) error {
	resp, err := s.do(ctx, http.MethodPut, s.endpoint("v1/blobs", path), contentType, body)
	if err != nil {
		return unreachable(path, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// BlobURL asks the mirror for the download URL of the blob at path.
func (s *HTTPStore) BlobURL(ctx context.Context, path string) (string, error) {
	resp, err := s.do(ctx, http.MethodGet, s.endpoint("v1/blobs", path)+"/url", "", nil)
	if err != nil {
		return "", unreachable(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", notFound(path)
	}
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode blob url: %w", err)
	}
	return body.URL, nil
}

// Ping checks the mirror's health endpoint.
func (s *HTTPStore) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, s.base.String()+"/health", "", nil)
	if err != nil {
		return unreachable("health", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unreachable("health", fmt.Errorf("status %s", resp.Status))
	}
	return nil
}

func (s *HTTPStore) endpoint(prefix, path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.base.String() + "/" + prefix + "/" + strings.Join(segs, "/")
}

func (s *HTTPStore) do(ctx context.Context, method, target, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.client.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("remote returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
}
