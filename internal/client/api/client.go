// Package api implements the HTTP client for the Lockbox server. The
// WebAuthn ceremonies themselves run in a browser; this client covers the
// authenticated surface: key material, credential listing, and blob URLs.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
)

// KeyMaterial is the wrapped vault key bundle as stored on the server. The
// server never sees the plaintext vault key.
type KeyMaterial struct {
	Salt       []byte
	WrappedKey []byte
	Nonce      []byte
}

// Credential describes one registered passkey, as reported by the server.
type Credential struct {
	CredentialID string `json:"credential_id"`
	Name         string `json:"name"`
	Class        string `json:"class"`
	CreatedAt    string `json:"created_at"`
	LastUsedAt   string `json:"last_used_at,omitempty"`
}

// UploadTarget is a presigned upload slot: the storage key to remember and
// the URL to PUT the encrypted blob to.
type UploadTarget struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type keyMaterialPayload struct {
	Salt       string `json:"salt"`
	WrappedKey string `json:"wrapped_key"`
	Nonce      string `json:"nonce"`
}

type downloadURLPayload struct {
	URL string `json:"url"`
}

// Client is a thin wrapper over net/http bound to one server base URL.
// SetToken installs the bearer session token for authenticated calls.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken installs the session token obtained from a browser ceremony.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Ping checks server liveness via the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return ErrUnavailable
	}
	return nil
}

// KeyMaterial fetches the wrapped vault key bundle. A vault that was never
// initialized yields common.ErrorNotFound.
func (c *Client) KeyMaterial(ctx context.Context) (*KeyMaterial, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/vault/keymaterial", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var payload keyMaterialPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return decodeKeyMaterial(&payload)
}

// InitializeKeyMaterial uploads the first wrapped vault key. The server is
// first-write-wins: a second attempt yields common.ErrorAlreadyExists.
func (c *Client) InitializeKeyMaterial(ctx context.Context, km *KeyMaterial) error {
	return c.putKeyMaterial(ctx, http.MethodPost, km)
}

// RotateKeyMaterial replaces the stored bundle after a secret phrase change.
func (c *Client) RotateKeyMaterial(ctx context.Context, km *KeyMaterial) error {
	return c.putKeyMaterial(ctx, http.MethodPut, km)
}

func (c *Client) putKeyMaterial(ctx context.Context, method string, km *KeyMaterial) error {
	payload := keyMaterialPayload{
		Salt:       base64.StdEncoding.EncodeToString(km.Salt),
		WrappedKey: base64.StdEncoding.EncodeToString(km.WrappedKey),
		Nonce:      base64.StdEncoding.EncodeToString(km.Nonce),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, method, "/api/vault/keymaterial", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer drain(resp)
	return statusError(resp.StatusCode)
}

// Credentials lists the passkeys registered for the authenticated identity.
func (c *Client) Credentials(ctx context.Context) ([]Credential, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/credentials", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var creds []Credential
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

// UploadURL asks the server for a presigned upload slot.
func (c *Client) UploadURL(ctx context.Context) (*UploadTarget, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/blobs/upload-url", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var target UploadTarget
	if err := json.NewDecoder(resp.Body).Decode(&target); err != nil {
		return nil, fmt.Errorf("decode upload target: %w", err)
	}
	return &target, nil
}

// DownloadURL asks the server for a presigned download URL for a blob key
// previously obtained from UploadURL.
func (c *Client) DownloadURL(ctx context.Context, key string) (string, error) {
	path := "/api/blobs/download-url?key=" + url.QueryEscape(key)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	if err := statusError(resp.StatusCode); err != nil {
		return "", err
	}

	var payload downloadURLPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode download url: %w", err)
	}
	return payload.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return common.ErrorNotFound
	case code == http.StatusConflict:
		return common.ErrorAlreadyExists
	default:
		return fmt.Errorf("unexpected server status %d", code)
	}
}

func decodeKeyMaterial(payload *keyMaterialPayload) (*KeyMaterial, error) {
	salt, err := base64.StdEncoding.DecodeString(payload.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(payload.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	return &KeyMaterial{Salt: salt, WrappedKey: wrapped, Nonce: nonce}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
