package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/dvoronkov/lockbox/internal/logging"
	"github.com/dvoronkov/lockbox/internal/server/challenges"
	"github.com/dvoronkov/lockbox/internal/server/repositories/repomanager"
	"github.com/dvoronkov/lockbox/internal/server/session"
	"github.com/dvoronkov/lockbox/internal/server/vault"
	"github.com/dvoronkov/lockbox/internal/server/webauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRPID   = "vault.example.com"
	testRPName = "Lockbox"
	testOrigin = "https://vault.example.com"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	repos := repomanager.NewMemoryRepositoryManager()

	authority, err := webauthn.NewService(webauthn.Params{
		Repos:      repos,
		Challenges: challenges.NewRegistry(challenges.DefaultTTL),
		Logger:     log,
		RPID:       testRPID,
		RPName:     testRPName,
		RPOrigins:  []string{testOrigin},
	})
	require.NoError(t, err)

	srv := NewServer(Params{
		Address:        ":0",
		Logger:         log,
		Authority:      authority,
		Sessions:       session.NewIssuer([]byte("test-secret"), time.Hour),
		Vault:          vault.NewService(nil, repos, log),
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, token string) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// registerOverHTTP drives the full registration ceremony through the HTTP
// endpoints and returns a session token.
func registerOverHTTP(t *testing.T, ts *httptest.Server, userName string, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) string {
	t.Helper()
	rp := virtualwebauthn.RelyingParty{Name: testRPName, ID: testRPID, Origin: testOrigin}

	resp := postJSON(t, ts.URL+"/api/register/begin", map[string]string{
		"username":     userName,
		"display_name": "Test User",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var creation protocol.CredentialCreation
	decodeResponse(t, resp, &creation)
	optionsJSON, err := json.Marshal(creation.Response)
	require.NoError(t, err)
	attOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	attestation := virtualwebauthn.CreateAttestationResponse(rp, auth, cred, *attOptions)

	resp = postJSON(t, ts.URL+"/api/register/finish", map[string]any{
		"username":        userName,
		"credential_name": "test key",
		"credential":      json.RawMessage(attestation),
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess sessionResponse
	decodeResponse(t, resp, &sess)
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

// loginOverHTTP drives the full authentication ceremony through the HTTP
// endpoints and returns the response to the finish call.
func loginOverHTTP(t *testing.T, ts *httptest.Server, userName string, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) *http.Response {
	t.Helper()
	rp := virtualwebauthn.RelyingParty{Name: testRPName, ID: testRPID, Origin: testOrigin}

	resp := postJSON(t, ts.URL+"/api/login/begin", map[string]string{"username": userName}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var assertion protocol.CredentialAssertion
	decodeResponse(t, resp, &assertion)
	optionsJSON, err := json.Marshal(assertion.Response)
	require.NoError(t, err)
	asrtOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	response := virtualwebauthn.CreateAssertionResponse(rp, auth, cred, *asrtOptions)

	return postJSON(t, ts.URL+"/api/login/finish", map[string]any{
		"username":   userName,
		"credential": json.RawMessage(response),
	}, "")
}

func TestRegistrationAndLoginOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	token := registerOverHTTP(t, ts, "anna", auth, cred)
	require.NotEmpty(t, token)
	auth.AddCredential(cred)

	cred.Counter = 1
	resp := loginOverHTTP(t, ts, "anna", auth, cred)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess sessionResponse
	decodeResponse(t, resp, &sess)
	assert.NotEmpty(t, sess.Token)
}

func TestLoginUnknownUserIsGeneric(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/login/begin", map[string]string{"username": "ghost"}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, msgAuthenticationFailed, body.Error)
}

func TestCounterRegressionOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	registerOverHTTP(t, ts, "bob", auth, cred)
	auth.AddCredential(cred)

	cred.Counter = 5
	resp := loginOverHTTP(t, ts, "bob", auth, cred)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Stale counter: rejected with the same generic message as any other
	// authentication failure.
	cred.Counter = 2
	resp = loginOverHTTP(t, ts, "bob", auth, cred)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVaultKeyMaterialLifecycle(t *testing.T) {
	ts := newTestServer(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	token := registerOverHTTP(t, ts, "carol", auth, cred)

	// Not initialized yet.
	resp := getJSON(t, ts.URL+"/api/vault/keymaterial", token)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	material := map[string]string{
		"salt":        "c2FsdC1ieXRlcw==",
		"wrapped_key": "d3JhcHBlZC1rZXk=",
		"nonce":       "bm9uY2UtYnl0ZXM=",
	}
	resp = postJSON(t, ts.URL+"/api/vault/keymaterial", material, token)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second initialize must not overwrite.
	resp = postJSON(t, ts.URL+"/api/vault/keymaterial", material, token)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = getJSON(t, ts.URL+"/api/vault/keymaterial", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got keyMaterialPayload
	decodeResponse(t, resp, &got)
	assert.Equal(t, material["salt"], got.Salt)
	assert.Equal(t, material["wrapped_key"], got.WrappedKey)
	assert.Equal(t, material["nonce"], got.Nonce)

	// Rotation replaces the stored material.
	rotated := map[string]string{
		"salt":        "bmV3LXNhbHQ=",
		"wrapped_key": "bmV3LXdyYXBwZWQ=",
		"nonce":       "bmV3LW5vbmNl",
	}
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/vault/keymaterial", bytes.NewReader(mustJSON(t, rotated)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	putResp.Body.Close()
	require.Equal(t, http.StatusNoContent, putResp.StatusCode)

	resp = getJSON(t, ts.URL+"/api/vault/keymaterial", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &got)
	assert.Equal(t, rotated["salt"], got.Salt)
}

func TestAuthenticatedEndpointsRequireToken(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts.URL+"/api/vault/keymaterial", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = getJSON(t, ts.URL+"/api/credentials", "garbage-token")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListCredentials(t *testing.T) {
	ts := newTestServer(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	token := registerOverHTTP(t, ts, "dave", auth, cred)

	resp := getJSON(t, ts.URL+"/api/credentials", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var creds []credentialResponse
	decodeResponse(t, resp, &creds)
	require.Len(t, creds, 1)
	assert.Equal(t, "test key", creds[0].Name)
	assert.NotEmpty(t, creds[0].CredentialID)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
