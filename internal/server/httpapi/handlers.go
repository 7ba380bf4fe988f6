package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/server/webauthn"
)

// Request bodies carry the raw browser credential payload alongside our own
// fields; the payload is handed to the protocol parsers untouched.

type beginRegistrationRequest struct {
	UserName    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type finishRegistrationRequest struct {
	UserName       string          `json:"username"`
	CredentialName string          `json:"credential_name"`
	Credential     json.RawMessage `json:"credential"`
}

type beginAuthenticationRequest struct {
	UserName string `json:"username"`
}

type finishAuthenticationRequest struct {
	UserName   string          `json:"username"`
	Credential json.RawMessage `json:"credential"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

type credentialResponse struct {
	CredentialID string `json:"credential_id"`
	Name         string `json:"name"`
	Class        string `json:"class"`
	CreatedAt    string `json:"created_at"`
	LastUsedAt   string `json:"last_used_at,omitempty"`
}

type keyMaterialPayload struct {
	Salt       string `json:"salt"`
	WrappedKey string `json:"wrapped_key"`
	Nonce      string `json:"nonce"`
}

type uploadURLResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (s *Server) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	var req beginRegistrationRequest
	if err := decodeBody(r, &req); err != nil || req.UserName == "" {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	options, err := s.authority.BeginRegistration(r.Context(), req.UserName, req.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgRegistrationFailed)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	var req finishRegistrationRequest
	if err := decodeBody(r, &req); err != nil || req.UserName == "" || len(req.Credential) == 0 {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	parsed, err := parseCreationResponse(req.Credential)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgRegistrationFailed)
		return
	}

	_, err = s.authority.FinishRegistration(r.Context(), req.UserName, req.CredentialName, parsed)
	if err != nil {
		writeError(w, registrationStatus(err), msgRegistrationFailed)
		return
	}

	identity, err := s.authority.Identity(r.Context(), req.UserName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	token, err := s.sessions.Issue(identity.ID, identity.UserName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token})
}

func (s *Server) handleBeginAuthentication(w http.ResponseWriter, r *http.Request) {
	var req beginAuthenticationRequest
	if err := decodeBody(r, &req); err != nil || req.UserName == "" {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	options, err := s.authority.BeginAuthentication(r.Context(), req.UserName)
	if err != nil {
		// Unknown user and no-credentials look the same from outside.
		writeError(w, http.StatusBadRequest, msgAuthenticationFailed)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleFinishAuthentication(w http.ResponseWriter, r *http.Request) {
	var req finishAuthenticationRequest
	if err := decodeBody(r, &req); err != nil || req.UserName == "" || len(req.Credential) == 0 {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	parsed, err := parseAssertionResponse(req.Credential)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgAuthenticationFailed)
		return
	}

	identity, _, err := s.authority.FinishAuthentication(r.Context(), req.UserName, parsed)
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgAuthenticationFailed)
		return
	}

	token, err := s.sessions.Issue(identity.ID, identity.UserName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token})
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	creds, err := s.authority.Credentials(r.Context(), identityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	resp := make([]credentialResponse, len(creds))
	for i, c := range creds {
		resp[i] = credentialResponse{
			CredentialID: base64.RawURLEncoding.EncodeToString(c.CredentialID),
			Name:         c.Name,
			Class:        string(c.Class),
			CreatedAt:    c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if !c.LastUsedAt.IsZero() {
			resp[i].LastUsedAt = c.LastUsedAt.Format("2006-01-02T15:04:05Z07:00")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetKeyMaterial(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	material, err := s.vault.KeyMaterial(r.Context(), identityID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, keyMaterialPayload{
		Salt:       base64.StdEncoding.EncodeToString(material.Salt),
		WrappedKey: base64.StdEncoding.EncodeToString(material.WrappedKey),
		Nonce:      base64.StdEncoding.EncodeToString(material.Nonce),
	})
}

func (s *Server) handlePutKeyMaterial(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	salt, wrapped, nonce, err := decodeKeyMaterial(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	if r.Method == http.MethodPut {
		err = s.vault.RotateKeyMaterial(r.Context(), identityID, salt, wrapped, nonce)
	} else {
		err = s.vault.InitializeKeyMaterial(r.Context(), identityID, salt, wrapped, nonce)
	}
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			writeError(w, http.StatusConflict, msgConflict)
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		default:
			writeError(w, http.StatusInternalServerError, msgInternal)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	key, url, err := s.blobs.PresignedPutURL(r.Context(), identityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, uploadURLResponse{Key: key, URL: url})
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	key := r.URL.Query().Get("key")
	// Keys are namespaced per identity; refuse to presign someone else's blob.
	if key == "" || !strings.HasPrefix(key, "blobs/"+identityID+"/") {
		writeError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	url, err := s.blobs.PresignedGetURL(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, downloadURLResponse{URL: url})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeKeyMaterial(r *http.Request) (salt, wrapped, nonce []byte, err error) {
	var payload keyMaterialPayload
	if err = decodeBody(r, &payload); err != nil {
		return nil, nil, nil, err
	}
	if salt, err = base64.StdEncoding.DecodeString(payload.Salt); err != nil {
		return nil, nil, nil, err
	}
	if wrapped, err = base64.StdEncoding.DecodeString(payload.WrappedKey); err != nil {
		return nil, nil, nil, err
	}
	if nonce, err = base64.StdEncoding.DecodeString(payload.Nonce); err != nil {
		return nil, nil, nil, err
	}
	return salt, wrapped, nonce, nil
}

func registrationStatus(err error) int {
	switch {
	case errors.Is(err, webauthn.ErrDuplicateCredential):
		return http.StatusConflict
	case errors.Is(err, webauthn.ErrChallengeExpired),
		errors.Is(err, webauthn.ErrChallengeMismatch),
		errors.Is(err, webauthn.ErrAttestationInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
