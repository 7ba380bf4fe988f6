package httpapi

import (
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
)

// parseCreationResponse turns the raw browser attestation payload into the
// parsed form the credential authority consumes.
func parseCreationResponse(raw json.RawMessage) (*protocol.ParsedCredentialCreationData, error) {
	var ccr protocol.CredentialCreationResponse
	if err := json.Unmarshal(raw, &ccr); err != nil {
		return nil, err
	}
	return ccr.Parse()
}

// parseAssertionResponse turns the raw browser assertion payload into the
// parsed form the credential authority consumes.
func parseAssertionResponse(raw json.RawMessage) (*protocol.ParsedCredentialAssertionData, error) {
	var car protocol.CredentialAssertionResponse
	if err := json.Unmarshal(raw, &car); err != nil {
		return nil, err
	}
	return car.Parse()
}
