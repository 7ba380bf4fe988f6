package webauthn

import (
	"github.com/dvoronkov/lockbox/internal/server/models"
	"github.com/google/uuid"
)

// knownAAGUIDs maps authenticator model identifiers to their attachment
// class. The list covers the passkey providers and security keys we see in
// practice; everything else, including the all-zero AAGUID sent with "none"
// attestation, is reported as unknown.
var knownAAGUIDs = map[string]models.AuthenticatorClass{
	// Platform passkey providers.
	"fbfc3007-154e-4ecc-8c0b-6e020557d7bd": models.ClassPlatform, // iCloud Keychain
	"ea9b8d66-4d01-1d21-3ce4-b6b48cb575d4": models.ClassPlatform, // Google Password Manager
	"adce0002-35bc-c60a-648b-0b25f1f05503": models.ClassPlatform, // Chrome on Mac
	"08987058-cadc-4b81-b6e1-30de50dcbe96": models.ClassPlatform, // Windows Hello
	"9ddd1817-af5a-4672-a2b9-3e3dd95000a9": models.ClassPlatform, // Windows Hello
	"6028b017-b1d4-4c02-b4b3-afcdafc96bb2": models.ClassPlatform, // Windows Hello
	"531126d6-e717-415c-9320-3d9aa6981239": models.ClassPlatform, // Dashlane
	"b84e4048-15dc-4dd0-8640-f4f60813c8af": models.ClassPlatform, // NordPass
	"0ea242b4-43c4-4a1b-8b17-dd6d0b6baec6": models.ClassPlatform, // Keeper
	"bada5566-a7aa-401f-bd96-45619a55120d": models.ClassPlatform, // 1Password
	"d548826e-79b4-db40-a3d8-11116f7e8349": models.ClassPlatform, // Bitwarden

	// Roaming security keys.
	"ee882879-721c-4913-9775-3dfcce97072a": models.ClassCrossPlatform, // YubiKey 5
	"fa2b99dc-9e39-4257-8f92-4a30d23c4118": models.ClassCrossPlatform, // YubiKey 5 NFC
	"2fc0579f-8113-47ea-b116-bb5a8db9202a": models.ClassCrossPlatform, // YubiKey 5 NFC
	"cb69481e-8ff7-4039-93ec-0a2729a154a8": models.ClassCrossPlatform, // YubiKey 5 FIPS
	"c5ef55ff-ad9a-4b9f-b580-adebafe026d0": models.ClassCrossPlatform, // YubiKey 5Ci
	"d8522d9f-575b-4866-88a9-ba99fa02f35b": models.ClassCrossPlatform, // YubiKey Bio
	"8876631b-d4a0-427f-5773-0ec71c9e0279": models.ClassCrossPlatform, // Solo Secp256R1
	"9c835346-796b-4c27-8898-d6032f515cc5": models.ClassCrossPlatform, // Google Titan v2
	"149a2021-8ef6-4133-96b8-81f8d5b7f1f5": models.ClassCrossPlatform, // SoloKeys Tap
}

// ClassifyAAGUID reports the attachment class for an authenticator model id.
// Unknown or malformed AAGUIDs classify as ClassUnknown; they are accepted,
// just not attributed to a known model.
func ClassifyAAGUID(aaguid []byte) models.AuthenticatorClass {
	id, err := uuid.FromBytes(aaguid)
	if err != nil || id == uuid.Nil {
		return models.ClassUnknown
	}
	if class, ok := knownAAGUIDs[id.String()]; ok {
		return class
	}
	return models.ClassUnknown
}
