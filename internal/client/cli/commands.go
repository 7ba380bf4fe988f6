package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/dvoronkov/lockbox/internal/client/api"
	"github.com/dvoronkov/lockbox/internal/client/keychain"
	"github.com/dvoronkov/lockbox/internal/client/vault"
	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/dvoronkov/lockbox/internal/netx"
)

var strengthLabels = [...]string{"unusable", "weak", "fair", "good", "strong"}

// SetToken installs a session token obtained from a browser passkey
// ceremony. Everything else in the CLI depends on it.
func (a *App) SetToken(ctx context.Context) error {
	token, err := GetSimpleText(a.reader, "Paste the session token from your browser", os.Stdout)
	if err != nil {
		return err
	}
	a.client.SetToken(token)
	fmt.Println("Token installed.")
	return nil
}

// InitVault creates the key chain for a brand new vault.
func (a *App) InitVault(ctx context.Context) error {
	secret, err := GetSecret("Choose a secret phrase: ", os.Stdout)
	if err != nil {
		return err
	}
	defer keychain.Wipe(secret)

	score := keychain.Strength(string(secret))
	fmt.Printf("Phrase strength: %s\n", strengthLabels[score])
	if score == 0 {
		fmt.Println("Phrase is too short, pick at least 8 characters.")
		return nil
	}

	confirm, err := GetSecret("Repeat the secret phrase: ", os.Stdout)
	if err != nil {
		return err
	}
	defer keychain.Wipe(confirm)
	if string(secret) != string(confirm) {
		fmt.Println("Phrases do not match.")
		return nil
	}

	if err := a.vault.Initialize(ctx, secret); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			fmt.Println("This vault is already initialized; use 'unlock'.")
			return nil
		}
		fmt.Printf("Initialization failed: %s\n", err.Error())
		return err
	}
	fmt.Println("Vault initialized and unlocked.")
	return nil
}

// Unlock opens the vault: against the server when online, against the local
// cache otherwise. A failed online attempt due to an unreachable server
// falls back to the cache.
func (a *App) Unlock(ctx context.Context) error {
	secret, err := GetSecret("Enter your secret phrase: ", os.Stdout)
	if err != nil {
		return err
	}
	defer keychain.Wipe(secret)

	if a.Mode == ModeOnline {
		err = a.vault.UnlockOnline(ctx, secret)
		if errors.Is(err, api.ErrUnavailable) {
			a.setMode(ModeOffline)
			err = a.vault.UnlockOffline(ctx, secret)
		}
	} else {
		err = a.vault.UnlockOffline(ctx, secret)
	}

	switch {
	case err == nil:
		fmt.Println("Vault unlocked.")
		return nil
	case errors.Is(err, keychain.ErrDecryptionFailed):
		fmt.Println("Wrong secret phrase.")
	case errors.Is(err, vault.ErrLocalDataNotAvailable):
		fmt.Println("No local copy of the vault key; unlock online at least once.")
	case errors.Is(err, common.ErrorNotFound):
		fmt.Println("No vault exists yet; use 'init'.")
	case errors.Is(err, api.ErrUnauthorized):
		fmt.Println("Session expired; paste a fresh token with 'token'.")
	default:
		fmt.Printf("Unlock failed: %s\n", err.Error())
	}
	return err
}

// LockVault wipes the in-memory vault key.
func (a *App) LockVault(ctx context.Context) error {
	a.vault.Lock()
	fmt.Println("Vault locked.")
	return nil
}

// Rotate re-wraps the vault key under a new secret phrase. Stored data stays
// readable because the vault key itself never changes.
func (a *App) Rotate(ctx context.Context) error {
	oldSecret, err := GetSecret("Current secret phrase: ", os.Stdout)
	if err != nil {
		return err
	}
	defer keychain.Wipe(oldSecret)

	newSecret, err := GetSecret("New secret phrase: ", os.Stdout)
	if err != nil {
		return err
	}
	defer keychain.Wipe(newSecret)

	if keychain.Strength(string(newSecret)) == 0 {
		fmt.Println("New phrase is too short, pick at least 8 characters.")
		return nil
	}

	if err := a.vault.RotateSecret(ctx, oldSecret, newSecret); err != nil {
		if errors.Is(err, keychain.ErrDecryptionFailed) {
			fmt.Println("Current secret phrase is wrong; nothing changed.")
		} else {
			fmt.Printf("Rotation failed: %s\n", err.Error())
		}
		return err
	}
	fmt.Println("Secret phrase rotated.")
	return nil
}

// CheckStrength scores a candidate phrase without using it anywhere.
func (a *App) CheckStrength(ctx context.Context) error {
	secret, err := GetSecret("Phrase to score: ", os.Stdout)
	if err != nil {
		return err
	}
	defer keychain.Wipe(secret)

	score := keychain.Strength(string(secret))
	fmt.Printf("Strength: %d/4 (%s)\n", score, strengthLabels[score])
	return nil
}

// Credentials lists the passkeys registered for this account.
func (a *App) Credentials(ctx context.Context) error {
	creds, err := a.client.Credentials(ctx)
	if err != nil {
		fmt.Printf("Listing failed: %s\n", err.Error())
		return err
	}
	if len(creds) == 0 {
		fmt.Println("No passkeys registered.")
		return nil
	}
	for _, c := range creds {
		line := fmt.Sprintf("%s  [%s]  registered %s", c.Name, c.Class, c.CreatedAt)
		if c.LastUsedAt != "" {
			line += "  last used " + c.LastUsedAt
		}
		fmt.Println(line)
	}
	return nil
}

// EncryptValue encrypts one value under the vault key and prints the
// ciphertext and nonce in base64.
func (a *App) EncryptValue(ctx context.Context) error {
	value, err := GetSecret("Value to encrypt: ", os.Stdout)
	if err != nil {
		return err
	}
	defer keychain.Wipe(value)

	ciphertext, nonce, err := a.vault.EncryptField(value)
	if err != nil {
		fmt.Printf("Encryption failed: %s\n", err.Error())
		return err
	}
	fmt.Printf("ciphertext: %s\n", base64.StdEncoding.EncodeToString(ciphertext))
	fmt.Printf("nonce:      %s\n", base64.StdEncoding.EncodeToString(nonce))
	return nil
}

// DecryptValue reverses EncryptValue.
func (a *App) DecryptValue(ctx context.Context) error {
	ciphertextB64, err := GetSimpleText(a.reader, "Ciphertext (base64)", os.Stdout)
	if err != nil {
		return err
	}
	nonceB64, err := GetSimpleText(a.reader, "Nonce (base64)", os.Stdout)
	if err != nil {
		return err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		fmt.Println("Invalid base64 ciphertext.")
		return err
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		fmt.Println("Invalid base64 nonce.")
		return err
	}

	plaintext, err := a.vault.DecryptField(ciphertext, nonce)
	if err != nil {
		if errors.Is(err, keychain.ErrDecryptionFailed) {
			fmt.Println("Decryption failed: wrong key or tampered data.")
		} else {
			fmt.Printf("Decryption failed: %s\n", err.Error())
		}
		return err
	}
	fmt.Printf("plaintext: %s\n", plaintext)
	keychain.Wipe(plaintext)
	return nil
}

// Upload encrypts a local file under the vault key and uploads it through a
// presigned URL. The blob is stored as nonce followed by ciphertext; the
// server and the object store only ever see the encrypted form.
func (a *App) Upload(ctx context.Context) error {
	path, err := GetSimpleText(a.reader, "File to upload", os.Stdout)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Reading failed: %s\n", err.Error())
		return err
	}

	ciphertext, nonce, err := a.vault.EncryptField(data)
	if err != nil {
		fmt.Printf("Encryption failed: %s\n", err.Error())
		return err
	}

	target, err := a.client.UploadURL(ctx)
	if err != nil {
		fmt.Printf("Request failed: %s\n", err.Error())
		return err
	}

	if err := netx.UploadToS3PresignedURL(target.URL, append(nonce, ciphertext...)); err != nil {
		fmt.Printf("Upload failed: %s\n", err.Error())
		return err
	}
	fmt.Printf("Uploaded. Blob key: %s\n", target.Key)
	return nil
}

// DownloadURL requests a presigned download URL for a previously uploaded
// blob key.
func (a *App) DownloadURL(ctx context.Context) error {
	key, err := GetSimpleText(a.reader, "Blob key", os.Stdout)
	if err != nil {
		return err
	}

	url, err := a.client.DownloadURL(ctx, key)
	if err != nil {
		fmt.Printf("Request failed: %s\n", err.Error())
		return err
	}
	fmt.Printf("url: %s\n", url)
	return nil
}

// ClearLocal wipes the cached wrapped key bundle, e.g. before handing the
// device over.
func (a *App) ClearLocal(ctx context.Context) error {
	if err := a.vault.ClearOfflineData(ctx); err != nil {
		fmt.Printf("Clearing failed: %s\n", err.Error())
		return err
	}
	a.vault.Lock()
	fmt.Println("Local cache cleared and vault locked.")
	return nil
}
