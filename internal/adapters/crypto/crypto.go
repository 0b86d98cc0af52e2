// Package crypto adapts filippo.io/age into the reconciliation engine's
// content.Decryptor contract, grounded on the original's identity-file
// based design (crates/crypto/src/identity.rs).
package crypto

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/guisu-dev/guisu/internal/content"
)

// AgeDecryptor decrypts age-encrypted content and inline secret tokens
// using a fixed set of identities loaded once at construction.
type AgeDecryptor struct {
	identities []age.Identity
}

var _ content.Decryptor = (*AgeDecryptor)(nil)

// LoadIdentities reads one or more age identity files (the format
// produced by age-keygen) from identityFiles and returns a ready
// AgeDecryptor. A missing file is an error: the caller is expected to
// only pass paths it has already confirmed should exist.
func LoadIdentities(identityFiles ...string) (*AgeDecryptor, error) {
	var all []age.Identity
	for _, f := range identityFiles {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading identity file %s: %w", f, err)
		}
		ids, err := age.ParseIdentities(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing identity file %s: %w", f, err)
		}
		all = append(all, ids...)
	}
	return &AgeDecryptor{identities: all}, nil
}

// Decrypt decrypts a whole age-encrypted file's content.
func (d *AgeDecryptor) Decrypt(data []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), d.identities...)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// DecryptInline decrypts one inline token exactly as the content
// pipeline's inline-secret regex matches it: the "age:" prefix followed
// by the standard (padded) base64 encoding of a full age payload.
func (d *AgeDecryptor) DecryptInline(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, "age:"))
	if err != nil {
		return "", err
	}
	plain, err := d.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptionProvider is the write-side counterpart used by `guisu add`
// and `guisu edit` to (re-)encrypt a file for a set of recipients.
type EncryptionProvider struct {
	Recipients []age.Recipient
}

// LoadRecipients parses one age recipient (public key) per line.
func LoadRecipients(lines []string) (*EncryptionProvider, error) {
	var recipients []age.Recipient
	for _, l := range lines {
		r, err := age.ParseX25519Recipient(l)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", l, err)
		}
		recipients = append(recipients, r)
	}
	return &EncryptionProvider{Recipients: recipients}, nil
}

// Encrypt encrypts plaintext for every configured recipient.
func (p *EncryptionProvider) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, p.Recipients...)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
