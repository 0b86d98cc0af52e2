// Package vault adapts the Bitwarden CLI (bw) and Bitwarden Secrets
// Manager CLI (bws) into the reconciliation engine's core.VaultProvider
// contract, grounded on the original's crates/vault/src/bw.rs and bws.rs.
package vault

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/guisu-dev/guisu/internal/core"
)

// BitwardenVault shells out to the bw CLI. It never holds the user's
// master password; Unlock relies on bw's own session/biometric flow and
// only captures the resulting session token.
type BitwardenVault struct {
	binary  string
	session string
}

var _ core.VaultProvider = (*BitwardenVault)(nil)

// NewBitwardenVault builds a vault bound to the "bw" binary on PATH.
func NewBitwardenVault() *BitwardenVault {
	return &BitwardenVault{binary: "bw"}
}

func (v *BitwardenVault) Name() string { return "bitwarden" }

// IsAvailable reports whether the bw binary can be found on PATH.
func (v *BitwardenVault) IsAvailable() bool {
	_, err := exec.LookPath(v.binary)
	return err == nil
}

// RequiresUnlock reports whether bw currently reports a locked vault.
func (v *BitwardenVault) RequiresUnlock() bool {
	out, err := exec.Command(v.binary, "status").Output()
	if err != nil {
		return true
	}
	return !strings.Contains(string(out), `"status":"unlocked"`)
}

// Unlock runs `bw unlock --raw` and captures the session token for
// subsequent GetSecret calls. The user's master password is supplied via
// bw's own interactive prompt or BW_PASSWORD, never passed on this
// process's command line.
func (v *BitwardenVault) Unlock() error {
	cmd := exec.Command(v.binary, "unlock", "--raw")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stdin = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("bw unlock: %w", err)
	}
	v.session = strings.TrimSpace(out.String())
	return nil
}

// GetSecret retrieves one item's password field by name or id.
func (v *BitwardenVault) GetSecret(key string) (string, error) {
	args := []string{"get", "password", key}
	if v.session != "" {
		args = append(args, "--session", v.session)
	}
	out, err := exec.Command(v.binary, args...).Output()
	if err != nil {
		return "", fmt.Errorf("bw get password %s: %w", key, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// BitwardenSecretsManagerVault shells out to the bws CLI (Bitwarden
// Secrets Manager), used for machine-to-machine access via an access
// token rather than an interactive unlock.
type BitwardenSecretsManagerVault struct {
	binary      string
	accessToken string
}

var _ core.VaultProvider = (*BitwardenSecretsManagerVault)(nil)

// NewBitwardenSecretsManagerVault builds a vault bound to "bws" on PATH,
// authenticated with accessToken.
func NewBitwardenSecretsManagerVault(accessToken string) *BitwardenSecretsManagerVault {
	return &BitwardenSecretsManagerVault{binary: "bws", accessToken: accessToken}
}

func (v *BitwardenSecretsManagerVault) Name() string { return "bitwarden-secrets-manager" }

func (v *BitwardenSecretsManagerVault) IsAvailable() bool {
	_, err := exec.LookPath(v.binary)
	return err == nil
}

// RequiresUnlock is always false: bws authenticates per-call via its
// access token, with no persistent unlock state to manage.
func (v *BitwardenSecretsManagerVault) RequiresUnlock() bool { return false }

func (v *BitwardenSecretsManagerVault) Unlock() error { return nil }

func (v *BitwardenSecretsManagerVault) GetSecret(key string) (string, error) {
	cmd := exec.Command(v.binary, "secret", "get", key)
	cmd.Env = append(os.Environ(), "BWS_ACCESS_TOKEN="+v.accessToken)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("bws secret get %s: %w", key, err)
	}
	return strings.TrimSpace(string(out)), nil
}
