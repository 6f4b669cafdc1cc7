// Package signing implements the local signing backends that sit behind
// core.Signer/core.Verifier: git-configured GPG keys, ad-hoc GPG or SSH
// keys named by environment variables, and generated-on-first-use SSH
// keys. Every backend shells out to the matching command-line tool
// (git, gpg, ssh-keygen) the way the original implementation's identity
// discovery does, rather than linking a crypto library directly.
package signing

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/meshbuddies/smemo/core"
)

// GpgSigner signs payloads with a GPG key already present in the local
// keyring, identified by key id.
type GpgSigner struct {
	KeyID string
}

func (s GpgSigner) Identity() core.SignerIdentity {
	return core.SignerIdentity{Scheme: "gpg", Value: s.KeyID}
}

func (s GpgSigner) Sign(payload []byte) ([]byte, error) {
	cmd := exec.Command("gpg", "--batch", "--yes", "--local-user", s.KeyID, "--detach-sign", "--output", "-")
	cmd.Stdin = bytes.NewReader(payload)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gpg sign with key %s: %w: %s", s.KeyID, err, stderr.String())
	}
	return out.Bytes(), nil
}

// GpgVerifier checks detached GPG signatures against whatever keys are
// present in the local keyring; it holds no state of its own.
type GpgVerifier struct{}

func (GpgVerifier) Verify(identity core.SignerIdentity, payload, signature []byte) (bool, error) {
	if identity.Scheme != "gpg" {
		return false, fmt.Errorf("gpg verifier: unsupported scheme %q", identity.Scheme)
	}
	dir, err := os.MkdirTemp("", "smemo-gpg-verify-")
	if err != nil {
		return false, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	sigPath := filepath.Join(dir, "payload.sig")
	dataPath := filepath.Join(dir, "payload")
	if err := os.WriteFile(sigPath, signature, 0o600); err != nil {
		return false, fmt.Errorf("write signature: %w", err)
	}
	if err := os.WriteFile(dataPath, payload, 0o600); err != nil {
		return false, fmt.Errorf("write payload: %w", err)
	}

	cmd := exec.Command("gpg", "--batch", "--verify", sigPath, dataPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return false, nil
	}
	return true, nil
}
