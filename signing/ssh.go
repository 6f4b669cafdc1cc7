package signing

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/meshbuddies/smemo/core"
)

// sshNamespace is the literal signing namespace used for every smemo SSH
// signature, matching the original implementation so signatures aren't
// interchangeable with an unrelated ssh-keygen signing use.
const sshNamespace = "smemo"

// sshPrincipal is the identity string placed in a throwaway allowed-signers
// file at verification time; it is not otherwise meaningful.
const sshPrincipal = "smemo"

// SSHSigner signs payloads using `ssh-keygen -Y sign` against a private
// key on disk.
type SSHSigner struct {
	PublicKeyLine  string
	PrivateKeyPath string
}

// NewSSHSigner builds an SSHSigner from a private key path and the
// contents of its matching public key.
func NewSSHSigner(publicKeyPath, privateKeyPath string) (*SSHSigner, error) {
	pub, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh public key %s: %w", publicKeyPath, err)
	}
	return &SSHSigner{PublicKeyLine: strings.TrimSpace(string(pub)), PrivateKeyPath: privateKeyPath}, nil
}

func (s *SSHSigner) Identity() core.SignerIdentity {
	return core.SignerIdentity{Scheme: "ssh", Value: s.PublicKeyLine}
}

func (s *SSHSigner) Sign(payload []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "smemo-ssh-sign-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	msgPath := filepath.Join(dir, "message")
	if err := os.WriteFile(msgPath, payload, 0o600); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}

	cmd := exec.Command("ssh-keygen", "-Y", "sign", "-f", s.PrivateKeyPath, "-n", sshNamespace, msgPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ssh-keygen sign: %w: %s", err, stderr.String())
	}

	sig, err := os.ReadFile(msgPath + ".sig")
	if err != nil {
		return nil, fmt.Errorf("read generated signature: %w", err)
	}
	return sig, nil
}

// SSHVerifier checks `ssh-keygen -Y sign` signatures against a public key
// line carried in the claimed identity. It holds no state of its own.
type SSHVerifier struct{}

func (SSHVerifier) Verify(identity core.SignerIdentity, payload, signature []byte) (bool, error) {
	if identity.Scheme != "ssh" {
		return false, fmt.Errorf("ssh verifier: unsupported scheme %q", identity.Scheme)
	}
	dir, err := os.MkdirTemp("", "smemo-ssh-verify-")
	if err != nil {
		return false, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	allowedPath := filepath.Join(dir, "allowed_signers")
	line := sshPrincipal + " " + identity.Value + "\n"
	if err := os.WriteFile(allowedPath, []byte(line), 0o600); err != nil {
		return false, fmt.Errorf("write allowed signers file: %w", err)
	}
	sigPath := filepath.Join(dir, "payload.sig")
	if err := os.WriteFile(sigPath, signature, 0o600); err != nil {
		return false, fmt.Errorf("write signature: %w", err)
	}

	cmd := exec.Command("ssh-keygen", "-Y", "verify", "-f", allowedPath, "-I", sshPrincipal, "-n", sshNamespace, "-s", sigPath)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return false, nil
	}
	return true, nil
}

// generatedSSHIdentity returns (creating, if absent) an ed25519 keypair
// under dataDir, for nodes started without any configured signing key.
func generatedSSHIdentity(dataDir string) (*SSHSigner, error) {
	dir := dataDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "smemo-identity-")
		if err != nil {
			return nil, fmt.Errorf("create temp identity dir: %w", err)
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create identity dir %s: %w", dir, err)
	}

	keyPath := filepath.Join(dir, "identity_ed25519")
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		cmd := exec.Command("ssh-keygen", "-t", "ed25519", "-N", "", "-C", "smemo-generated", "-f", keyPath)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("generate ssh identity: %w: %s", err, stderr.String())
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat identity key %s: %w", keyPath, err)
	}

	return NewSSHSigner(keyPath+".pub", keyPath)
}
