package signing

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/meshbuddies/smemo/core"
)

// DiscoverSigner resolves the node's signing backend from the SMEMO_SIGNER
// environment variable:
//
//	unset, "", "git" -> read user.signingkey/gpg.format from git config
//	"none"           -> no signer; outgoing messages are broadcast unsigned
//	"gpg"            -> SMEMO_GPG_KEY_ID (or SMEMO_SIGNING_KEY)
//	"ssh"            -> SMEMO_SSH_PRIVATE_KEY (+ optional SMEMO_SSH_PUBLIC_KEY)
//	"generated", "ephemeral" -> an ed25519 key generated under dataDir
func DiscoverSigner(dataDir string) (core.Signer, error) {
	switch mode := os.Getenv("SMEMO_SIGNER"); mode {
	case "", "git":
		return discoverGitIdentity()
	case "none":
		return nil, nil
	case "gpg":
		return discoverGpgFromEnv()
	case "ssh":
		return discoverSSHFromEnv()
	case "generated", "ephemeral":
		return generatedSSHIdentity(dataDir)
	default:
		return nil, fmt.Errorf("signing: unrecognized SMEMO_SIGNER mode %q", mode)
	}
}

func gitConfigGet(key string) (string, error) {
	cmd := exec.Command("git", "config", "--get", key)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git config --get %s: %w: %s", key, err, stderr.String())
	}
	return strings.TrimSpace(out.String()), nil
}

func discoverGitIdentity() (core.Signer, error) {
	keyID, err := gitConfigGet("user.signingkey")
	if err != nil || keyID == "" {
		return nil, fmt.Errorf("signing: no git user.signingkey configured")
	}
	format, _ := gitConfigGet("gpg.format")
	if format == "ssh" {
		return NewSSHSigner(keyID+".pub", keyID)
	}
	return GpgSigner{KeyID: keyID}, nil
}

func discoverGpgFromEnv() (core.Signer, error) {
	keyID := os.Getenv("SMEMO_GPG_KEY_ID")
	if keyID == "" {
		keyID = os.Getenv("SMEMO_SIGNING_KEY")
	}
	if keyID == "" {
		return nil, fmt.Errorf("signing: SMEMO_SIGNER=gpg requires SMEMO_GPG_KEY_ID or SMEMO_SIGNING_KEY")
	}
	return GpgSigner{KeyID: keyID}, nil
}

func discoverSSHFromEnv() (core.Signer, error) {
	privPath := os.Getenv("SMEMO_SSH_PRIVATE_KEY")
	if privPath == "" {
		return nil, fmt.Errorf("signing: SMEMO_SIGNER=ssh requires SMEMO_SSH_PRIVATE_KEY")
	}
	pubPath := os.Getenv("SMEMO_SSH_PUBLIC_KEY")
	if pubPath == "" {
		pubPath = privPath + ".pub"
	}
	return NewSSHSigner(pubPath, privPath)
}

// DispatchVerifier routes Verify calls to the GPG or SSH backend
// according to the claimed identity's scheme.
type DispatchVerifier struct {
	gpg GpgVerifier
	ssh SSHVerifier
}

// NewVerifier returns a Verifier that handles both gpg and ssh identities.
func NewVerifier() DispatchVerifier { return DispatchVerifier{} }

func (d DispatchVerifier) Verify(identity core.SignerIdentity, payload, signature []byte) (bool, error) {
	switch identity.Scheme {
	case "gpg":
		return d.gpg.Verify(identity, payload, signature)
	case "ssh":
		return d.ssh.Verify(identity, payload, signature)
	default:
		return false, fmt.Errorf("signing: unknown identity scheme %q", identity.Scheme)
	}
}

var _ core.Verifier = DispatchVerifier{}
