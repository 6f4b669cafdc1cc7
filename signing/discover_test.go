package signing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meshbuddies/smemo/core"
)

func TestDiscoverSignerNoneReturnsNilSigner(t *testing.T) {
	t.Setenv("SMEMO_SIGNER", "none")
	signer, err := DiscoverSigner("")
	if err != nil {
		t.Fatal(err)
	}
	if signer != nil {
		t.Fatalf("expected a nil signer for SMEMO_SIGNER=none, got %+v", signer)
	}
}

func TestDiscoverSignerRejectsUnknownMode(t *testing.T) {
	t.Setenv("SMEMO_SIGNER", "carrier-pigeon")
	if _, err := DiscoverSigner(""); err == nil {
		t.Fatal("expected an error for an unrecognized SMEMO_SIGNER value")
	}
}

func TestDiscoverGpgFromEnvPrefersKeyIDOverSigningKey(t *testing.T) {
	t.Setenv("SMEMO_GPG_KEY_ID", "KEYID1")
	t.Setenv("SMEMO_SIGNING_KEY", "KEYID2")
	signer, err := discoverGpgFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	gpg, ok := signer.(GpgSigner)
	if !ok || gpg.KeyID != "KEYID1" {
		t.Fatalf("expected GpgSigner{KeyID: KEYID1}, got %+v", signer)
	}
}

func TestDiscoverGpgFromEnvFallsBackToSigningKey(t *testing.T) {
	t.Setenv("SMEMO_GPG_KEY_ID", "")
	t.Setenv("SMEMO_SIGNING_KEY", "KEYID2")
	signer, err := discoverGpgFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	gpg, ok := signer.(GpgSigner)
	if !ok || gpg.KeyID != "KEYID2" {
		t.Fatalf("expected GpgSigner{KeyID: KEYID2}, got %+v", signer)
	}
}

func TestDiscoverGpgFromEnvRequiresAKey(t *testing.T) {
	t.Setenv("SMEMO_GPG_KEY_ID", "")
	t.Setenv("SMEMO_SIGNING_KEY", "")
	if _, err := discoverGpgFromEnv(); err == nil {
		t.Fatal("expected an error when neither gpg key env var is set")
	}
}

func TestDiscoverSSHFromEnvRequiresPrivateKey(t *testing.T) {
	t.Setenv("SMEMO_SSH_PRIVATE_KEY", "")
	if _, err := discoverSSHFromEnv(); err == nil {
		t.Fatal("expected an error when SMEMO_SSH_PRIVATE_KEY is unset")
	}
}

func TestDiscoverSSHFromEnvDefaultsPublicKeyPath(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "id_ed25519")
	writeFile(t, privPath, "private-key-material")
	writeFile(t, privPath+".pub", "ssh-ed25519 AAAAFAKEKEY test@smemo")

	t.Setenv("SMEMO_SSH_PRIVATE_KEY", privPath)
	t.Setenv("SMEMO_SSH_PUBLIC_KEY", "")

	signer, err := discoverSSHFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if signer.Identity().Value != "ssh-ed25519 AAAAFAKEKEY test@smemo" {
		t.Fatalf("unexpected identity: %+v", signer.Identity())
	}
}

func TestDispatchVerifierRejectsUnknownScheme(t *testing.T) {
	v := NewVerifier()
	_, err := v.Verify(core.SignerIdentity{Scheme: "pgp", Value: "x"}, []byte("payload"), []byte("sig"))
	if err == nil {
		t.Fatal("expected an error for an unrecognized identity scheme")
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
