package core

import (
	"fmt"
	"strings"
)

// SignerIdentity names the signing key behind a signature: a GPG key id
// or an SSH public key line. Scheme is "gpg" or "ssh".
type SignerIdentity struct {
	Scheme string
	Value  string
}

// Label is the stable printable form used for equality in whitelists and
// for display ("gpg:ABCDEF0123456789", "ssh:ssh-ed25519 AAAA... comment").
func (id SignerIdentity) Label() string {
	return id.Scheme + ":" + id.Value
}

// ParseIdentityLabel parses the "<scheme>:<value>" form produced by Label.
func ParseIdentityLabel(label string) (SignerIdentity, error) {
	scheme, value, ok := strings.Cut(label, ":")
	if !ok || (scheme != "gpg" && scheme != "ssh") {
		return SignerIdentity{}, fmt.Errorf("%w: %q", ErrInvalidIdentityLabel, label)
	}
	return SignerIdentity{Scheme: scheme, Value: value}, nil
}

// Signer produces detached signatures over arbitrary payloads using a
// locally held key, and reports the identity that verifiers should use
// to check them.
type Signer interface {
	Identity() SignerIdentity
	Sign(payload []byte) ([]byte, error)
}

// Verifier checks a detached signature against a claimed identity. It
// does not need to hold any private key material; gpg verification in
// particular only needs the signer's public key or keyring entry.
type Verifier interface {
	Verify(identity SignerIdentity, payload, signature []byte) (bool, error)
}
