package core

import "testing"

func TestIdentityLabelRoundTrip(t *testing.T) {
	id := SignerIdentity{Scheme: "gpg", Value: "ABCDEF0123456789"}
	parsed, err := ParseIdentityLabel(id.Label())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: got %+v want %+v", parsed, id)
	}
}

func TestParseIdentityLabelRejectsUnknownScheme(t *testing.T) {
	if _, err := ParseIdentityLabel("pgp:abc"); err == nil {
		t.Fatal("expected an error for an unrecognized scheme")
	}
}

func TestParseIdentityLabelRejectsMissingColon(t *testing.T) {
	if _, err := ParseIdentityLabel("gpgabc"); err == nil {
		t.Fatal("expected an error for a label with no scheme separator")
	}
}
