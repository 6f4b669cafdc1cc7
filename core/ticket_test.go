package core

import "testing"

func TestRoomTicketRoundTrip(t *testing.T) {
	ticket := NewRoomTicket("general", []string{"/ip4/127.0.0.1/tcp/4001/p2p/QmPeer"})
	text := ticket.String()

	resolved, err := ResolveTicket(text)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Room != ticket.Room {
		t.Errorf("room mismatch: got %s want %s", resolved.Room, ticket.Room)
	}
	if resolved.Topic != ticket.Topic {
		t.Error("topic mismatch")
	}
	if len(resolved.Endpoints) != 1 || resolved.Endpoints[0] != ticket.Endpoints[0] {
		t.Errorf("endpoints mismatch: got %v", resolved.Endpoints)
	}
}

func TestResolveTicketRejectsGarbage(t *testing.T) {
	if _, err := ResolveTicket("not a ticket at all!!"); err == nil {
		t.Fatal("expected an error resolving garbage input")
	}
}

func TestRoomTicketStringIsLowercase(t *testing.T) {
	ticket := NewRoomTicket("general", nil)
	text := ticket.String()
	for _, r := range text {
		if r >= 'A' && r <= 'Z' {
			t.Fatalf("expected lowercase ticket text, got %q", text)
		}
	}
}
