package core

import (
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

var ticketEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// RoomTicket is an opaque, shareable handle for joining a room: the room
// name, its derived topic id, and a list of bootstrap endpoint addresses
// (libp2p multiaddrs) that a joiner can dial directly instead of relying
// on discovery alone.
type RoomTicket struct {
	Room      string
	Topic     TopicID
	Endpoints []string
}

type ticketWire struct {
	Room      string   `json:"room"`
	Topic     string   `json:"topic"`
	Endpoints []string `json:"endpoints"`
}

// NewRoomTicket builds a ticket for room, deriving its topic id.
func NewRoomTicket(room string, endpoints []string) RoomTicket {
	return RoomTicket{Room: room, Topic: RoomTopic(room), Endpoints: endpoints}
}

// String renders the ticket as a lowercase, unpadded base32 blob, opaque
// to anything that doesn't call ResolveTicket.
func (t RoomTicket) String() string {
	wire := ticketWire{Room: t.Room, Topic: hex.EncodeToString(t.Topic[:]), Endpoints: t.Endpoints}
	raw, err := json.Marshal(wire)
	if err != nil {
		// wire is built entirely from strings and a fixed-size array; this
		// cannot fail.
		panic(fmt.Sprintf("core: ticket marshal: %v", err))
	}
	return strings.ToLower(ticketEncoding.EncodeToString(raw))
}

// ResolveTicket parses a ticket produced by RoomTicket.String.
func ResolveTicket(text string) (RoomTicket, error) {
	raw, err := ticketEncoding.DecodeString(strings.ToUpper(text))
	if err != nil {
		return RoomTicket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	var wire ticketWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return RoomTicket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	topicBytes, err := hex.DecodeString(wire.Topic)
	if err != nil || len(topicBytes) != 32 {
		return RoomTicket{}, fmt.Errorf("%w: bad topic", ErrInvalidTicket)
	}
	var topic TopicID
	copy(topic[:], topicBytes)
	return RoomTicket{Room: wire.Room, Topic: topic, Endpoints: wire.Endpoints}, nil
}
