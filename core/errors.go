package core

import "errors"

var (
	// ErrNotInRoom is returned when an operation targets a room the
	// coordinator has not joined.
	ErrNotInRoom = errors.New("not in room")

	// ErrMessageTooShort is returned by DecodeMessage when the input is
	// truncated before a complete frame could be read.
	ErrMessageTooShort = errors.New("message: truncated")

	// ErrUnknownMessageKind is returned by DecodeMessage when the kind
	// byte does not match any known body variant.
	ErrUnknownMessageKind = errors.New("message: unknown kind")

	// ErrInvalidIdentityLabel is returned when parsing a signer identity
	// label that doesn't match "<scheme>:<value>".
	ErrInvalidIdentityLabel = errors.New("invalid identity label")

	// ErrInvalidTicket is returned by ResolveTicket when the supplied
	// text isn't a valid base32 ticket blob.
	ErrInvalidTicket = errors.New("invalid room ticket")
)
