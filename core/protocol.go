package core

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageKind tags which fields of MessageBody are meaningful. Go has no
// sum types, so the wire protocol emulates one: a kind byte followed by
// only the fields that kind uses, in a fixed order (see encodeBody).
type MessageKind uint8

const (
	KindJoin MessageKind = iota
	KindLeave
	KindMemoryCreated
	KindStatusUpdate
	KindSearchRequest
	KindSearchResponse
	KindSkillPublished
	KindSkillSearchRequest
	KindSkillSearchResponse
	KindSkillVoteCast
	KindTaskRequest
	KindTaskClaimed
	KindTaskResponse
)

// TaskResult carries the outcome of a delegated task: either the winning
// peer's output, or a reason no result is available.
type TaskResult struct {
	Success bool
	Message string
}

// MessageBody is the tagged union of every gossip message variant. Only
// the fields relevant to Kind are populated; callers should use the
// New*Body constructors rather than building one by hand.
type MessageBody struct {
	Kind MessageKind

	// Join / Leave
	PeerName  string
	PeerAgent string

	// MemoryCreated
	Memory Memory

	// StatusUpdate
	StatusAuthor string
	StatusText   string

	// SearchRequest / SearchResponse (memory search)
	RequestID    uuid.UUID
	Query        string
	Filters      SearchFilters
	Results      []Memory
	RespPeerName string

	// SkillPublished
	Skill Skill

	// SkillSearchRequest / SkillSearchResponse
	SkillFilters SkillSearchFilters
	SkillResults []SkillSearchResult

	// SkillVoteCast
	VoteHash  string
	VoteVoter string
	VoteScore int8

	// TaskRequest / TaskClaimed / TaskResponse
	TaskID          uuid.UUID
	TaskSource      string
	TaskRoom        string
	TaskDescription string
	TaskTTLSeconds  uint32
	TaskIssuedAt    uint64
	TaskClaimant    string
	TaskOutcome     TaskResult
}

func NewJoinBody(name, agent string) MessageBody {
	return MessageBody{Kind: KindJoin, PeerName: name, PeerAgent: agent}
}

func NewLeaveBody(name string) MessageBody {
	return MessageBody{Kind: KindLeave, PeerName: name}
}

func NewMemoryCreatedBody(m Memory) MessageBody {
	return MessageBody{Kind: KindMemoryCreated, Memory: m}
}

func NewStatusUpdateBody(author, text string) MessageBody {
	return MessageBody{Kind: KindStatusUpdate, StatusAuthor: author, StatusText: text}
}

func NewSearchRequestBody(requestID uuid.UUID, query string, filters SearchFilters) MessageBody {
	return MessageBody{Kind: KindSearchRequest, RequestID: requestID, Query: query, Filters: filters}
}

func NewSearchResponseBody(requestID uuid.UUID, results []Memory, respPeer string) MessageBody {
	return MessageBody{Kind: KindSearchResponse, RequestID: requestID, Results: results, RespPeerName: respPeer}
}

func NewSkillPublishedBody(s Skill) MessageBody {
	return MessageBody{Kind: KindSkillPublished, Skill: s}
}

func NewSkillSearchRequestBody(requestID uuid.UUID, query string, filters SkillSearchFilters) MessageBody {
	return MessageBody{Kind: KindSkillSearchRequest, RequestID: requestID, Query: query, SkillFilters: filters}
}

func NewSkillSearchResponseBody(requestID uuid.UUID, results []SkillSearchResult, respPeer string) MessageBody {
	return MessageBody{Kind: KindSkillSearchResponse, RequestID: requestID, SkillResults: results, RespPeerName: respPeer}
}

func NewSkillVoteCastBody(hash, voter string, score int8) MessageBody {
	return MessageBody{Kind: KindSkillVoteCast, VoteHash: hash, VoteVoter: voter, VoteScore: score}
}

func NewTaskRequestBody(taskID uuid.UUID, source, room, description string, ttlSeconds uint32, issuedAt uint64) MessageBody {
	return MessageBody{
		Kind: KindTaskRequest, TaskID: taskID, TaskSource: source, TaskRoom: room,
		TaskDescription: description, TaskTTLSeconds: ttlSeconds, TaskIssuedAt: issuedAt,
	}
}

func NewTaskClaimedBody(taskID uuid.UUID, claimant string) MessageBody {
	return MessageBody{Kind: KindTaskClaimed, TaskID: taskID, TaskClaimant: claimant}
}

func NewTaskResponseBody(taskID uuid.UUID, outcome TaskResult) MessageBody {
	return MessageBody{Kind: KindTaskResponse, TaskID: taskID, TaskOutcome: outcome}
}

// Message is the signed envelope broadcast over a room's gossip topic.
type Message struct {
	Nonce     [16]byte
	Body      MessageBody
	SignedBy  *SignerIdentity
	Signature []byte
}

// NewMessage wraps body with a fresh random nonce and no signature.
func NewMessage(body MessageBody) Message {
	return Message{Nonce: newNonce(), Body: body}
}

// SigningPayload is the canonical byte sequence a Signer signs and a
// Verifier checks: the encoding of (nonce, body) only, excluding the
// signature fields themselves.
func (m Message) SigningPayload() []byte {
	e := newEncoder()
	e.buf = append(e.buf, m.Nonce[:]...)
	encodeBody(e, m.Body)
	return e.bytes()
}

// Encode serializes the full envelope, including any signature.
func (m Message) Encode() []byte {
	e := newEncoder()
	e.buf = append(e.buf, m.Nonce[:]...)
	encodeBody(e, m.Body)
	if m.SignedBy != nil {
		e.writeBool(true)
		e.writeString(m.SignedBy.Scheme)
		e.writeString(m.SignedBy.Value)
		e.writeRawBytes(m.Signature)
	} else {
		e.writeBool(false)
	}
	return e.bytes()
}

// DecodeMessage parses a byte slice produced by Encode.
func DecodeMessage(data []byte) (Message, error) {
	d := newDecoder(data)
	var m Message
	if d.remaining() < 16 {
		return Message{}, ErrMessageTooShort
	}
	copy(m.Nonce[:], d.buf[d.pos:d.pos+16])
	d.pos += 16

	body, err := decodeBody(d)
	if err != nil {
		return Message{}, err
	}
	m.Body = body

	signed, err := d.readBool()
	if err != nil {
		return Message{}, err
	}
	if signed {
		scheme, err := d.readString()
		if err != nil {
			return Message{}, err
		}
		value, err := d.readString()
		if err != nil {
			return Message{}, err
		}
		sig, err := d.readRawBytes()
		if err != nil {
			return Message{}, err
		}
		id := SignerIdentity{Scheme: scheme, Value: value}
		m.SignedBy = &id
		m.Signature = sig
	}
	return m, nil
}

func encodeBody(e *encoder, b MessageBody) {
	e.writeUint8(uint8(b.Kind))
	switch b.Kind {
	case KindJoin:
		e.writeString(b.PeerName)
		e.writeString(b.PeerAgent)
	case KindLeave:
		e.writeString(b.PeerName)
	case KindMemoryCreated:
		encodeMemory(e, b.Memory)
	case KindStatusUpdate:
		e.writeString(b.StatusAuthor)
		e.writeString(b.StatusText)
	case KindSearchRequest:
		e.writeUUID(b.RequestID)
		e.writeString(b.Query)
		encodeSearchFilters(e, b.Filters)
	case KindSearchResponse:
		e.writeUUID(b.RequestID)
		e.writeUint32(uint32(len(b.Results)))
		for _, m := range b.Results {
			encodeMemory(e, m)
		}
		e.writeString(b.RespPeerName)
	case KindSkillPublished:
		encodeSkill(e, b.Skill)
	case KindSkillSearchRequest:
		e.writeUUID(b.RequestID)
		e.writeString(b.Query)
		encodeSkillFilters(e, b.SkillFilters)
	case KindSkillSearchResponse:
		e.writeUUID(b.RequestID)
		e.writeUint32(uint32(len(b.SkillResults)))
		for _, r := range b.SkillResults {
			encodeSkill(e, r.Skill)
			e.buf = appendInt64(e.buf, r.Rank)
		}
		e.writeString(b.RespPeerName)
	case KindSkillVoteCast:
		e.writeString(b.VoteHash)
		e.writeString(b.VoteVoter)
		e.writeInt8(b.VoteScore)
	case KindTaskRequest:
		e.writeUUID(b.TaskID)
		e.writeString(b.TaskSource)
		e.writeString(b.TaskRoom)
		e.writeString(b.TaskDescription)
		e.writeUint32(b.TaskTTLSeconds)
		e.writeUint64(b.TaskIssuedAt)
	case KindTaskClaimed:
		e.writeUUID(b.TaskID)
		e.writeString(b.TaskClaimant)
	case KindTaskResponse:
		e.writeUUID(b.TaskID)
		e.writeBool(b.TaskOutcome.Success)
		e.writeString(b.TaskOutcome.Message)
	}
}

func decodeBody(d *decoder) (MessageBody, error) {
	kindByte, err := d.readUint8()
	if err != nil {
		return MessageBody{}, err
	}
	kind := MessageKind(kindByte)
	b := MessageBody{Kind: kind}
	switch kind {
	case KindJoin:
		if b.PeerName, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.PeerAgent, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
	case KindLeave:
		if b.PeerName, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
	case KindMemoryCreated:
		if b.Memory, err = decodeMemory(d); err != nil {
			return MessageBody{}, err
		}
	case KindStatusUpdate:
		if b.StatusAuthor, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.StatusText, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
	case KindSearchRequest:
		if b.RequestID, err = d.readUUID(); err != nil {
			return MessageBody{}, err
		}
		if b.Query, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.Filters, err = decodeSearchFilters(d); err != nil {
			return MessageBody{}, err
		}
	case KindSearchResponse:
		if b.RequestID, err = d.readUUID(); err != nil {
			return MessageBody{}, err
		}
		n, err := d.readUint32()
		if err != nil {
			return MessageBody{}, err
		}
		results := make([]Memory, 0, n)
		for i := uint32(0); i < n; i++ {
			m, err := decodeMemory(d)
			if err != nil {
				return MessageBody{}, err
			}
			results = append(results, m)
		}
		b.Results = results
		if b.RespPeerName, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
	case KindSkillPublished:
		if b.Skill, err = decodeSkill(d); err != nil {
			return MessageBody{}, err
		}
	case KindSkillSearchRequest:
		if b.RequestID, err = d.readUUID(); err != nil {
			return MessageBody{}, err
		}
		if b.Query, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.SkillFilters, err = decodeSkillFilters(d); err != nil {
			return MessageBody{}, err
		}
	case KindSkillSearchResponse:
		if b.RequestID, err = d.readUUID(); err != nil {
			return MessageBody{}, err
		}
		n, err := d.readUint32()
		if err != nil {
			return MessageBody{}, err
		}
		results := make([]SkillSearchResult, 0, n)
		for i := uint32(0); i < n; i++ {
			s, err := decodeSkill(d)
			if err != nil {
				return MessageBody{}, err
			}
			rank, err := readInt64(d)
			if err != nil {
				return MessageBody{}, err
			}
			results = append(results, SkillSearchResult{Skill: s, Rank: rank})
		}
		b.SkillResults = results
		if b.RespPeerName, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
	case KindSkillVoteCast:
		if b.VoteHash, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.VoteVoter, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.VoteScore, err = d.readInt8(); err != nil {
			return MessageBody{}, err
		}
	case KindTaskRequest:
		if b.TaskID, err = d.readUUID(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskSource, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskRoom, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskDescription, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskTTLSeconds, err = d.readUint32(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskIssuedAt, err = d.readUint64(); err != nil {
			return MessageBody{}, err
		}
	case KindTaskClaimed:
		if b.TaskID, err = d.readUUID(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskClaimant, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
	case KindTaskResponse:
		if b.TaskID, err = d.readUUID(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskOutcome.Success, err = d.readBool(); err != nil {
			return MessageBody{}, err
		}
		if b.TaskOutcome.Message, err = d.readString(); err != nil {
			return MessageBody{}, err
		}
	default:
		return MessageBody{}, fmt.Errorf("%w: %d", ErrUnknownMessageKind, kindByte)
	}
	return b, nil
}

func encodeMemory(e *encoder, m Memory) {
	e.writeUUID(m.ID)
	e.writeString(m.Author)
	e.writeUint64(m.Timestamp)
	e.writeString(m.Room)
	e.writeUint8(uint8(m.Kind))
	e.writeString(m.Title)
	e.writeString(m.Body)
	e.writeStringSlice(m.Tags)
	e.writeUUIDSlice(m.References)
}

func decodeMemory(d *decoder) (Memory, error) {
	var m Memory
	var err error
	if m.ID, err = d.readUUID(); err != nil {
		return Memory{}, err
	}
	if m.Author, err = d.readString(); err != nil {
		return Memory{}, err
	}
	if m.Timestamp, err = d.readUint64(); err != nil {
		return Memory{}, err
	}
	if m.Room, err = d.readString(); err != nil {
		return Memory{}, err
	}
	kindByte, err := d.readUint8()
	if err != nil {
		return Memory{}, err
	}
	m.Kind = MemoryKind(kindByte)
	if m.Title, err = d.readString(); err != nil {
		return Memory{}, err
	}
	if m.Body, err = d.readString(); err != nil {
		return Memory{}, err
	}
	if m.Tags, err = d.readStringSlice(); err != nil {
		return Memory{}, err
	}
	if m.References, err = d.readUUIDSlice(); err != nil {
		return Memory{}, err
	}
	return m, nil
}

func encodeSkill(e *encoder, s Skill) {
	e.writeString(s.Hash)
	e.writeString(s.Author)
	e.writeUint64(s.Timestamp)
	e.writeString(s.Room)
	e.writeString(s.Title)
	e.writeString(s.Body)
	e.writeStringSlice(s.Tags)
	e.writeUint32(s.Version)
	e.writeOptString(s.ParentHash)
	if s.SignedBy != nil {
		e.writeBool(true)
		e.writeString(s.SignedBy.Scheme)
		e.writeString(s.SignedBy.Value)
		e.writeRawBytes(s.Signature)
	} else {
		e.writeBool(false)
	}
}

func decodeSkill(d *decoder) (Skill, error) {
	var s Skill
	var err error
	if s.Hash, err = d.readString(); err != nil {
		return Skill{}, err
	}
	if s.Author, err = d.readString(); err != nil {
		return Skill{}, err
	}
	if s.Timestamp, err = d.readUint64(); err != nil {
		return Skill{}, err
	}
	if s.Room, err = d.readString(); err != nil {
		return Skill{}, err
	}
	if s.Title, err = d.readString(); err != nil {
		return Skill{}, err
	}
	if s.Body, err = d.readString(); err != nil {
		return Skill{}, err
	}
	if s.Tags, err = d.readStringSlice(); err != nil {
		return Skill{}, err
	}
	if s.Version, err = d.readUint32(); err != nil {
		return Skill{}, err
	}
	if s.ParentHash, err = d.readOptString(); err != nil {
		return Skill{}, err
	}
	signed, err := d.readBool()
	if err != nil {
		return Skill{}, err
	}
	if signed {
		scheme, err := d.readString()
		if err != nil {
			return Skill{}, err
		}
		value, err := d.readString()
		if err != nil {
			return Skill{}, err
		}
		sig, err := d.readRawBytes()
		if err != nil {
			return Skill{}, err
		}
		id := SignerIdentity{Scheme: scheme, Value: value}
		s.SignedBy = &id
		s.Signature = sig
	}
	return s, nil
}

func encodeSearchFilters(e *encoder, f SearchFilters) {
	e.writeOptString(f.Room)
	e.writeOptString(f.Kind)
	e.writeStringSlice(f.Tags)
}

func decodeSearchFilters(d *decoder) (SearchFilters, error) {
	var f SearchFilters
	var err error
	if f.Room, err = d.readOptString(); err != nil {
		return SearchFilters{}, err
	}
	if f.Kind, err = d.readOptString(); err != nil {
		return SearchFilters{}, err
	}
	if f.Tags, err = d.readStringSlice(); err != nil {
		return SearchFilters{}, err
	}
	return f, nil
}

func encodeSkillFilters(e *encoder, f SkillSearchFilters) {
	e.writeOptString(f.Room)
	e.writeStringSlice(f.Tags)
}

func decodeSkillFilters(d *decoder) (SkillSearchFilters, error) {
	var f SkillSearchFilters
	var err error
	if f.Room, err = d.readOptString(); err != nil {
		return SkillSearchFilters{}, err
	}
	if f.Tags, err = d.readStringSlice(); err != nil {
		return SkillSearchFilters{}, err
	}
	return f, nil
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	u := uint64(v)
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(u)
		u >>= 8
	}
	return append(buf, tmp[:]...)
}

func readInt64(d *decoder) (int64, error) {
	if d.remaining() < 8 {
		return 0, ErrMessageTooShort
	}
	var u uint64
	for i := 0; i < 8; i++ {
		u = u<<8 | uint64(d.buf[d.pos+i])
	}
	d.pos += 8
	return int64(u), nil
}
