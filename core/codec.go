package core

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// The wire codec is a hand-rolled, length-prefixed binary format rather
// than a general-purpose serialization library: every field is written in
// a fixed order determined by the message kind, so encode(decode(b)) == b
// and the signing payload (nonce, body) is reproducible byte-for-byte on
// every peer. gob and encoding/json both reorder or vary (map iteration,
// struct tags, float formatting) in ways that would break signature
// verification across peers running different Go versions; see DESIGN.md.

type encoder struct {
	buf []byte
}

func newEncoder() *encoder { return &encoder{buf: make([]byte, 0, 128)} }

func (e *encoder) bytes() []byte { return e.buf }

func (e *encoder) writeUint8(v uint8) { e.buf = append(e.buf, v) }

func (e *encoder) writeInt8(v int8) { e.buf = append(e.buf, byte(v)) }

func (e *encoder) writeUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *encoder) writeUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *encoder) writeRawBytes(v []byte) {
	e.writeUint32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) writeString(v string) { e.writeRawBytes([]byte(v)) }

func (e *encoder) writeStringSlice(v []string) {
	e.writeUint32(uint32(len(v)))
	for _, s := range v {
		e.writeString(s)
	}
}

func (e *encoder) writeUUID(v uuid.UUID) { e.buf = append(e.buf, v[:]...) }

func (e *encoder) writeUUIDSlice(v []uuid.UUID) {
	e.writeUint32(uint32(len(v)))
	for _, id := range v {
		e.writeUUID(id)
	}
}

func (e *encoder) writeBool(v bool) {
	if v {
		e.writeUint8(1)
	} else {
		e.writeUint8(0)
	}
}

func (e *encoder) writeOptString(v *string) {
	e.writeBool(v != nil)
	if v != nil {
		e.writeString(*v)
	}
}

type decoder struct {
	buf []byte
	pos int
}

func newDecoder(b []byte) *decoder { return &decoder{buf: b} }

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) readUint8() (uint8, error) {
	if d.remaining() < 1 {
		return 0, ErrMessageTooShort
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) readInt8() (int8, error) {
	v, err := d.readUint8()
	return int8(v), err
}

func (d *decoder) readUint32() (uint32, error) {
	if d.remaining() < 4 {
		return 0, ErrMessageTooShort
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

func (d *decoder) readUint64() (uint64, error) {
	if d.remaining() < 8 {
		return 0, ErrMessageTooShort
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

func (d *decoder) readRawBytes() ([]byte, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if d.remaining() < int(n) {
		return nil, ErrMessageTooShort
	}
	v := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (d *decoder) readString() (string, error) {
	b, err := d.readRawBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) readStringSlice() ([]string, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) readUUID() (uuid.UUID, error) {
	if d.remaining() < 16 {
		return uuid.UUID{}, ErrMessageTooShort
	}
	var id uuid.UUID
	copy(id[:], d.buf[d.pos:d.pos+16])
	d.pos += 16
	return id, nil
}

func (d *decoder) readUUIDSlice() ([]uuid.UUID, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, n)
	for i := uint32(0); i < n; i++ {
		id, err := d.readUUID()
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (d *decoder) readBool() (bool, error) {
	v, err := d.readUint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *decoder) readOptString() (*string, error) {
	present, err := d.readBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := d.readString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func newNonce() [16]byte {
	var n [16]byte
	if _, err := rand.Read(n[:]); err != nil {
		// crypto/rand failing means the platform RNG is broken; there is
		// no safe nonce to return, so this panics.
		panic(fmt.Sprintf("core: crypto/rand unavailable: %v", err))
	}
	return n
}
