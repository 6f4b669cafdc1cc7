package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// SkillContentHash derives the content-addressed identifier for a skill
// from its title, body and tags. It is permutation-invariant over tags
// (the tag set is sorted before hashing) and otherwise positional: after
// the domain tag, the title, body and each sorted tag are each followed by
// a NUL byte so that "a"+"bc" cannot be confused with "ab"+"c".
//
// A single SHA-256 computation doesn't warrant pulling in a hashing
// library beyond the standard one; see DESIGN.md.
func SkillContentHash(title, body string, tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte("smemo:skill:"))
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(body))
	h.Write([]byte{0})
	for _, tag := range sorted {
		h.Write([]byte(tag))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RoomTopic derives the gossip topic id for a room name.
func RoomTopic(room string) TopicID {
	h := sha256.Sum256([]byte("smemo:room:" + room))
	return TopicID(h)
}
