package core

import "strings"

// Skill is a versioned, content-addressed skill entry. Hash is the
// output of SkillContentHash over Title/Body/Tags and is stable across
// peers regardless of tag ordering.
type Skill struct {
	Hash       string
	Author     string
	Timestamp  uint64
	Room       string
	Title      string
	Body       string
	Tags       []string
	Version    uint32
	ParentHash *string
	SignedBy   *SignerIdentity
	Signature  []byte
}

// MatchesQuery mirrors Memory.MatchesQuery for skill entries.
func (s Skill) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(s.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(s.Body), q) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// SkillSearchFilters narrows a skill search by room and tags.
type SkillSearchFilters struct {
	Room *string
	Tags []string
}

// Matches reports whether s satisfies f.
func (f SkillSearchFilters) Matches(s Skill) bool {
	if f.Room != nil && *f.Room != s.Room {
		return false
	}
	if len(f.Tags) > 0 {
		want := make(map[string]struct{}, len(f.Tags))
		for _, t := range f.Tags {
			want[t] = struct{}{}
		}
		found := false
		for _, t := range s.Tags {
			if _, ok := want[t]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SkillVote is a single voter's endorsement of a skill hash. Score is
// small (typically -1..1) but carried as int8 to allow a wider range
// without widening the wire format.
type SkillVote struct {
	Hash      string
	Voter     string
	Score     int8
	Timestamp uint64
}

// SkillSearchResult pairs a skill entry with its aggregate vote rank.
type SkillSearchResult struct {
	Skill Skill
	Rank  int64
}

// skillSigningPayload is the canonical byte sequence signed over a skill,
// excluding the SignedBy/Signature fields themselves.
func skillSigningPayload(s Skill) []byte {
	e := newEncoder()
	e.writeString(s.Hash)
	e.writeString(s.Author)
	e.writeUint64(s.Timestamp)
	e.writeString(s.Room)
	e.writeString(s.Title)
	e.writeString(s.Body)
	e.writeStringSlice(s.Tags)
	e.writeUint32(s.Version)
	e.writeOptString(s.ParentHash)
	return e.bytes()
}
