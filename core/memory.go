package core

import (
	"strings"

	"github.com/google/uuid"
)

// MemoryKind classifies a shared memory entry.
type MemoryKind uint8

const (
	MemoryDecision MemoryKind = iota
	MemoryImplementation
	MemoryContext
	MemorySkill
	MemoryStatus
)

func (k MemoryKind) String() string {
	switch k {
	case MemoryDecision:
		return "decision"
	case MemoryImplementation:
		return "implementation"
	case MemoryContext:
		return "context"
	case MemorySkill:
		return "skill"
	case MemoryStatus:
		return "status"
	default:
		return "unknown"
	}
}

// ParseMemoryKind parses the lowercase string form produced by String.
func ParseMemoryKind(s string) (MemoryKind, bool) {
	switch s {
	case "decision":
		return MemoryDecision, true
	case "implementation":
		return MemoryImplementation, true
	case "context":
		return MemoryContext, true
	case "skill":
		return MemorySkill, true
	case "status":
		return MemoryStatus, true
	default:
		return 0, false
	}
}

// Memory is a single shared memory record.
type Memory struct {
	ID         uuid.UUID
	Author     string
	Timestamp  uint64
	Room       string
	Kind       MemoryKind
	Title      string
	Body       string
	Tags       []string
	References []uuid.UUID
}

// MatchesQuery reports whether the entry's title, body or tags contain
// query as a case-insensitive substring. An empty query matches everything.
func (m Memory) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(m.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(m.Body), q) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// SearchFilters narrows a memory search by room, kind and tags. Nil/empty
// fields are unconstrained.
type SearchFilters struct {
	Room *string
	Kind *string
	Tags []string
}

// Matches reports whether m satisfies f. Room must match exactly, Kind must
// match the entry's string form exactly, and Tags (if non-empty) must
// intersect the entry's tags on at least one element.
func (f SearchFilters) Matches(m Memory) bool {
	if f.Room != nil && *f.Room != m.Room {
		return false
	}
	if f.Kind != nil && *f.Kind != m.Kind.String() {
		return false
	}
	if len(f.Tags) > 0 {
		want := make(map[string]struct{}, len(f.Tags))
		for _, t := range f.Tags {
			want[t] = struct{}{}
		}
		found := false
		for _, t := range m.Tags {
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
