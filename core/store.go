package core

// Store is the keyed persistence facade the room coordinator reads and
// writes through. It hides whether entries live in an embedded database
// or in memory; see storekv for the concrete implementations.
type Store interface {
	PutMemory(m Memory) error
	SearchMemories(query string, filters SearchFilters, limit int) ([]Memory, error)

	PutSkill(s Skill) error
	GetSkill(hash string) (Skill, bool, error)
	SearchSkills(query string, filters SkillSearchFilters, limit int) ([]SkillSearchResult, error)

	PutVote(v SkillVote) error
}
