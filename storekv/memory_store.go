package storekv

import (
	"sort"
	"sync"

	"github.com/meshbuddies/smemo/core"
)

// MemoryStore is a core.Store backed entirely by in-process maps, used
// when a node is started without a data directory.
type MemoryStore struct {
	mu       sync.RWMutex
	memories map[string]core.Memory
	skills   map[string]core.Skill
	votes    map[string]core.SkillVote // keyed by hash+":"+voter
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memories: make(map[string]core.Memory),
		skills:   make(map[string]core.Skill),
		votes:    make(map[string]core.SkillVote),
	}
}

func (s *MemoryStore) PutMemory(m core.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[m.ID.String()] = m
	return nil
}

func (s *MemoryStore) SearchMemories(query string, filters core.SearchFilters, limit int) ([]core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []core.Memory
	for _, m := range s.memories {
		if filters.Matches(m) && m.MatchesQuery(query) {
			matched = append(matched, m)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp > matched[j].Timestamp })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) PutSkill(skill core.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[skill.Hash] = skill
	return nil
}

func (s *MemoryStore) GetSkill(hash string) (core.Skill, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skill, ok := s.skills[hash]
	return skill, ok, nil
}

func (s *MemoryStore) rankForSkillLocked(hash string) int64 {
	var rank int64
	prefix := hash + ":"
	for key, vote := range s.votes {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			rank += int64(vote.Score)
		}
	}
	return rank
}

func (s *MemoryStore) SearchSkills(query string, filters core.SkillSearchFilters, limit int) ([]core.SkillSearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []core.SkillSearchResult
	for _, skill := range s.skills {
		if !filters.Matches(skill) || !skill.MatchesQuery(query) {
			continue
		}
		results = append(results, core.SkillSearchResult{Skill: skill, Rank: s.rankForSkillLocked(skill.Hash)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank > results[j].Rank
		}
		return results[i].Skill.Timestamp > results[j].Skill.Timestamp
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) PutVote(vote core.SkillVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[vote.Hash+":"+vote.Voter] = vote
	return nil
}

var _ core.Store = (*MemoryStore)(nil)
