// Package storekv provides concrete Store implementations for the room
// coordinator: an embedded on-disk store backed by pebble, and an
// in-memory store for ephemeral nodes.
package storekv

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/meshbuddies/smemo/core"
)

const (
	memoryKeyPrefix = "mem:"
	skillKeyPrefix  = "skill:"
	voteKeyPrefix   = "vote:"
)

// PebbleStore is a core.Store backed by a single pebble database, with
// memories, skills and votes separated by key prefix the way the original
// implementation separates them into distinct redb tables.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if absent) a pebble database at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store at %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) PutMemory(m core.Memory) error {
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	key := memoryKeyPrefix + m.ID.String()
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("put memory %s: %w", m.ID, err)
	}
	return nil
}

func (s *PebbleStore) SearchMemories(query string, filters core.SearchFilters, limit int) ([]core.Memory, error) {
	lower := []byte(memoryKeyPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixUpperBound(lower)})
	if err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	defer iter.Close()

	var matched []core.Memory
	for iter.First(); iter.Valid(); iter.Next() {
		var m core.Memory
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("unmarshal memory: %w", err)
		}
		if filters.Matches(m) && m.MatchesQuery(query) {
			matched = append(matched, m)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp > matched[j].Timestamp })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *PebbleStore) PutSkill(skill core.Skill) error {
	value, err := json.Marshal(skill)
	if err != nil {
		return fmt.Errorf("marshal skill: %w", err)
	}
	key := skillKeyPrefix + skill.Hash
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("put skill %s: %w", skill.Hash, err)
	}
	return nil
}

func (s *PebbleStore) GetSkill(hash string) (core.Skill, bool, error) {
	value, closer, err := s.db.Get([]byte(skillKeyPrefix + hash))
	if err == pebble.ErrNotFound {
		return core.Skill{}, false, nil
	}
	if err != nil {
		return core.Skill{}, false, fmt.Errorf("get skill %s: %w", hash, err)
	}
	defer closer.Close()

	var skill core.Skill
	if err := json.Unmarshal(value, &skill); err != nil {
		return core.Skill{}, false, fmt.Errorf("unmarshal skill %s: %w", hash, err)
	}
	return skill, true, nil
}

func (s *PebbleStore) rankForSkill(hash string) (int64, error) {
	lower := []byte(voteKeyPrefix + hash + ":")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixUpperBound(lower)})
	if err != nil {
		return 0, fmt.Errorf("iterate votes for %s: %w", hash, err)
	}
	defer iter.Close()

	var rank int64
	for iter.First(); iter.Valid(); iter.Next() {
		var vote core.SkillVote
		if err := json.Unmarshal(iter.Value(), &vote); err != nil {
			return 0, fmt.Errorf("unmarshal vote: %w", err)
		}
		rank += int64(vote.Score)
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterate votes for %s: %w", hash, err)
	}
	return rank, nil
}

func (s *PebbleStore) SearchSkills(query string, filters core.SkillSearchFilters, limit int) ([]core.SkillSearchResult, error) {
	lower := []byte(skillKeyPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixUpperBound(lower)})
	if err != nil {
		return nil, fmt.Errorf("iterate skills: %w", err)
	}
	defer iter.Close()

	var matched []core.Skill
	for iter.First(); iter.Valid(); iter.Next() {
		var skill core.Skill
		if err := json.Unmarshal(iter.Value(), &skill); err != nil {
			return nil, fmt.Errorf("unmarshal skill: %w", err)
		}
		if filters.Matches(skill) && skill.MatchesQuery(query) {
			matched = append(matched, skill)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate skills: %w", err)
	}

	results := make([]core.SkillSearchResult, 0, len(matched))
	for _, skill := range matched {
		rank, err := s.rankForSkill(skill.Hash)
		if err != nil {
			return nil, err
		}
		results = append(results, core.SkillSearchResult{Skill: skill, Rank: rank})
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

func (s *PebbleStore) PutVote(vote core.SkillVote) error {
	value, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("marshal vote: %w", err)
	}
	key := voteKeyPrefix + vote.Hash + ":" + vote.Voter
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("put vote on %s by %s: %w", vote.Hash, vote.Voter, err)
	}
	return nil
}

var _ core.Store = (*PebbleStore)(nil)
