package storekv

import (
	"testing"

	"github.com/google/uuid"

	"github.com/meshbuddies/smemo/core"
)

func TestMemoryStoreMemoriesSortedDescendingByTimestamp(t *testing.T) {
	s := NewMemoryStore()
	older := core.Memory{ID: uuid.New(), Title: "first", Timestamp: 1}
	newer := core.Memory{ID: uuid.New(), Title: "second", Timestamp: 2}
	s.PutMemory(older)
	s.PutMemory(newer)

	results, err := s.SearchMemories("", core.SearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Title != "second" {
		t.Fatalf("expected descending order, got %+v", results)
	}
}

func TestMemoryStoreGetSkillMissing(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.GetSkill("nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing skill hash")
	}
}

func TestMemoryStoreVoteOverwritesByVoterIsLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	s.PutSkill(core.Skill{Hash: "h1", Title: "skill"})
	s.PutVote(core.SkillVote{Hash: "h1", Voter: "ada", Score: 1})
	s.PutVote(core.SkillVote{Hash: "h1", Voter: "ada", Score: -1})

	results, err := s.SearchSkills("", core.SkillSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Rank != -1 {
		t.Fatalf("expected ada's second vote to overwrite the first, got %+v", results)
	}
}

func TestMemoryStoreSearchSkillsRanksByVoteTotal(t *testing.T) {
	s := NewMemoryStore()
	s.PutSkill(core.Skill{Hash: "popular", Title: "popular skill"})
	s.PutSkill(core.Skill{Hash: "unpopular", Title: "unpopular skill"})
	s.PutVote(core.SkillVote{Hash: "popular", Voter: "ada", Score: 1})
	s.PutVote(core.SkillVote{Hash: "popular", Voter: "grace", Score: 1})
	s.PutVote(core.SkillVote{Hash: "unpopular", Voter: "ada", Score: -1})

	results, err := s.SearchSkills("", core.SkillSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Skill.Hash != "popular" || results[0].Rank != 2 {
		t.Fatalf("expected popular skill ranked first with rank 2, got %+v", results)
	}
}
