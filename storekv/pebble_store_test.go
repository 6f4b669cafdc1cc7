package storekv

import (
	"testing"

	"github.com/google/uuid"

	"github.com/meshbuddies/smemo/core"
)

func openTestPebbleStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := OpenPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPebbleStoreMemoriesSortedDescendingByTimestamp(t *testing.T) {
	s := openTestPebbleStore(t)

	older := core.Memory{ID: uuid.New(), Room: "general", Title: "first", Timestamp: 100}
	newer := core.Memory{ID: uuid.New(), Room: "general", Title: "second", Timestamp: 200}
	if err := s.PutMemory(older); err != nil {
		t.Fatal(err)
	}
	if err := s.PutMemory(newer); err != nil {
		t.Fatal(err)
	}

	results, err := s.SearchMemories("", core.SearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Title != "second" || results[1].Title != "first" {
		t.Fatalf("expected descending timestamp order, got %+v", results)
	}
}

func TestPebbleStoreSearchMemoriesAppliesQueryAndFilters(t *testing.T) {
	s := openTestPebbleStore(t)

	room := "general"
	other := "other"
	a := core.Memory{ID: uuid.New(), Room: room, Title: "pebble notes", Timestamp: 1}
	b := core.Memory{ID: uuid.New(), Room: other, Title: "pebble notes", Timestamp: 2}
	c := core.Memory{ID: uuid.New(), Room: room, Title: "unrelated", Timestamp: 3}
	for _, m := range []core.Memory{a, b, c} {
		if err := s.PutMemory(m); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.SearchMemories("pebble", core.SearchFilters{Room: &room}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Title != "pebble notes" {
		t.Fatalf("expected one matching memory in room %s, got %+v", room, results)
	}
}

func TestPebbleStoreSearchMemoriesRespectsLimit(t *testing.T) {
	s := openTestPebbleStore(t)
	for i := 0; i < 5; i++ {
		if err := s.PutMemory(core.Memory{ID: uuid.New(), Room: "general", Timestamp: uint64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.SearchMemories("", core.SearchFilters{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(results))
	}
}

func TestPebbleStoreSkillRoundTripAndMissingLookup(t *testing.T) {
	s := openTestPebbleStore(t)
	skill := core.Skill{Hash: "abc123", Room: "general", Title: "linting tips", Timestamp: 10}

	if err := s.PutSkill(skill); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetSkill("abc123")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.Title != skill.Title {
		t.Fatalf("expected to find the stored skill, got %+v ok=%v", got, ok)
	}

	_, ok, err = s.GetSkill("does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected GetSkill to report false for a missing hash")
	}
}

func TestPebbleStoreSearchSkillsRanksByVoteTotal(t *testing.T) {
	s := openTestPebbleStore(t)

	popular := core.Skill{Hash: "popular", Room: "general", Title: "popular skill", Timestamp: 1}
	unpopular := core.Skill{Hash: "unpopular", Room: "general", Title: "unpopular skill", Timestamp: 2}
	if err := s.PutSkill(popular); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSkill(unpopular); err != nil {
		t.Fatal(err)
	}

	votes := []core.SkillVote{
		{Hash: "popular", Voter: "ada", Score: 1},
		{Hash: "popular", Voter: "grace", Score: 1},
		{Hash: "unpopular", Voter: "ada", Score: -1},
	}
	for _, v := range votes {
		if err := s.PutVote(v); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.SearchSkills("", core.SkillSearchFilters{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Skill.Hash != "popular" || results[0].Rank != 2 {
		t.Fatalf("expected popular skill ranked first with rank 2, got %+v", results)
	}
	if results[1].Rank != -1 {
		t.Fatalf("expected unpopular skill rank -1, got %+v", results[1])
	}
}
