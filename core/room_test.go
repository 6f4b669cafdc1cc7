package core

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestUUID() uuid.UUID { return uuid.New() }

// fakeBroker is an in-process stand-in for a gossip transport: every
// Subscribe call for the same topic joins the same fan-out group, and
// Broadcast delivers to every other subscriber of that topic (never back
// to the sender), mirroring real gossip semantics.
type fakeBroker struct {
	mu   sync.Mutex
	subs map[TopicID][]chan []byte
}

func newFakeBroker() *fakeBroker { return &fakeBroker{subs: make(map[TopicID][]chan []byte)} }

func (b *fakeBroker) Subscribe(ctx context.Context, topic TopicID, bootstrap []string) (GossipSender, GossipReceiver, error) {
	ch := make(chan []byte, 32)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return &fakeSender{broker: b, topic: topic, self: ch}, &fakeReceiver{ch: ch}, nil
}

type fakeSender struct {
	broker *fakeBroker
	topic  TopicID
	self   chan []byte
}

func (s *fakeSender) Broadcast(ctx context.Context, data []byte) error {
	s.broker.mu.Lock()
	peers := append([]chan []byte(nil), s.broker.subs[s.topic]...)
	s.broker.mu.Unlock()
	for _, ch := range peers {
		if ch == s.self {
			continue
		}
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

type fakeReceiver struct{ ch chan []byte }

func (r *fakeReceiver) Next(ctx context.Context) (Event, error) {
	select {
	case data, ok := <-r.ch:
		if !ok {
			return Event{}, context.Canceled
		}
		return Event{Kind: EventReceived, Content: data}, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// fakeStore is a minimal in-memory Store for room coordinator tests.
type fakeStore struct {
	mu       sync.Mutex
	memories []Memory
	skills   map[string]Skill
	votes    []SkillVote
}

func newFakeStore() *fakeStore {
	return &fakeStore{skills: make(map[string]Skill)}
}

func (s *fakeStore) PutMemory(m Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories = append(s.memories, m)
	return nil
}

func (s *fakeStore) SearchMemories(query string, filters SearchFilters, limit int) ([]Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Memory
	for _, m := range s.memories {
		if filters.Matches(m) && m.MatchesQuery(query) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) PutSkill(sk Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[sk.Hash] = sk
	return nil
}

func (s *fakeStore) GetSkill(hash string) (Skill, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.skills[hash]
	return sk, ok, nil
}

func (s *fakeStore) SearchSkills(query string, filters SkillSearchFilters, limit int) ([]SkillSearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SkillSearchResult
	for _, sk := range s.skills {
		if filters.Matches(sk) && sk.MatchesQuery(query) {
			out = append(out, SkillSearchResult{Skill: sk, Rank: 0})
		}
	}
	return out, nil
}

func (s *fakeStore) PutVote(v SkillVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, v)
	return nil
}

func newTestPeer(broker *fakeBroker, name string) *Coordinator {
	return NewCoordinator(broker, name, name+"-agent", newFakeStore(), nil, nil)
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	broker := newFakeBroker()
	c := newTestPeer(broker, "ada")
	ctx := context.Background()

	topic1, err := c.JoinRoom(ctx, "general", nil)
	if err != nil {
		t.Fatal(err)
	}
	topic2, err := c.JoinRoom(ctx, "general", nil)
	if err != nil {
		t.Fatal(err)
	}
	if topic1 != topic2 {
		t.Fatal("re-joining should return the same topic id")
	}
	if len(c.ListRooms()) != 1 {
		t.Fatalf("expected exactly one joined room, got %v", c.ListRooms())
	}
}

func TestPeersDiscoverEachOtherOnJoin(t *testing.T) {
	broker := newFakeBroker()
	ctx := context.Background()
	ada := newTestPeer(broker, "ada")
	grace := newTestPeer(broker, "grace")

	if _, err := ada.JoinRoom(ctx, "general", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := grace.JoinRoom(ctx, "general", nil); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		_, adaKnowsGrace := ada.RoomPeers("general")["grace"]
		_, graceKnowsAda := grace.RoomPeers("general")["ada"]
		return adaKnowsGrace && graceKnowsAda
	})
}

func TestLeaveRoomRemovesFromRoster(t *testing.T) {
	broker := newFakeBroker()
	ctx := context.Background()
	ada := newTestPeer(broker, "ada")
	grace := newTestPeer(broker, "grace")

	ada.JoinRoom(ctx, "general", nil)
	grace.JoinRoom(ctx, "general", nil)
	waitFor(t, func() bool { _, ok := ada.RoomPeers("general")["grace"]; return ok })

	grace.LeaveRoom(ctx, "general")
	waitFor(t, func() bool { _, ok := ada.RoomPeers("general")["grace"]; return !ok })
}

func TestSearchDistributedMergesPeerResults(t *testing.T) {
	broker := newFakeBroker()
	ctx := context.Background()
	ada := newTestPeer(broker, "ada")
	grace := newTestPeer(broker, "grace")

	ada.JoinRoom(ctx, "general", nil)
	grace.JoinRoom(ctx, "general", nil)
	waitFor(t, func() bool { _, ok := ada.RoomPeers("general")["grace"]; return ok })

	mem := Memory{ID: newTestUUID(), Author: "grace", Timestamp: 100, Room: "general", Title: "pebble notes", Body: "embedded kv"}
	if err := grace.store.PutMemory(mem); err != nil {
		t.Fatal(err)
	}

	results, err := ada.SearchDistributed(ctx, "general", "pebble", SearchFilters{}, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Title != mem.Title {
		t.Fatalf("expected to find grace's memory, got %+v", results)
	}
}

func TestDelegateTaskReceivesPeerResponse(t *testing.T) {
	broker := newFakeBroker()
	ctx := context.Background()
	ada := newTestPeer(broker, "ada")
	grace := newTestPeer(broker, "grace")

	ada.JoinRoom(ctx, "general", nil)
	grace.JoinRoom(ctx, "general", nil)
	waitFor(t, func() bool { _, ok := ada.RoomPeers("general")["grace"]; return ok })

	events, unsubscribe := grace.SubscribeTaskEvents()
	defer unsubscribe()
	go func() {
		task := <-events
		grace.SubmitTaskResult(ctx, task, TaskResult{Success: true, Message: "done by grace"})
	}()

	result, err := ada.DelegateTask(ctx, "general", "run the linter", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Message != "done by grace" {
		t.Fatalf("unexpected task result: %+v", result)
	}
}

func TestDelegateTaskTimesOutWithoutAnyPeer(t *testing.T) {
	broker := newFakeBroker()
	ctx := context.Background()
	ada := newTestPeer(broker, "ada")
	ada.JoinRoom(ctx, "general", nil)

	result, err := ada.DelegateTask(ctx, "general", "run the linter", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected failure when no peer claims the task")
	}
}

func TestVerifyIncomingMessageRequireSignedDropsUnsigned(t *testing.T) {
	broker := newFakeBroker()
	ctx := context.Background()
	ada := newTestPeer(broker, "ada")
	grace := newTestPeer(broker, "grace")

	ada.JoinRoom(ctx, "general", nil)
	grace.JoinRoom(ctx, "general", nil)
	ada.SetIdentityPolicy("general", nil, true)

	grace.UpdateStatus(ctx, "general", "hello")
	time.Sleep(50 * time.Millisecond)

	peers := ada.RoomPeers("general")
	if p, ok := peers["grace"]; ok && p.LastStatus != nil {
		t.Fatal("expected unsigned status update to be dropped under require-signed policy")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
