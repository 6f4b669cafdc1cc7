package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PeerRecord is what the coordinator remembers about another participant
// in a room: their declared name/agent and the last status line they
// broadcast, if any.
type PeerRecord struct {
	Name       string
	Agent      string
	LastStatus *string
}

type roomState struct {
	sender GossipSender
	cancel context.CancelFunc
}

// Coordinator is the room-scoped control plane: it owns gossip
// membership, peer rosters, signature policy, and the correlation tables
// behind distributed search and task delegation.
//
// Lock ordering, enforced throughout this file, is: room registry (mu) >
// roster (rosterMu) > task queue (tasks, internally locked) > correlation
// tables (searchMu, taskWaitersMu, taskSubMu) > policy (policyMu). No lock
// is held across a call into Gossip, Store, Signer or Verifier.
type Coordinator struct {
	gossip    Gossip
	userName  string
	agentName string
	store     Store
	signer    Signer
	verifier  Verifier

	mu    sync.RWMutex
	rooms map[string]*roomState

	rosterMu sync.RWMutex
	roster   map[string]map[string]*PeerRecord

	searchMu              sync.Mutex
	pendingMemorySearches map[uuid.UUID]chan []Memory
	pendingSkillSearches  map[uuid.UUID]chan []SkillSearchResult

	taskWaitersMu sync.Mutex
	taskWaiters   map[uuid.UUID]chan TaskResult

	tasks *TaskQueue

	taskSubMu sync.Mutex
	taskSubs  map[int]chan PendingTask
	nextSubID int

	policyMu      sync.RWMutex
	whitelist     map[string]map[string]struct{}
	requireSigned map[string]bool
}

// NewCoordinator builds a Coordinator over gossip and store, identifying
// itself as userName/agentName on the wire. signer may be nil, in which
// case outgoing messages are broadcast unsigned.
func NewCoordinator(gossip Gossip, userName, agentName string, store Store, signer Signer, verifier Verifier) *Coordinator {
	return &Coordinator{
		gossip:                gossip,
		userName:              userName,
		agentName:             agentName,
		store:                 store,
		signer:                signer,
		verifier:              verifier,
		rooms:                 make(map[string]*roomState),
		roster:                make(map[string]map[string]*PeerRecord),
		pendingMemorySearches: make(map[uuid.UUID]chan []Memory),
		pendingSkillSearches:  make(map[uuid.UUID]chan []SkillSearchResult),
		taskWaiters:           make(map[uuid.UUID]chan TaskResult),
		tasks:                 NewTaskQueue(),
		taskSubs:              make(map[int]chan PendingTask),
		whitelist:             make(map[string]map[string]struct{}),
		requireSigned:         make(map[string]bool),
	}
}

// JoinRoom subscribes to room's gossip topic, broadcasts a Join, and
// starts the background receive loop. It is idempotent: re-joining an
// already-joined room is a no-op that returns the same topic id.
func (c *Coordinator) JoinRoom(ctx context.Context, room string, bootstrap []string) (TopicID, error) {
	topic := RoomTopic(room)

	c.mu.RLock()
	_, already := c.rooms[room]
	c.mu.RUnlock()
	if already {
		return topic, nil
	}

	sender, receiver, err := c.gossip.Subscribe(ctx, topic, bootstrap)
	if err != nil {
		return TopicID{}, fmt.Errorf("join room %s: %w", room, err)
	}

	rctx, cancel := context.WithCancel(context.Background())

	c.rosterMu.Lock()
	if _, ok := c.roster[room]; !ok {
		c.roster[room] = make(map[string]*PeerRecord)
	}
	c.rosterMu.Unlock()

	c.mu.Lock()
	c.rooms[room] = &roomState{sender: sender, cancel: cancel}
	c.mu.Unlock()

	if err := c.send(ctx, sender, NewJoinBody(c.userName, c.agentName)); err != nil {
		logrus.Warnf("room %s: failed to broadcast join: %v", room, err)
	}

	go c.receiveLoop(rctx, room, receiver)

	logrus.Infof("joined room %s", room)
	return topic, nil
}

// LeaveRoom unsubscribes from room, broadcasting a best-effort Leave
// first. Leaving a room that was never joined is a no-op.
func (c *Coordinator) LeaveRoom(ctx context.Context, room string) error {
	c.mu.Lock()
	st, ok := c.rooms[room]
	if ok {
		delete(c.rooms, room)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}

	if err := c.send(ctx, st.sender, NewLeaveBody(c.userName)); err != nil {
		logrus.Warnf("room %s: failed to broadcast leave: %v", room, err)
	}
	st.cancel()

	c.rosterMu.Lock()
	delete(c.roster, room)
	c.rosterMu.Unlock()

	logrus.Infof("left room %s", room)
	return nil
}

// ListRooms returns the names of every currently joined room.
func (c *Coordinator) ListRooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.rooms))
	for name := range c.rooms {
		out = append(out, name)
	}
	return out
}

// RoomPeers returns a snapshot of the known peer roster for room.
func (c *Coordinator) RoomPeers(room string) map[string]PeerRecord {
	c.rosterMu.RLock()
	defer c.rosterMu.RUnlock()
	out := make(map[string]PeerRecord)
	for name, p := range c.roster[room] {
		out[name] = *p
	}
	return out
}

// BroadcastToRoom signs (if a signer is configured) and sends body over
// room's gossip topic.
func (c *Coordinator) BroadcastToRoom(ctx context.Context, room string, body MessageBody) error {
	c.mu.RLock()
	st, ok := c.rooms[room]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInRoom, room)
	}
	return c.send(ctx, st.sender, body)
}

func (c *Coordinator) send(ctx context.Context, sender GossipSender, body MessageBody) error {
	msg := NewMessage(body)
	c.trySignMessage(&msg)
	return sender.Broadcast(ctx, msg.Encode())
}

func (c *Coordinator) trySignMessage(msg *Message) {
	if c.signer == nil {
		return
	}
	sig, err := c.signer.Sign(msg.SigningPayload())
	if err != nil {
		logrus.Warnf("signing failed, broadcasting unsigned: %v", err)
		return
	}
	id := c.signer.Identity()
	msg.SignedBy = &id
	msg.Signature = sig
}

func (c *Coordinator) trySignSkill(s *Skill) {
	if c.signer == nil {
		return
	}
	sig, err := c.signer.Sign(skillSigningPayload(*s))
	if err != nil {
		logrus.Warnf("skill signing failed, publishing unsigned: %v", err)
		return
	}
	id := c.signer.Identity()
	s.SignedBy = &id
	s.Signature = sig
}

// PublishMemory stores m locally and broadcasts it to room.
func (c *Coordinator) PublishMemory(ctx context.Context, room string, m Memory) error {
	if err := c.store.PutMemory(m); err != nil {
		return fmt.Errorf("store memory: %w", err)
	}
	return c.BroadcastToRoom(ctx, room, NewMemoryCreatedBody(m))
}

// PublishSkill signs (if possible), stores locally and broadcasts s to
// room.
func (c *Coordinator) PublishSkill(ctx context.Context, room string, s Skill) error {
	c.trySignSkill(&s)
	if err := c.store.PutSkill(s); err != nil {
		return fmt.Errorf("store skill: %w", err)
	}
	return c.BroadcastToRoom(ctx, room, NewSkillPublishedBody(s))
}

// CastSkillVote records the caller's own vote locally and broadcasts it.
func (c *Coordinator) CastSkillVote(ctx context.Context, room, hash string, score int8) error {
	vote := SkillVote{Hash: hash, Voter: c.userName, Score: score, Timestamp: uint64(nowUnix())}
	if err := c.store.PutVote(vote); err != nil {
		return fmt.Errorf("store vote: %w", err)
	}
	return c.BroadcastToRoom(ctx, room, NewSkillVoteCastBody(hash, c.userName, score))
}

// UpdateStatus broadcasts a free-text status line under the caller's name.
func (c *Coordinator) UpdateStatus(ctx context.Context, room, text string) error {
	return c.BroadcastToRoom(ctx, room, NewStatusUpdateBody(c.userName, text))
}

const (
	localSearchLimit   = 50
	requestSearchLimit = 20
)

// SearchDistributed combines a local memory search with responses
// gathered from peers within timeout, returning up to 50 results sorted
// by timestamp descending.
func (c *Coordinator) SearchDistributed(ctx context.Context, room, query string, filters SearchFilters, timeout time.Duration) ([]Memory, error) {
	local, err := c.store.SearchMemories(query, filters, localSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("local memory search: %w", err)
	}

	c.mu.RLock()
	st, ok := c.rooms[room]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInRoom, room)
	}

	requestID := uuid.New()
	resultsCh := make(chan []Memory, 32)
	c.searchMu.Lock()
	c.pendingMemorySearches[requestID] = resultsCh
	c.searchMu.Unlock()
	defer func() {
		c.searchMu.Lock()
		delete(c.pendingMemorySearches, requestID)
		c.searchMu.Unlock()
	}()

	if err := c.send(ctx, st.sender, NewSearchRequestBody(requestID, query, filters)); err != nil {
		logrus.Warnf("room %s: failed to broadcast search request: %v", room, err)
	}

	results := append([]Memory(nil), local...)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
collect:
	for {
		select {
		case batch := <-resultsCh:
			results = append(results, batch...)
		case <-deadline.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Timestamp > results[j].Timestamp })
	if len(results) > localSearchLimit {
		results = results[:localSearchLimit]
	}
	return results, nil
}

// SearchSkillsDistributed mirrors SearchDistributed for skills, merging
// peer responses into local results by hash and summing ranks for any
// hash seen more than once, then sorting by rank descending and
// timestamp descending.
func (c *Coordinator) SearchSkillsDistributed(ctx context.Context, room, query string, filters SkillSearchFilters, timeout time.Duration) ([]SkillSearchResult, error) {
	local, err := c.store.SearchSkills(query, filters, localSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("local skill search: %w", err)
	}

	c.mu.RLock()
	st, ok := c.rooms[room]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInRoom, room)
	}

	requestID := uuid.New()
	resultsCh := make(chan []SkillSearchResult, 32)
	c.searchMu.Lock()
	c.pendingSkillSearches[requestID] = resultsCh
	c.searchMu.Unlock()
	defer func() {
		c.searchMu.Lock()
		delete(c.pendingSkillSearches, requestID)
		c.searchMu.Unlock()
	}()

	if err := c.send(ctx, st.sender, NewSkillSearchRequestBody(requestID, query, filters)); err != nil {
		logrus.Warnf("room %s: failed to broadcast skill search request: %v", room, err)
	}

	byHash := make(map[string]int)
	merged := make([]SkillSearchResult, 0, len(local))
	for _, r := range local {
		byHash[r.Skill.Hash] = len(merged)
		merged = append(merged, r)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
collect:
	for {
		select {
		case batch := <-resultsCh:
			for _, r := range batch {
				if idx, ok := byHash[r.Skill.Hash]; ok {
					merged[idx].Rank += r.Rank
				} else {
					byHash[r.Skill.Hash] = len(merged)
					merged = append(merged, r)
				}
			}
		case <-deadline.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Rank != merged[j].Rank {
			return merged[i].Rank > merged[j].Rank
		}
		return merged[i].Skill.Timestamp > merged[j].Skill.Timestamp
	})
	if len(merged) > localSearchLimit {
		merged = merged[:localSearchLimit]
	}
	return merged, nil
}

// DelegateTask broadcasts a task request to room and waits up to ttl for
// a peer's response. A timeout or closed channel resolves to a failed
// TaskResult rather than an error; only a room that is not joined
// (ErrNotInRoom), a transport failure or context cancellation is returned
// as an error.
func (c *Coordinator) DelegateTask(ctx context.Context, room, description string, ttl time.Duration) (TaskResult, error) {
	c.mu.RLock()
	st, ok := c.rooms[room]
	c.mu.RUnlock()
	if !ok {
		return TaskResult{}, fmt.Errorf("%w: %s", ErrNotInRoom, room)
	}

	taskID := uuid.New()
	waitCh := make(chan TaskResult, 1)
	c.taskWaitersMu.Lock()
	c.taskWaiters[taskID] = waitCh
	c.taskWaitersMu.Unlock()
	defer func() {
		c.taskWaitersMu.Lock()
		delete(c.taskWaiters, taskID)
		c.taskWaitersMu.Unlock()
	}()

	issuedAt := uint64(nowUnix())
	ttlSeconds := uint32(ttl.Seconds())
	if err := c.send(ctx, st.sender, NewTaskRequestBody(taskID, c.userName, room, description, ttlSeconds, issuedAt)); err != nil {
		return TaskResult{}, fmt.Errorf("broadcast task request: %w", err)
	}

	timer := time.NewTimer(ttl)
	defer timer.Stop()
	select {
	case result, ok := <-waitCh:
		if !ok {
			return TaskResult{Success: false, Message: "task response channel closed unexpectedly"}, nil
		}
		return result, nil
	case <-timer.C:
		return TaskResult{Success: false, Message: fmt.Sprintf("no peer completed the task within %ds", int(ttl.Seconds()))}, nil
	case <-ctx.Done():
		return TaskResult{}, ctx.Err()
	}
}

// PollTasks drains currently-admitted, non-expired tasks matching
// roomFilter (nil matches any room) without blocking.
func (c *Coordinator) PollTasks(roomFilter *string) []PendingTask {
	return c.tasks.Poll(roomFilter)
}

// WaitForTasks polls once, and if nothing matched, waits for either a new
// admission or timeout before polling again.
func (c *Coordinator) WaitForTasks(ctx context.Context, roomFilter *string, timeout time.Duration) []PendingTask {
	return c.tasks.Wait(ctx, roomFilter, timeout)
}

// SubmitTaskResult broadcasts the outcome of a claimed task back to its
// room.
func (c *Coordinator) SubmitTaskResult(ctx context.Context, task PendingTask, result TaskResult) error {
	return c.BroadcastToRoom(ctx, task.Room, NewTaskResponseBody(task.TaskID, result))
}

// SubscribeTaskEvents registers a lossy fan-out subscriber for newly
// admitted tasks. The returned function must be called to unsubscribe and
// release the channel.
func (c *Coordinator) SubscribeTaskEvents() (<-chan PendingTask, func()) {
	c.taskSubMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan PendingTask, 16)
	c.taskSubs[id] = ch
	c.taskSubMu.Unlock()

	unsubscribe := func() {
		c.taskSubMu.Lock()
		if existing, ok := c.taskSubs[id]; ok {
			delete(c.taskSubs, id)
			close(existing)
		}
		c.taskSubMu.Unlock()
	}
	return ch, unsubscribe
}

func (c *Coordinator) fanOutTask(task PendingTask) {
	c.taskSubMu.Lock()
	defer c.taskSubMu.Unlock()
	for _, ch := range c.taskSubs {
		select {
		case ch <- task:
		default:
			logrus.Debugf("task subscriber channel full, dropping task %s", task.TaskID)
		}
	}
}

// SetIdentityPolicy replaces room's whitelist and require-signed flag.
func (c *Coordinator) SetIdentityPolicy(room string, whitelist []SignerIdentity, requireSigned bool) {
	set := make(map[string]struct{}, len(whitelist))
	for _, id := range whitelist {
		set[id.Label()] = struct{}{}
	}
	c.policyMu.Lock()
	c.whitelist[room] = set
	c.requireSigned[room] = requireSigned
	c.policyMu.Unlock()
}

// AddWhitelistedIdentity adds a single identity to room's whitelist.
func (c *Coordinator) AddWhitelistedIdentity(room string, id SignerIdentity) {
	c.policyMu.Lock()
	defer c.policyMu.Unlock()
	set, ok := c.whitelist[room]
	if !ok {
		set = make(map[string]struct{})
		c.whitelist[room] = set
	}
	set[id.Label()] = struct{}{}
}

// GetIdentityPolicy returns room's current whitelist labels and
// require-signed flag.
func (c *Coordinator) GetIdentityPolicy(room string) ([]string, bool) {
	c.policyMu.RLock()
	defer c.policyMu.RUnlock()
	labels := make([]string, 0, len(c.whitelist[room]))
	for label := range c.whitelist[room] {
		labels = append(labels, label)
	}
	return labels, c.requireSigned[room]
}

// SignerIdentityLabel returns the coordinator's own signing identity
// label, if a signer is configured.
func (c *Coordinator) SignerIdentityLabel() (string, bool) {
	if c.signer == nil {
		return "", false
	}
	return c.signer.Identity().Label(), true
}

func (c *Coordinator) receiveLoop(ctx context.Context, room string, receiver GossipReceiver) {
	for {
		ev, err := receiver.Next(ctx)
		if err != nil {
			logrus.Infof("room %s: receive loop ended: %v", room, err)
			return
		}
		if ev.Kind != EventReceived {
			continue
		}
		c.handleMessage(ctx, room, ev.Content)
	}
}

func (c *Coordinator) handleMessage(ctx context.Context, room string, raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		logrus.Debugf("room %s: dropping undecodable message: %v", room, err)
		return
	}
	if !c.verifyIncomingMessage(room, msg) {
		return
	}

	switch msg.Body.Kind {
	case KindJoin:
		c.handleJoin(ctx, room, msg.Body)
	case KindLeave:
		c.handleLeave(room, msg.Body)
	case KindMemoryCreated:
		if err := c.store.PutMemory(msg.Body.Memory); err != nil {
			logrus.Warnf("room %s: failed to store received memory: %v", room, err)
		}
	case KindStatusUpdate:
		c.handleStatusUpdate(room, msg.Body)
	case KindSearchRequest:
		c.handleSearchRequest(ctx, room, msg.Body)
	case KindSearchResponse:
		c.deliverMemorySearchResponse(msg.Body)
	case KindSkillPublished:
		c.handleSkillPublished(room, msg.Body)
	case KindSkillSearchRequest:
		c.handleSkillSearchRequest(ctx, room, msg.Body)
	case KindSkillSearchResponse:
		c.deliverSkillSearchResponse(msg.Body)
	case KindSkillVoteCast:
		c.handleSkillVoteCast(room, msg.Body)
	case KindTaskRequest:
		c.handleTaskRequest(room, msg.Body)
	case KindTaskClaimed:
		logrus.Debugf("room %s: task %s claimed by %s", room, msg.Body.TaskID, msg.Body.TaskClaimant)
	case KindTaskResponse:
		c.deliverTaskResponse(msg.Body)
	default:
		logrus.Debugf("room %s: dropping message of unknown kind %d", room, msg.Body.Kind)
	}
}

func (c *Coordinator) handleJoin(ctx context.Context, room string, body MessageBody) {
	if body.PeerName == c.userName {
		return
	}
	c.rosterMu.Lock()
	peers, ok := c.roster[room]
	if !ok {
		peers = make(map[string]*PeerRecord)
		c.roster[room] = peers
	}
	_, existed := peers[body.PeerName]
	peers[body.PeerName] = &PeerRecord{Name: body.PeerName, Agent: body.PeerAgent}
	c.rosterMu.Unlock()

	if existed {
		return
	}
	logrus.Infof("room %s: peer %s joined", room, body.PeerName)

	c.mu.RLock()
	st, ok := c.rooms[room]
	c.mu.RUnlock()
	if ok {
		if err := c.send(ctx, st.sender, NewJoinBody(c.userName, c.agentName)); err != nil {
			logrus.Warnf("room %s: failed to re-broadcast join for discovery: %v", room, err)
		}
	}
}

func (c *Coordinator) handleLeave(room string, body MessageBody) {
	if body.PeerName == c.userName {
		return
	}
	c.rosterMu.Lock()
	delete(c.roster[room], body.PeerName)
	c.rosterMu.Unlock()
	logrus.Infof("room %s: peer %s left", room, body.PeerName)
}

func (c *Coordinator) handleStatusUpdate(room string, body MessageBody) {
	c.rosterMu.Lock()
	defer c.rosterMu.Unlock()
	peer, ok := c.roster[room][body.StatusAuthor]
	if !ok {
		return
	}
	text := body.StatusText
	peer.LastStatus = &text
}

func (c *Coordinator) handleSearchRequest(ctx context.Context, room string, body MessageBody) {
	results, err := c.store.SearchMemories(body.Query, body.Filters, requestSearchLimit)
	if err != nil {
		logrus.Warnf("room %s: local search for peer request failed: %v", room, err)
		return
	}
	if len(results) == 0 {
		return
	}
	c.mu.RLock()
	st, ok := c.rooms[room]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.send(ctx, st.sender, NewSearchResponseBody(body.RequestID, results, c.userName)); err != nil {
		logrus.Warnf("room %s: failed to broadcast search response: %v", room, err)
	}
}

func (c *Coordinator) deliverMemorySearchResponse(body MessageBody) {
	c.searchMu.Lock()
	ch, ok := c.pendingMemorySearches[body.RequestID]
	c.searchMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- body.Results:
	default:
	}
}

func (c *Coordinator) handleSkillPublished(room string, body MessageBody) {
	if !c.verifySkillSignature(room, body.Skill) {
		logrus.Warnf("room %s: dropping skill %s with invalid signature", room, body.Skill.Hash)
		return
	}
	if err := c.store.PutSkill(body.Skill); err != nil {
		logrus.Warnf("room %s: failed to store received skill: %v", room, err)
	}
}

func (c *Coordinator) handleSkillSearchRequest(ctx context.Context, room string, body MessageBody) {
	results, err := c.store.SearchSkills(body.Query, body.SkillFilters, requestSearchLimit)
	if err != nil {
		logrus.Warnf("room %s: local skill search for peer request failed: %v", room, err)
		return
	}
	if len(results) == 0 {
		return
	}
	c.mu.RLock()
	st, ok := c.rooms[room]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.send(ctx, st.sender, NewSkillSearchResponseBody(body.RequestID, results, c.userName)); err != nil {
		logrus.Warnf("room %s: failed to broadcast skill search response: %v", room, err)
	}
}

func (c *Coordinator) deliverSkillSearchResponse(body MessageBody) {
	c.searchMu.Lock()
	ch, ok := c.pendingSkillSearches[body.RequestID]
	c.searchMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- body.SkillResults:
	default:
	}
}

func (c *Coordinator) handleSkillVoteCast(room string, body MessageBody) {
	vote := SkillVote{Hash: body.VoteHash, Voter: body.VoteVoter, Score: body.VoteScore, Timestamp: uint64(nowUnix())}
	if err := c.store.PutVote(vote); err != nil {
		logrus.Warnf("room %s: failed to store received vote: %v", room, err)
	}
}

func (c *Coordinator) handleTaskRequest(room string, body MessageBody) {
	if body.TaskSource == c.userName {
		return
	}
	task := PendingTask{
		TaskID:      body.TaskID,
		SourcePeer:  body.TaskSource,
		Room:        room,
		Description: body.TaskDescription,
		IssuedAt:    body.TaskIssuedAt,
		TTLSeconds:  body.TaskTTLSeconds,
	}
	if !c.tasks.Admit(task) {
		logrus.Warnf("room %s: task queue full, dropping task %s", room, body.TaskID)
		return
	}
	c.fanOutTask(task)
}

func (c *Coordinator) deliverTaskResponse(body MessageBody) {
	c.taskWaitersMu.Lock()
	ch, ok := c.taskWaiters[body.TaskID]
	if ok {
		delete(c.taskWaiters, body.TaskID)
	}
	c.taskWaitersMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- body.TaskOutcome:
	default:
	}
}

// verifyIncomingMessage applies the room's signature policy: an unsigned
// message is accepted only if the room doesn't require signing and has no
// whitelist; a signed message must carry a signature, pass the whitelist
// (if any), and verify.
func (c *Coordinator) verifyIncomingMessage(room string, msg Message) bool {
	c.policyMu.RLock()
	mustBeSigned := c.requireSigned[room]
	wl := c.whitelist[room]
	c.policyMu.RUnlock()

	if msg.SignedBy == nil {
		if mustBeSigned {
			logrus.Warnf("room %s: dropping unsigned message, signing required", room)
			return false
		}
		if len(wl) > 0 {
			logrus.Warnf("room %s: dropping unsigned message, whitelist active", room)
			return false
		}
		return true
	}
	if len(msg.Signature) == 0 {
		logrus.Warnf("room %s: dropping message claiming identity %s with no signature", room, msg.SignedBy.Label())
		return false
	}
	if len(wl) > 0 {
		if _, ok := wl[msg.SignedBy.Label()]; !ok {
			logrus.Warnf("room %s: dropping message from non-whitelisted identity %s", room, msg.SignedBy.Label())
			return false
		}
	}
	ok, err := c.verifier.Verify(*msg.SignedBy, msg.SigningPayload(), msg.Signature)
	if err != nil {
		logrus.Warnf("room %s: signature verification error for %s: %v", room, msg.SignedBy.Label(), err)
		return false
	}
	if !ok {
		logrus.Warnf("room %s: signature verification failed for %s", room, msg.SignedBy.Label())
		return false
	}
	return true
}

func (c *Coordinator) verifySkillSignature(room string, s Skill) bool {
	c.policyMu.RLock()
	mustBeSigned := c.requireSigned[room]
	wl := c.whitelist[room]
	c.policyMu.RUnlock()

	if s.SignedBy == nil {
		return !mustBeSigned && len(wl) == 0
	}
	if len(s.Signature) == 0 {
		return false
	}
	if len(wl) > 0 {
		if _, ok := wl[s.SignedBy.Label()]; !ok {
			return false
		}
	}
	ok, err := c.verifier.Verify(*s.SignedBy, skillSigningPayload(s), s.Signature)
	if err != nil {
		logrus.Warnf("room %s: skill signature verification error for %s: %v", room, s.Hash, err)
		return false
	}
	return ok
}
