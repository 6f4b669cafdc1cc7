// Package libp2pgossip implements core.Gossip over a real libp2p host
// using GossipSub, the way orbas1-Synnergy's core/network.go wires up its
// pubsub-based peer-to-peer layer.
package libp2pgossip

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"github.com/meshbuddies/smemo/core"
)

const topicPrefix = "smemo/"

func topicString(topic core.TopicID) string {
	return topicPrefix + hex.EncodeToString(topic[:])
}

// Endpoint is a libp2p host bound to a single GossipSub router, shared
// across every room a node joins.
type Endpoint struct {
	host   host.Host
	pubsub *pubsub.PubSub
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewEndpoint starts a libp2p host listening on listenAddr (an empty
// string picks an ephemeral TCP port on all interfaces) with GossipSub
// enabled.
func NewEndpoint(listenAddr string) (*Endpoint, error) {
	ctx, cancel := context.WithCancel(context.Background())

	opts := []libp2p.Option{}
	if listenAddr != "" {
		opts = append(opts, libp2p.ListenAddrStrings(listenAddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("create gossipsub router: %w", err)
	}

	logrus.Infof("libp2p endpoint listening as %s", h.ID())
	return &Endpoint{host: h, pubsub: ps, ctx: ctx, cancel: cancel, topics: make(map[string]*pubsub.Topic)}, nil
}

// HostID returns this endpoint's libp2p peer id.
func (e *Endpoint) HostID() string { return e.host.ID().String() }

// Addrs returns this endpoint's dialable multiaddrs as strings, suitable
// for embedding in a room ticket's endpoint list.
func (e *Endpoint) Addrs() []string {
	info := peer.AddrInfo{ID: e.host.ID(), Addrs: e.host.Addrs()}
	addrs, err := peer.AddrInfoToP2pAddrs(&info)
	if err != nil {
		logrus.Warnf("failed to render endpoint addrs: %v", err)
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// Close tears down the host and every topic it joined.
func (e *Endpoint) Close() error {
	e.cancel()
	return e.host.Close()
}

func (e *Endpoint) dialBootstrap(bootstrap []string) {
	for _, addr := range bootstrap {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			logrus.Warnf("invalid bootstrap address %s: %v", addr, err)
			continue
		}
		if err := e.host.Connect(e.ctx, *info); err != nil {
			logrus.Warnf("failed to connect to bootstrap peer %s: %v", addr, err)
			continue
		}
		logrus.Infof("connected to bootstrap peer %s", addr)
	}
}

func (e *Endpoint) joinTopic(topicStr string) (*pubsub.Topic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.topics[topicStr]; ok {
		return t, nil
	}
	t, err := e.pubsub.Join(topicStr)
	if err != nil {
		return nil, fmt.Errorf("join topic %s: %w", topicStr, err)
	}
	e.topics[topicStr] = t
	return t, nil
}

// Subscribe implements core.Gossip: it dials any bootstrap addresses,
// joins the room's pubsub topic, and splits the resulting subscription
// into an independent sender and receiver half.
func (e *Endpoint) Subscribe(ctx context.Context, topic core.TopicID, bootstrap []string) (core.GossipSender, core.GossipReceiver, error) {
	e.dialBootstrap(bootstrap)

	topicStr := topicString(topic)
	t, err := e.joinTopic(topicStr)
	if err != nil {
		return nil, nil, err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe topic %s: %w", topicStr, err)
	}

	sender := &gossipSender{topic: t}
	receiver := &gossipReceiver{sub: sub, selfID: e.host.ID().String()}
	return sender, receiver, nil
}

type gossipSender struct {
	topic *pubsub.Topic
}

func (s *gossipSender) Broadcast(ctx context.Context, data []byte) error {
	if err := s.topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish topic %s: %w", s.topic.String(), err)
	}
	return nil
}

type gossipReceiver struct {
	sub    *pubsub.Subscription
	selfID string
}

// Next blocks until a message from a peer other than this host arrives.
// GossipSub does not loop a host's own publishes back to itself in
// practice, but the self-id filter guards the edge case where it does.
func (r *gossipReceiver) Next(ctx context.Context) (core.Event, error) {
	for {
		msg, err := r.sub.Next(ctx)
		if err != nil {
			return core.Event{}, fmt.Errorf("subscription closed: %w", err)
		}
		if msg.GetFrom().String() == r.selfID {
			continue
		}
		return core.Event{Kind: core.EventReceived, Content: msg.Data}, nil
	}
}

var _ core.Gossip = (*Endpoint)(nil)
