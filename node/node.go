// Package node assembles the room coordinator, a store, a signing
// identity and a concrete libp2p gossip endpoint into a single runnable
// smemo node, the way a teacher's *Node/NewNode constructor binds its
// subsystems together in one place.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/meshbuddies/smemo/core"
	"github.com/meshbuddies/smemo/internal/config"
	"github.com/meshbuddies/smemo/signing"
	"github.com/meshbuddies/smemo/storekv"
	"github.com/meshbuddies/smemo/transport/libp2pgossip"
)

// Node is a fully wired smemo participant: identity, storage, gossip
// transport and the room coordinator built on top of them.
type Node struct {
	UserName    string
	Endpoint    *libp2pgossip.Endpoint
	Store       core.Store
	Signer      core.Signer
	Coordinator *core.Coordinator
}

// New builds a Node from cfg. A blank DataDir selects an in-memory store;
// a missing/unusable signing backend downgrades to unsigned broadcasting
// rather than failing startup.
func New(cfg config.Config) (*Node, error) {
	endpoint, err := libp2pgossip.NewEndpoint(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("start gossip endpoint: %w", err)
	}

	var store core.Store
	if cfg.DataDir == "" {
		logrus.Info("no data directory configured, using in-memory store")
		store = storekv.NewMemoryStore()
	} else {
		pstore, err := storekv.OpenPebbleStore(cfg.DataDir)
		if err != nil {
			endpoint.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		store = pstore
	}

	signer, err := signing.DiscoverSigner(cfg.DataDir)
	if err != nil {
		logrus.Warnf("signing identity unavailable, broadcasting unsigned: %v", err)
		signer = nil
	}
	verifier := signing.NewVerifier()

	coord := core.NewCoordinator(endpoint, cfg.UserName, cfg.AgentName, store, signer, verifier)

	return &Node{
		UserName:    cfg.UserName,
		Endpoint:    endpoint,
		Store:       store,
		Signer:      signer,
		Coordinator: coord,
	}, nil
}

// Close releases the store and gossip endpoint.
func (n *Node) Close() error {
	var errs []error
	if closer, ok := n.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if err := n.Endpoint.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close endpoint: %w", err))
	}
	return errors.Join(errs...)
}

// GenerateTicket builds a shareable ticket for room, embedding this
// node's current dialable addresses as bootstrap endpoints.
func (n *Node) GenerateTicket(room string) core.RoomTicket {
	return core.NewRoomTicket(room, n.Endpoint.Addrs())
}

// JoinFromTicket joins the room named in ticket, dialing its bootstrap
// endpoints.
func (n *Node) JoinFromTicket(ctx context.Context, ticket core.RoomTicket) (core.TopicID, error) {
	return n.Coordinator.JoinRoom(ctx, ticket.Room, ticket.Endpoints)
}
