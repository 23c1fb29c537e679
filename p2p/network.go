// Package p2p is the demo gossip network: a libp2p-pubsub host publishing
// and subscribing to the five network-facing channels named in spec §6
// (POST_TRANSACTION, BLOCK_PROPOSAL, PREVOTE, PRECOMMIT, COMMIT; NEW_ROUND
// never crosses the network). Adapted from the teacher's p2p/network.go,
// generalized from three fixed topics with typed handlers to the five
// spec channels registered generically by name, matching
// consensus.Broadcaster's channel-string contract instead of the
// teacher's hardcoded Message{Type,Data} envelope.
package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/concordbft/concord/consensus"
)

// Channels is the fixed set of network-facing gossip topics (spec §6).
// NEW_ROUND is deliberately absent: it never crosses the network.
var Channels = []string{
	consensus.ChannelPostTransaction,
	consensus.ChannelBlockProposal,
	consensus.ChannelPrevote,
	consensus.ChannelPrecommit,
	consensus.ChannelCommit,
}

const peerTimeout = 30 * time.Second

// Handler processes a single incoming gossip message's raw payload.
type Handler func(payload []byte)

// Network is a libp2p-pubsub gossip node implementing consensus.Broadcaster.
type Network struct {
	host   host.Host
	pubsub *pubsub.PubSub
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	topics        map[string]*pubsub.Topic
	subscriptions map[string]*pubsub.Subscription
	handlers      map[string]Handler

	peers     map[peer.ID]time.Time
	peerMutex sync.RWMutex
}

// New creates a libp2p host listening on listenPort, joins every channel
// in Channels, and dials bootstrapPeers (best-effort — a dial failure is
// logged, not fatal, since gossipsub discovers the rest of the mesh once
// at least one peer is reachable).
func New(listenPort int, bootstrapPeers []string, logger *zap.Logger) (*Network, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", listenPort)),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		cancel()
		h.Close()
		return nil, err
	}

	n := &Network{
		host:          h,
		pubsub:        ps,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
		topics:        make(map[string]*pubsub.Topic),
		subscriptions: make(map[string]*pubsub.Subscription),
		handlers:      make(map[string]Handler),
		peers:         make(map[peer.ID]time.Time),
	}

	for _, channel := range Channels {
		topic, err := ps.Join(channel)
		if err != nil {
			n.Close()
			return nil, err
		}
		n.topics[channel] = topic
	}

	for _, addr := range bootstrapPeers {
		if err := n.connectPeer(addr); err != nil {
			n.logger.Warn("failed to dial bootstrap peer", zap.String("addr", addr), zap.Error(err))
		}
	}

	return n, nil
}

// OnChannel registers handler for messages arriving on channel. Must be
// called before Start.
func (n *Network) OnChannel(channel string, handler Handler) {
	n.handlers[channel] = handler
}

// Start subscribes to every channel and begins routing incoming messages
// to their registered handlers, plus periodic stale-peer cleanup.
func (n *Network) Start() error {
	for _, channel := range Channels {
		sub, err := n.topics[channel].Subscribe()
		if err != nil {
			return err
		}
		n.subscriptions[channel] = sub
		go n.pump(channel, sub)
	}
	go n.managePeers()
	return nil
}

func (n *Network) pump(channel string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			n.logger.Warn("gossip receive error", zap.String("channel", channel), zap.Error(err))
			continue
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		n.touchPeer(msg.ReceivedFrom)

		handler := n.handlers[channel]
		if handler == nil {
			continue
		}
		handler(msg.Data)
	}
}

// Broadcast implements consensus.Broadcaster, publishing payload on channel.
func (n *Network) Broadcast(channel string, payload []byte) error {
	topic, ok := n.topics[channel]
	if !ok {
		return fmt.Errorf("p2p: unknown channel %q", channel)
	}
	return topic.Publish(n.ctx, payload)
}

func (n *Network) connectPeer(addrStr string) error {
	addr, err := multiaddr.NewMultiaddr(addrStr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return err
	}
	return n.host.Connect(n.ctx, *info)
}

func (n *Network) touchPeer(p peer.ID) {
	n.peerMutex.Lock()
	defer n.peerMutex.Unlock()
	n.peers[p] = time.Now()
}

func (n *Network) managePeers() {
	ticker := time.NewTicker(peerTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.cleanupPeers()
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Network) cleanupPeers() {
	n.peerMutex.Lock()
	defer n.peerMutex.Unlock()
	now := time.Now()
	for p, lastSeen := range n.peers {
		if now.Sub(lastSeen) > peerTimeout {
			delete(n.peers, p)
			n.host.Network().ClosePeer(p)
		}
	}
}

// PeerCount returns the number of recently-active peers.
func (n *Network) PeerCount() int {
	n.peerMutex.RLock()
	defer n.peerMutex.RUnlock()
	return len(n.peers)
}

// HostID returns this node's peer ID.
func (n *Network) HostID() peer.ID {
	return n.host.ID()
}

// Addrs returns this node's listen multiaddrs.
func (n *Network) Addrs() []multiaddr.Multiaddr {
	return n.host.Addrs()
}

// Close tears down the network: cancels all subscription pumps and
// closes the libp2p host.
func (n *Network) Close() error {
	n.cancel()
	return n.host.Close()
}
