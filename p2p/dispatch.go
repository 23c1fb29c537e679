package p2p

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/concordbft/concord/consensus"
	"github.com/concordbft/concord/types"
)

// WireEngine registers decode-and-dispatch handlers on net for every
// network channel the engine and mempool care about: BLOCK_PROPOSAL,
// PREVOTE, PRECOMMIT and COMMIT feed engine, POST_TRANSACTION feeds pool.
// A payload that fails to decode is logged and dropped, matching spec
// §7's drop-and-log policy for malformed wire input.
func WireEngine(net *Network, engine *consensus.Engine, pool *Mempool, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	net.OnChannel(consensus.ChannelBlockProposal, func(payload []byte) {
		var msg consensus.ProposalMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn("dropping malformed proposal message", zap.Error(err))
			return
		}
		engine.HandleProposal(&msg)
	})

	for _, channel := range []string{consensus.ChannelPrevote, consensus.ChannelPrecommit, consensus.ChannelCommit} {
		channel := channel
		net.OnChannel(channel, func(payload []byte) {
			var vote types.Vote
			if err := json.Unmarshal(payload, &vote); err != nil {
				logger.Warn("dropping malformed vote", zap.String("channel", channel), zap.Error(err))
				return
			}
			engine.HandleVote(&vote)
		})
	}

	net.OnChannel(consensus.ChannelPostTransaction, func(payload []byte) {
		var tx types.Transaction
		if err := json.Unmarshal(payload, &tx); err != nil {
			logger.Warn("dropping malformed transaction", zap.Error(err))
			return
		}
		pool.Add(tx)
	})
}
