package consensus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/ed25519"

	"github.com/concordbft/concord/ledger"
	"github.com/concordbft/concord/metrics"
	"github.com/concordbft/concord/types"
)

// Step names the round state machine's states (spec §4.5).
type Step int

const (
	StepPropose Step = iota
	StepPrevote
	StepPrecommit
	StepCommitDecision
	StepCommit
	StepFinalize
)

func (s Step) String() string {
	switch s {
	case StepPropose:
		return "propose"
	case StepPrevote:
		return "prevote"
	case StepPrecommit:
		return "precommit"
	case StepCommitDecision:
		return "commit-decision"
	case StepCommit:
		return "commit"
	case StepFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Engine drives one validator through the round state machine (spec
// §4.5): timers, vote collection, locking and evidence emission. All
// state mutation happens on the goroutine running Run; Handle* methods
// enqueue onto an event channel and return immediately (spec §5).
type Engine struct {
	mu sync.Mutex

	params Params
	clock  clock.Clock
	logger *zap.Logger
	rec    *metrics.Collectors

	chain       HostChain
	broadcaster Broadcaster
	pool        TxPool

	privKey ed25519.PrivateKey
	pubKey  types.PublicKey
	self    types.Address
	verify  types.VerifyFunc
	address types.AddressFunc

	height uint64
	round  uint32
	step   Step
	nonce  uint64

	roundPower          map[types.Address]int64
	proposalsByProposer map[types.Address][]*types.Proposal
	currentProposal     *types.Block

	prevotes   *VoteBox
	precommits *VoteBox
	commits    *VoteBox

	lockedBlock *types.Block
	lockedRound uint32
	proofOfLock []*types.Vote

	nextBlock *types.Block

	roundStartedAt time.Time

	events chan any
	done   chan struct{}
}

// NewEngine constructs an Engine for self, identified by privKey. chain,
// broadcaster and pool are the external collaborators (spec §6); rec may
// be nil (metrics become no-ops).
func NewEngine(chain HostChain, broadcaster Broadcaster, pool TxPool, privKey ed25519.PrivateKey, self types.Address, verify types.VerifyFunc, addressOf types.AddressFunc, params Params, clk clock.Clock, logger *zap.Logger, rec *metrics.Collectors) *Engine {
	var pub types.PublicKey
	copy(pub[:], privKey.Public().(ed25519.PublicKey))

	return &Engine{
		params:      params,
		clock:       clk,
		logger:      logger,
		rec:         rec,
		chain:       chain,
		broadcaster: broadcaster,
		pool:        pool,
		privKey:     privKey,
		pubKey:      pub,
		self:        self,
		verify:      verify,
		address:     addressOf,
		commits:     NewVoteBox(types.PhaseCommit),
		events:      make(chan any, 256),
		done:        make(chan struct{}),
	}
}

// Run drives the event loop until Stop is called. It must run on its own
// goroutine.
func (e *Engine) Run() {
	e.enterHeight(e.chain.Head().Header.Height + 1)
	for {
		select {
		case <-e.done:
			return
		case ev := <-e.events:
			e.dispatch(ev)
		}
	}
}

// Stop terminates Run and any outstanding timer goroutines.
func (e *Engine) Stop() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

type timerEvent struct {
	height uint64
	round  uint32
	fn     func()
}

type proposalEvent struct{ msg *ProposalMessage }

type voteEvent struct{ vote *types.Vote }

func (e *Engine) dispatch(ev any) {
	switch v := ev.(type) {
	case timerEvent:
		e.mu.Lock()
		stale := v.height != e.height || v.round != e.round
		e.mu.Unlock()
		if !stale {
			v.fn()
		}
	case proposalEvent:
		e.handleProposal(v.msg)
	case voteEvent:
		e.handleVote(v.vote)
	}
}

// HandleProposal enqueues an inbound proposal message received from the
// network.
func (e *Engine) HandleProposal(msg *ProposalMessage) {
	select {
	case e.events <- proposalEvent{msg}:
	default:
		e.logger.Warn("proposal queue full, dropping")
	}
}

// HandleVote enqueues an inbound vote received from the network.
func (e *Engine) HandleVote(vote *types.Vote) {
	select {
	case e.events <- voteEvent{vote}:
	default:
		e.logger.Warn("vote queue full, dropping")
	}
}

// Height, Round, CurrentStep and LockedBlock expose read-only engine
// state for observability and tests.
func (e *Engine) Height() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.height
}

func (e *Engine) Round() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round
}

func (e *Engine) CurrentStep() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

func (e *Engine) LockedBlock() *types.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lockedBlock
}

// enterHeight resets all height-scoped state and begins round 0. The
// round-local accumPower copy starts fresh from the committed head's
// persisted value (spec §4.1, §4.2) and is only ever mutated by
// SelectProposer — the head's own AccumPower map is untouched until a
// block built by this validator is actually committed.
func (e *Engine) enterHeight(height uint64) {
	head := e.chain.Head()

	e.mu.Lock()
	e.height = height
	e.roundPower = cloneAccumPower(head.Stake.AccumPower)
	e.lockedBlock = nil
	e.lockedRound = 0
	e.proofOfLock = nil
	e.nextBlock = nil
	e.commits = NewVoteBox(types.PhaseCommit)
	e.mu.Unlock()

	e.logger.Info("entering height", zap.Uint64("height", height))
	e.enterRound(0)
}

func cloneAccumPower(src map[types.Address]int64) map[types.Address]int64 {
	out := make(map[types.Address]int64, len(src))
	for a, p := range src {
		out[a] = p
	}
	return out
}

// enterRound resets round-scoped vote boxes and applies commit carry-over
// (spec §4.5: a prior round's >2/3 commit votes reappear as this round's
// prevotes and precommits) before driving into Propose.
func (e *Engine) enterRound(round uint32) {
	e.mu.Lock()
	e.round = round
	e.step = StepPropose
	e.prevotes = NewVoteBox(types.PhasePrevote)
	e.precommits = NewVoteBox(types.PhasePrecommit)
	e.proposalsByProposer = make(map[types.Address][]*types.Proposal)
	e.currentProposal = nil
	e.roundStartedAt = e.clock.Now()
	for _, v := range e.commits.Votes() {
		e.prevotes.Seed(reinterpretPhase(v, types.PhasePrevote, round))
		e.precommits.Seed(reinterpretPhase(v, types.PhasePrecommit, round))
	}
	height := e.height
	e.mu.Unlock()

	e.logger.Info("entering round", zap.Uint64("height", height), zap.Uint32("round", round))
	e.enterPropose()
}

// reinterpretPhase copies v into a new round-local phase for commit
// carry-over (spec §4.5). Round is rewritten to the round the copy is
// seeded into — a commit vote keeps its earlier Round untouched,
// Vote.IsStale (types/vote.go) would otherwise discard it as stale in
// the very round it's meant to carry forward.
func reinterpretPhase(v *types.Vote, phase types.Phase, round uint32) *types.Vote {
	cp := *v
	cp.Phase = phase
	cp.Round = round
	return &cp
}

// roundStartTime returns the wall-clock time the current round entered
// Propose, for ObserveRoundDuration at Finalize.
func (e *Engine) roundStartTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roundStartedAt
}

// roundDelay implements the linear timer backoff (r+1)*Delta (spec §4.5,
// using the engine's 0-based round numbering for the spec's 1-based
// r*DELTA).
func (e *Engine) roundDelay() time.Duration {
	e.mu.Lock()
	round := e.round
	e.mu.Unlock()
	return time.Duration(round+1) * e.params.Delta
}

// scheduleTimer fires fn once d elapses on e.clock, unless the round has
// since moved on from the (height, round) captured at schedule time.
func (e *Engine) scheduleTimer(d time.Duration, fn func()) {
	e.mu.Lock()
	height, round := e.height, e.round
	e.mu.Unlock()

	t := e.clock.Timer(d)
	go func() {
		select {
		case <-t.C:
			select {
			case e.events <- timerEvent{height: height, round: round, fn: fn}:
			case <-e.done:
			}
		case <-e.done:
			t.Stop()
		}
	}()
}

// enterPropose implements spec §4.5 Propose: select this round's
// proposer against a round-local copy of accumPower, build or re-propose
// a block if self won, then schedule the Prevote transition.
func (e *Engine) enterPropose() {
	e.mu.Lock()
	e.step = StepPropose
	head := e.chain.Head()
	roundLedger := &types.StakeLedger{StakeBalances: head.Stake.StakeBalances, AccumPower: e.roundPower}
	proposer, ok := SelectProposer(roundLedger)
	height, round := e.height, e.round
	locked, pol := e.lockedBlock, e.proofOfLock
	e.mu.Unlock()

	if ok {
		e.rec.IncProposerSelection(proposer)
		if proposer == e.self {
			e.propose(height, round, locked, pol)
		} else {
			e.logger.Debug("waiting for proposal", zap.String("proposer", proposer.String()))
		}
	} else {
		e.logger.Warn("no proposer available for round", zap.Uint64("height", height), zap.Uint32("round", round))
	}

	e.scheduleTimer(e.roundDelay(), e.enterPrevote)
}

// propose builds a fresh block (or re-proposes a locked one) and
// broadcasts it. UpdateAccumPower is applied to the new block's own
// ledger snapshot, distinct from the round-local copy SelectProposer
// advances (spec §4.5 "call updateAccumPower on its ledger").
func (e *Engine) propose(height uint64, round uint32, locked *types.Block, pol []*types.Vote) {
	var block *types.Block
	if locked != nil {
		block = locked
		e.logger.Info("re-proposing locked block", zap.Uint64("height", height), zap.Uint32("round", round))
	} else {
		txs := e.pool.Pending()
		built, err := e.chain.Build(e.self, e.clock.Now().Unix(), txs)
		if err != nil {
			e.logger.Error("failed to build block", zap.Error(err))
			return
		}
		ledger.UpdateAccumPower(built.Stake, e.self)
		block = built
	}

	proposal := e.signProposal(block, height, round)

	e.mu.Lock()
	e.currentProposal = block
	e.mu.Unlock()

	e.broadcastProposal(proposal, pol)
}

func (e *Engine) signProposal(block *types.Block, height uint64, round uint32) *types.Proposal {
	p := &types.Proposal{
		From:    e.self,
		BlockID: block.ID(),
		Block:   block,
		Height:  height,
		Round:   round,
		PubKey:  e.pubKey,
	}
	p.Sig = e.sign(p.SigningPayload())
	return p
}

func (e *Engine) sign(msg []byte) types.Signature {
	raw := ed25519.Sign(e.privKey, msg)
	var sig types.Signature
	copy(sig[:], raw)
	return sig
}

func (e *Engine) broadcastProposal(p *types.Proposal, pol []*types.Vote) {
	payload, err := json.Marshal(ProposalMessage{Proposal: p, ProofOfLock: pol})
	if err != nil {
		e.logger.Error("failed to marshal proposal", zap.Error(err))
		return
	}
	if err := e.broadcaster.Broadcast(ChannelBlockProposal, payload); err != nil {
		e.logger.Error("failed to broadcast proposal", zap.Error(err))
	}
}

// handleProposal validates and buffers an inbound proposal. Prevote
// resolution happens at enterPrevote, once every proposal for this round
// has had a chance to arrive (spec §4.5).
func (e *Engine) handleProposal(msg *ProposalMessage) {
	if msg == nil || msg.Proposal == nil {
		return
	}
	p := msg.Proposal
	if !p.IsValid(e.verify, e.address) {
		e.logger.Debug("dropping invalid proposal", zap.String("from", p.From.String()))
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Height != e.height || p.Round < e.round {
		return
	}
	e.proposalsByProposer[p.From] = append(e.proposalsByProposer[p.From], p)
}

// enterPrevote implements spec §4.5 Prevote: vote for the locked block if
// one is held, else resolve whatever proposal(s) arrived this round.
func (e *Engine) enterPrevote() {
	e.mu.Lock()
	e.step = StepPrevote
	height, round := e.height, e.round
	locked := e.lockedBlock
	ownProposal := e.currentProposal
	proposals := e.proposalsByProposer
	e.mu.Unlock()

	var blockID types.Hash
	switch {
	case locked != nil:
		blockID = locked.ID()
	case ownProposal != nil:
		// This validator was this round's proposer: it trusts the block
		// it just built without needing to rerun its own proposal.
		blockID = ownProposal.ID()
	default:
		blockID = e.resolveProposalVote(proposals)
	}

	vote := e.signVote(types.PhasePrevote, blockID, height, round)
	e.mu.Lock()
	e.prevotes.Record(vote)
	e.mu.Unlock()
	e.rec.IncVote(types.PhasePrevote)
	e.broadcastVote(ChannelPrevote, vote)

	e.scheduleTimer(e.roundDelay(), e.enterPrecommit)
}

// resolveProposalVote picks NIL if any proposer sent two distinct
// proposals (surfacing equivocation evidence), NIL if no single valid
// proposal arrived, or the lone proposal's blockID once it independently
// reruns against the current head.
func (e *Engine) resolveProposalVote(proposals map[types.Address][]*types.Proposal) types.Hash {
	var single *types.Proposal
	count := 0
	for proposer, ps := range proposals {
		valid := dedupeProposals(ps)
		if len(valid) > 1 {
			e.emitEvidenceForProposals(valid[0], valid[1], proposer)
			return types.NilID
		}
		if len(valid) == 1 {
			count++
			single = valid[0]
		}
	}
	if count == 1 && single != nil && e.chain.Rerun(single.Block, e.chain.Head()) {
		return single.BlockID
	}
	return types.NilID
}

func dedupeProposals(ps []*types.Proposal) []*types.Proposal {
	seen := make(map[types.Hash]*types.Proposal, len(ps))
	for _, p := range ps {
		seen[p.Identity()] = p
	}
	out := make([]*types.Proposal, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out
}

// enterPrecommit implements spec §4.5 Precommit: tally prevotes against
// the parent block's stake weights, lock onto a winning non-nil block, or
// release the lock silently on a NIL decision (open question 5).
func (e *Engine) enterPrecommit() {
	e.mu.Lock()
	e.step = StepPrecommit
	height, round := e.height, e.round
	box := e.prevotes
	stake := e.chain.Head().Stake
	e.mu.Unlock()

	result := CountVotes(box, stake, height, round)

	var voteID types.Hash
	broadcast := false
	if result.Decided {
		if result.BlockID.IsZero() {
			e.mu.Lock()
			e.lockedBlock = nil
			e.lockedRound = 0
			e.proofOfLock = nil
			e.mu.Unlock()
		} else if block := e.resolveBlock(result.BlockID); block != nil {
			e.mu.Lock()
			e.lockedBlock = block
			e.lockedRound = round
			e.proofOfLock = box.Votes()
			e.mu.Unlock()
			voteID = result.BlockID
			broadcast = true
		}
	}

	if broadcast {
		vote := e.signVote(types.PhasePrecommit, voteID, height, round)
		e.mu.Lock()
		e.precommits.Record(vote)
		e.mu.Unlock()
		e.rec.IncVote(types.PhasePrecommit)
		e.broadcastVote(ChannelPrecommit, vote)
	}

	e.scheduleTimer(e.roundDelay(), e.enterCommitDecision)
}

func (e *Engine) resolveBlock(id types.Hash) *types.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentProposal != nil && e.currentProposal.ID() == id {
		return e.currentProposal
	}
	if e.lockedBlock != nil && e.lockedBlock.ID() == id {
		return e.lockedBlock
	}
	return nil
}

// enterCommitDecision implements spec §4.5 Commit-decision: tally
// precommits, move to Commit on a decided non-nil block, otherwise
// advance to the next round.
func (e *Engine) enterCommitDecision() {
	e.mu.Lock()
	e.step = StepCommitDecision
	height, round := e.height, e.round
	box := e.precommits
	stake := e.chain.Head().Stake
	e.mu.Unlock()

	result := CountVotes(box, stake, height, round)
	if result.Decided && !result.BlockID.IsZero() {
		if block := e.resolveBlock(result.BlockID); block != nil {
			e.mu.Lock()
			e.nextBlock = block
			e.mu.Unlock()
			e.enterCommit()
			return
		}
	}
	e.enterRound(round + 1)
}

// enterCommit implements spec §4.5 Commit: broadcast a commit vote for
// the decided block and move into Finalize.
func (e *Engine) enterCommit() {
	e.mu.Lock()
	e.step = StepCommit
	height, round := e.height, e.round
	next := e.nextBlock
	e.mu.Unlock()

	vote := e.signVote(types.PhaseCommit, next.ID(), height, round)
	e.mu.Lock()
	e.commits.Record(vote)
	e.mu.Unlock()
	e.rec.IncVote(types.PhaseCommit)
	e.broadcastVote(ChannelCommit, vote)

	e.enterFinalize()
}

// enterFinalize implements spec §4.5 Finalize: wait for >2/3 commit
// votes on the decided block, then install it after a short grace period
// for laggard commits; otherwise keep polling until they arrive.
func (e *Engine) enterFinalize() {
	e.mu.Lock()
	e.step = StepFinalize
	height, round := e.height, e.round
	next := e.nextBlock
	box := e.commits
	stake := e.chain.Head().Stake
	e.mu.Unlock()

	result := CountVotes(box, stake, height, round)
	if result.Decided && result.BlockID == next.ID() {
		e.scheduleTimer(e.params.CommitTime, func() { e.installBlock(next) })
		return
	}
	e.scheduleTimer(e.params.Delta, e.enterFinalize)
}

func (e *Engine) installBlock(block *types.Block) {
	parent := e.chain.Head()
	if err := e.chain.Commit(block); err != nil {
		e.logger.Error("failed to commit block", zap.Error(err))
		return
	}
	e.rec.ObserveRoundDuration(e.clock.Now().Sub(e.roundStartTime()))
	for i := 0; i < newSlashCount(parent, block); i++ {
		e.rec.IncSlash()
	}
	e.logger.Info("committed block", zap.Uint64("height", block.Header.Height))
	e.enterHeight(block.Header.Height + 1)
}

// newSlashCount counts evidence entries present in block's SlashedEvidence
// that weren't already present on its parent — the evidence transactions
// that actually triggered a new slash in this block, as opposed to
// already-applied evidence re-broadcast and harmlessly ignored
// (applyEvidence's dedup-by-key no-op).
func newSlashCount(parent, block *types.Block) int {
	count := 0
	for key := range block.Stake.SlashedEvidence {
		if !parent.Stake.SlashedEvidence[key] {
			count++
		}
	}
	return count
}

// handleVote validates and records an inbound vote, surfacing
// equivocation evidence when a conflict is detected (spec §4.4, §4.6).
func (e *Engine) handleVote(vote *types.Vote) {
	e.mu.Lock()
	height, round := e.height, e.round
	e.mu.Unlock()

	if !vote.IsValid(height, round, e.verify, e.address) {
		e.logger.Debug("dropping invalid or stale vote", zap.String("from", vote.From.String()))
		return
	}

	box := e.boxForPhase(vote.Phase)
	if box == nil {
		return
	}

	e.mu.Lock()
	accepted, conflict := box.Record(vote)
	e.mu.Unlock()

	if conflict != nil {
		e.emitEvidenceForVotes(conflict.Existing, conflict.Incoming, vote.From)
		return
	}
	if accepted {
		e.rec.IncVote(vote.Phase)
	}
}

func (e *Engine) boxForPhase(phase types.Phase) *VoteBox {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch phase {
	case types.PhasePrevote:
		return e.prevotes
	case types.PhasePrecommit:
		return e.precommits
	case types.PhaseCommit:
		return e.commits
	default:
		return nil
	}
}

func (e *Engine) signVote(phase types.Phase, blockID types.Hash, height uint64, round uint32) *types.Vote {
	v := &types.Vote{
		From:    e.self,
		Height:  height,
		Round:   round,
		Phase:   phase,
		BlockID: blockID,
		PubKey:  e.pubKey,
	}
	v.Sig = e.sign(v.SigningPayload())
	return v
}

func (e *Engine) broadcastVote(channel string, vote *types.Vote) {
	payload, err := json.Marshal(vote)
	if err != nil {
		e.logger.Error("failed to marshal vote", zap.Error(err))
		return
	}
	if err := e.broadcaster.Broadcast(channel, payload); err != nil {
		e.logger.Error("failed to broadcast vote", zap.Error(err))
	}
}

func (e *Engine) emitEvidenceForVotes(existing, incoming *types.Vote, author types.Address) {
	e.submitEvidence(types.EvidenceTx{
		ID:              uuid.New(),
		ByzantinePlayer: author,
		Msg1:            types.SignedMessage{Kind: types.MessageVote, Vote: existing},
		Msg2:            types.SignedMessage{Kind: types.MessageVote, Vote: incoming},
	})
}

func (e *Engine) emitEvidenceForProposals(p1, p2 *types.Proposal, author types.Address) {
	e.submitEvidence(types.EvidenceTx{
		ID:              uuid.New(),
		ByzantinePlayer: author,
		Msg1:            types.SignedMessage{Kind: types.MessageProposal, Proposal: p1},
		Msg2:            types.SignedMessage{Kind: types.MessageProposal, Proposal: p2},
	})
}

func (e *Engine) submitEvidence(ev types.EvidenceTx) {
	e.mu.Lock()
	nonce := e.nonce
	e.nonce++
	e.mu.Unlock()

	tx := types.Transaction{From: e.self, Nonce: nonce, Payload: ev, PubKey: e.pubKey}
	tx.Sig = e.sign(tx.SigningPayload())

	payload, err := json.Marshal(tx)
	if err != nil {
		e.logger.Error("failed to marshal evidence transaction", zap.Error(err))
		return
	}
	if err := e.broadcaster.Broadcast(ChannelPostTransaction, payload); err != nil {
		e.logger.Error("failed to broadcast evidence", zap.Error(err))
	}
	e.rec.IncEvidenceEmitted()
}