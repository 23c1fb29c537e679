package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/benbjohnson/clock"

	"github.com/concordbft/concord/consensus"
	"github.com/concordbft/concord/crypto"
	"github.com/concordbft/concord/ledger"
	"github.com/concordbft/concord/metrics"
	"github.com/concordbft/concord/p2p"
	"github.com/concordbft/concord/storage"
	"github.com/concordbft/concord/types"
)

const blockCacheSize = 256

// Node wires a ConsensusEngine to real storage, network and signing
// collaborators — the demo validator binary, generalizing the teacher's
// cmd/node/main.go Node type.
type Node struct {
	cfg     Config
	logger  *zap.Logger
	store   *storage.BlockStore
	network *p2p.Network
	pool    *p2p.Mempool
	engine  *consensus.Engine
	metricsSrv *http.Server
}

// persistentChain wraps a LedgerChain so a committed block is also saved
// to disk and its transactions dropped from the mempool — the part of
// the teacher's handleBlock that ran after n.consensus.ValidateBlock.
type persistentChain struct {
	*consensus.LedgerChain
	store  *storage.BlockStore
	pool   *p2p.Mempool
	logger *zap.Logger
}

func (c *persistentChain) Commit(block *types.Block) error {
	if err := c.LedgerChain.Commit(block); err != nil {
		return err
	}
	if err := c.store.SaveBlock(block); err != nil {
		c.logger.Error("failed to persist committed block", zap.Uint64("height", block.Header.Height), zap.Error(err))
	}
	c.pool.Remove(block.Transactions)
	return nil
}

// NewNode assembles every collaborator for cfg and returns a ready-to-run Node.
func NewNode(cfg Config, logger *zap.Logger) (*Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.Open(cfg.DataDir+"/blocks", blockCacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open block store: %w", err)
	}

	genesis, err := loadGenesis(store, cfg.GenesisFile)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load genesis: %w", err)
	}

	kp, err := loadOrGenerateKey(cfg.ValidatorKey, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load validator key: %w", err)
	}

	registry := prometheus.NewRegistry()
	collectors := metrics.New(registry)

	network, err := p2p.New(cfg.ListenPort, cfg.BootstrapPeers, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create network: %w", err)
	}

	pool := p2p.NewMempool()
	chain := &persistentChain{
		LedgerChain: consensus.NewLedgerChain(genesis, cfg.Params().UnstakeDelay, crypto.Verify, crypto.AddressOf),
		store:       store,
		pool:        pool,
		logger:      logger,
	}

	engine := consensus.NewEngine(chain, network, pool, kp.PrivateKey, kp.Address(), crypto.Verify, crypto.AddressOf, cfg.Params(), clock.New(), logger, collectors)

	p2p.WireEngine(network, engine, pool, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Node{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		network:    network,
		pool:       pool,
		engine:     engine,
		metricsSrv: &http.Server{Addr: cfg.MetricsAddr, Handler: mux},
	}, nil
}

// Start brings up the network, the metrics endpoint, and the consensus
// engine's event loop.
func (n *Node) Start() error {
	if err := n.network.Start(); err != nil {
		return fmt.Errorf("failed to start network: %w", err)
	}

	go func() {
		if err := n.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("metrics server exited", zap.Error(err))
		}
	}()

	go n.engine.Run()

	n.logger.Info("node started",
		zap.String("peerID", n.network.HostID().String()),
		zap.Int("port", n.cfg.ListenPort),
		zap.String("metricsAddr", n.cfg.MetricsAddr),
	)
	return nil
}

// Stop tears down the engine, network and storage in reverse order.
func (n *Node) Stop() {
	n.engine.Stop()
	n.metricsSrv.Close()
	if err := n.network.Close(); err != nil {
		n.logger.Warn("error closing network", zap.Error(err))
	}
	if err := n.store.Close(); err != nil {
		n.logger.Warn("error closing block store", zap.Error(err))
	}
}

// loadGenesis returns the chain's most recently persisted block if the
// store already has one (a restart), otherwise loads genesisFile and
// persists block height 0 for next time.
func loadGenesis(store *storage.BlockStore, genesisFile string) (*types.Block, error) {
	if latest, err := store.GetLatestBlock(); err == nil {
		return latest, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	data, err := os.ReadFile(genesisFile)
	if err != nil {
		return nil, err
	}
	var cfg types.GenesisConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	genesis, err := ledger.NewGenesisBlock(&cfg)
	if err != nil {
		return nil, err
	}
	if err := store.SaveBlock(genesis); err != nil {
		return nil, err
	}
	return genesis, nil
}

// loadOrGenerateKey loads a JSON-encoded validator keypair from path, or
// generates and persists a new one if the file does not exist yet —
// generalizing the teacher's loadValidatorKey, which required a
// pre-existing file rather than bootstrapping one.
func loadOrGenerateKey(path string, logger *zap.Logger) (*crypto.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var kp crypto.KeyPair
		if err := json.Unmarshal(data, &kp); err != nil {
			return nil, err
		}
		return &kp, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	data, err = json.Marshal(kp)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, err
	}
	logger.Info("generated new validator key", zap.String("path", path))
	return kp, nil
}
