// Command concordnode runs a validator node: a ConsensusEngine wired to
// real libp2p gossip, BadgerDB block storage, and an ed25519 signing
// identity. Generalizes the teacher's cmd/node/main.go from flag-based
// configuration to a cobra command layered over a YAML config file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cfg := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "concordnode",
		Short: "Run a concord validator node",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("datadir") {
				loaded.DataDir = cfg.DataDir
			}
			if cmd.Flags().Changed("port") {
				loaded.ListenPort = cfg.ListenPort
			}
			if cmd.Flags().Changed("validator-key") {
				loaded.ValidatorKey = cfg.ValidatorKey
			}
			if cmd.Flags().Changed("genesis") {
				loaded.GenesisFile = cfg.GenesisFile
			}
			if cmd.Flags().Changed("metrics-addr") {
				loaded.MetricsAddr = cfg.MetricsAddr
			}
			if cmd.Flags().Changed("bootstrap") {
				loaded.BootstrapPeers = cfg.BootstrapPeers
			}
			return run(loaded)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "./concordnode.yaml", "path to YAML config file")
	cmd.Flags().StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory")
	cmd.Flags().IntVar(&cfg.ListenPort, "port", cfg.ListenPort, "P2P listen port")
	cmd.Flags().StringVar(&cfg.ValidatorKey, "validator-key", cfg.ValidatorKey, "path to validator key file")
	cmd.Flags().StringVar(&cfg.GenesisFile, "genesis", cfg.GenesisFile, "genesis config file")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "prometheus /metrics listen address")
	cmd.Flags().StringSliceVar(&cfg.BootstrapPeers, "bootstrap", cfg.BootstrapPeers, "bootstrap peer multiaddrs")

	return cmd
}

func run(cfg Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	node, err := NewNode(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	if err := node.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	node.Stop()
	return nil
}
