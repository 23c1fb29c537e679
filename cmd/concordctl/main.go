// Command concordctl is the staking client: it builds and broadcasts
// Stake and Unstake transactions over the network's POST_TRANSACTION
// channel (it has no subcommand for Evidence transactions). Generalizes the teacher's cmd/wallet/main.go
// "stake" subcommand, which only wrote an unsigned transaction to a JSON
// file, into an actually signed and broadcast submission.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/concordbft/concord/crypto"
	"github.com/concordbft/concord/p2p"
	"github.com/concordbft/concord/stakingapi"
	"github.com/concordbft/concord/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var keyPath string
	var bootstrapPeers []string
	var broadcastPort int

	root := &cobra.Command{Use: "concordctl", Short: "Interact with a concord network as a staking client"}
	root.PersistentFlags().StringVar(&keyPath, "key", "./client.key", "path to this client's keypair file")
	root.PersistentFlags().StringSliceVar(&bootstrapPeers, "peer", nil, "bootstrap peer multiaddr to gossip through")
	root.PersistentFlags().IntVar(&broadcastPort, "port", 0, "local P2P listen port (0 picks an ephemeral port)")

	root.AddCommand(newAddressCmd(&keyPath))
	root.AddCommand(newStakeCmd(&keyPath, &bootstrapPeers, &broadcastPort))
	root.AddCommand(newUnstakeCmd(&keyPath, &bootstrapPeers, &broadcastPort))

	return root
}

func newAddressCmd(keyPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print this client's address, generating a keypair if none exists yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := loadOrGenerateKey(*keyPath)
			if err != nil {
				return err
			}
			fmt.Println(kp.Address().String())
			return nil
		},
	}
}

func newStakeCmd(keyPath *string, bootstrapPeers *[]string, port *int) *cobra.Command {
	return &cobra.Command{
		Use:   "stake <amount>",
		Short: "Bond <amount> of gold as stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return withClient(*keyPath, *bootstrapPeers, *port, func(c *stakingapi.Client) error {
				tx, err := c.PostStakingTransaction(amount)
				if err != nil {
					return err
				}
				return printTx(tx)
			})
		},
	}
}

func newUnstakeCmd(keyPath *string, bootstrapPeers *[]string, port *int) *cobra.Command {
	return &cobra.Command{
		Use:   "unstake <amount>",
		Short: "Schedule release of <amount> of bonded stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return withClient(*keyPath, *bootstrapPeers, *port, func(c *stakingapi.Client) error {
				tx, err := c.PostUnstakingTransaction(amount)
				if err != nil {
					return err
				}
				return printTx(tx)
			})
		},
	}
}

// chainView is a minimal stakingapi.HeadProvider over an optional head
// block. concordctl never sets head, so Head always returns an empty
// block with no balances or stake — concordctl is a client, not a node.
type chainView struct {
	head *types.Block
}

func (c *chainView) Head() *types.Block {
	if c.head == nil {
		return &types.Block{Balances: make(map[types.Address]uint64), Stake: types.NewEmptyStakeLedger()}
	}
	return c.head
}

// withClient opens a short-lived p2p connection, constructs a
// stakingapi.Client over it, runs fn, and tears the connection back down
// once the broadcast has had a moment to propagate into the mesh.
func withClient(keyPath string, bootstrapPeers []string, port int, fn func(*stakingapi.Client) error) error {
	kp, err := loadOrGenerateKey(keyPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	net, err := p2p.New(port, bootstrapPeers, logger)
	if err != nil {
		return fmt.Errorf("failed to join network: %w", err)
	}
	defer net.Close()
	if err := net.Start(); err != nil {
		return fmt.Errorf("failed to start network: %w", err)
	}

	// concordctl has no local chain view or RPC query path (non-goal: no
	// light-client sync in this module), so AvailableGold always reads as
	// zero here — the synchronous InsufficientFunds check still runs, it
	// just can't see real balances for a standalone client process.
	client := stakingapi.NewClient(kp, &chainView{}, net)
	if err := fn(client); err != nil {
		return err
	}

	// Best-effort: give gossipsub a moment to flush the publish before
	// this short-lived process exits and tears the host down.
	time.Sleep(500 * time.Millisecond)
	return nil
}

func loadOrGenerateKey(path string) (*crypto.KeyPair, error) {
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
	return kp, nil
}

func parseAmount(s string) (uint64, error) {
	var amount uint64
	if _, err := fmt.Sscanf(s, "%d", &amount); err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

func printTx(tx *types.Transaction) error {
	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
