// Command rollupd runs a full rollup node: the STF runner (C10) driving the
// chain forward from a DA adapter, its own in-process sequencer (C9), a
// bounded prover service (C11), and the ledger/RPC surface they share.
// Grounded on the teacher's cobra-based cmd/synnergy/main.go (root command +
// persistent flags + subcommands).
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sovereign-rollup/core/internal/ledger"
	"github.com/sovereign-rollup/core/internal/prover"
	"github.com/sovereign-rollup/core/internal/runner"
	"github.com/sovereign-rollup/core/internal/sequencer"
	"github.com/sovereign-rollup/core/internal/stf"
	"github.com/sovereign-rollup/core/internal/stf/examplemodule"
	"github.com/sovereign-rollup/core/internal/storage"
	"github.com/sovereign-rollup/core/pkg/config"
	"github.com/sovereign-rollup/core/pkg/da"
	mockda "github.com/sovereign-rollup/core/pkg/da/mock"
	"github.com/sovereign-rollup/core/pkg/types"
	"github.com/sovereign-rollup/core/pkg/zkvm"
	mockzkvm "github.com/sovereign-rollup/core/pkg/zkvm/mock"
)

var (
	configDir string
	env       string
)

func main() {
	rootCmd := &cobra.Command{Use: "rollupd"}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory holding default.yaml and <env>.yaml")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment overlay to merge on top of default.yaml")
	rootCmd.AddCommand(startCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var genesisKeyHex string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "run the rollup node: sequencer, runner, and prover in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configDir, env, genesisKeyHex)
		},
	}
	cmd.Flags().StringVar(&genesisKeyHex, "sequencer-key", "", "hex-encoded secp256k1 key for the in-process sequencer (random if empty)")
	return cmd
}

func run(configDir, env, genesisKeyHex string) error {
	cfg, err := config.Load(configDir, env)
	if err != nil {
		return fmt.Errorf("rollupd: load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logrus.New()
	log.SetLevel(level)

	var st *storage.Storage
	if cfg.Storage.Path != "" {
		st, err = storage.Open(cfg.Storage.Path, 4096)
	} else {
		st = storage.New()
	}
	if err != nil {
		return fmt.Errorf("rollupd: open storage: %w", err)
	}

	l, err := ledger.Open(ledger.Config{Dir: cfg.Storage.Path, SubscriberBuffer: 32})
	if err != nil {
		return fmt.Errorf("rollupd: open ledger: %w", err)
	}
	defer l.Close()

	reg := runner.NewRegistry()

	mod := examplemodule.New()
	rt, err := stf.NewRuntime(mod)
	if err != nil {
		return fmt.Errorf("rollupd: build runtime: %w", err)
	}
	driver := stf.NewDriver(rt, reg, 0, 10_000_000, log)

	if st.IsEmpty() {
		admin := types.Address{}
		if _, err := driver.InitChain(st, stf.GenesisConfig{
			examplemodule.ModuleName: mustJSON(examplemodule.GenesisConfig{Admin: admin, Value: 0}),
		}); err != nil {
			return fmt.Errorf("rollupd: init_chain: %w", err)
		}
	}

	key, err := sequencerKey(genesisKeyHex)
	if err != nil {
		return fmt.Errorf("rollupd: sequencer key: %w", err)
	}

	var d da.DA = mockda.New()
	var verifier da.Verifier = mockda.Verifier{}

	seq := sequencer.New(sequencer.Config{Key: key, MaxBatchBytes: cfg.Sequencer.MaxBatchBytes}, d, log)
	reg.Register(seq.Address(), 1)

	prv := prover.New(cfg.Prover.NumThreads, func() zkvm.Host { return mockzkvm.NewHost() }, log)

	var preferred *types.Address
	if cfg.Sequencer.Preferred != "" {
		addr := types.Address(crypto.PubkeyToAddress(key.PublicKey))
		preferred = &addr
	}

	r := runner.New(runner.Config{
		StartHeight:                         cfg.StartHeight,
		DeferredSlots:                        cfg.Sequencer.DeferredSlots,
		PreferredSequencer:                   preferred,
		BlobsRequestedForExecutionNextSlot:   cfg.Sequencer.BlobsNextSlot,
		RefilterOnExecution:                  cfg.Sequencer.RefilterOnExec,
		ProverMode:                           zkvm.ParseMode(cfg.Prover.Mode),
		RPCBindAddr:                          fmt.Sprintf("%s:%d", cfg.RPC.BindHost, cfg.RPC.BindPort),
	}, d, verifier, driver, st, l, prv, reg, seq, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("rollupd starting")
	return r.Run(ctx)
}

func sequencerKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return crypto.GenerateKey()
	}
	return crypto.HexToECDSA(hexKey)
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
