// Command proverd runs a standalone prover service (C11): it accepts
// witness submissions and serves proof status over HTTP JSON-RPC,
// independent of any particular runner process. Grounded on the teacher's
// cobra-based cmd/synnergy/main.go pattern.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sovereign-rollup/core/internal/prover"
	"github.com/sovereign-rollup/core/internal/witness"
	"github.com/sovereign-rollup/core/pkg/config"
	"github.com/sovereign-rollup/core/pkg/types"
	"github.com/sovereign-rollup/core/pkg/zkvm"
	mockzkvm "github.com/sovereign-rollup/core/pkg/zkvm/mock"
)

var (
	configDir string
	env       string
)

func main() {
	rootCmd := &cobra.Command{Use: "proverd"}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory holding default.yaml and <env>.yaml")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment overlay to merge on top of default.yaml")
	rootCmd.AddCommand(startCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "serve the proof-generation RPC surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configDir, env)
		},
	}
}

func run(configDir, env string) error {
	cfg, err := config.Load(configDir, env)
	if err != nil {
		return fmt.Errorf("proverd: load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logrus.New()
	log.SetLevel(level)

	svc := prover.New(cfg.Prover.NumThreads, func() zkvm.Host { return mockzkvm.NewHost() }, log)
	mode := zkvm.ParseMode(cfg.Prover.Mode)

	addr := fmt.Sprintf("%s:%d", cfg.RPC.BindHost, cfg.RPC.BindPort)
	log.WithField("addr", addr).Info("proverd listening")
	return http.ListenAndServe(addr, router(svc, mode))
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result interface{}     `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// submitWitnessParams is the JSON shape a caller posts to prover_submitWitness.
type submitWitnessParams struct {
	DABlockHash       types.Hash      `json:"da_block_hash"`
	DABlockHeight     uint64          `json:"da_block_height"`
	PreStateRoot      types.Hash      `json:"pre_state_root"`
	PostStateRoot     types.Hash      `json:"post_state_root"`
	RewardedAddress   types.Address   `json:"rewarded_address"`
	ValidityCondition string          `json:"validity_condition_hex"`
	Witness           json.RawMessage `json:"witness"`
}

func router(svc *prover.Service, mode zkvm.Mode) http.Handler {
	r := chi.NewRouter()
	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		handleRPC(svc, mode, w, req)
	})
	return r
}

func handleRPC(svc *prover.Service, mode zkvm.Mode, w http.ResponseWriter, httpReq *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(httpReq.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, "invalid request: "+err.Error())
		return
	}

	switch req.Method {
	case "prover_submitWitness":
		if len(req.Params) == 0 {
			writeRPCError(w, req.ID, "missing params")
			return
		}
		var p submitWitnessParams
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			writeRPCError(w, req.ID, "decode params: "+err.Error())
			return
		}
		var validity []byte
		if p.ValidityCondition != "" {
			decoded, err := hex.DecodeString(p.ValidityCondition)
			if err != nil {
				writeRPCError(w, req.ID, "invalid validity_condition_hex: "+err.Error())
				return
			}
			validity = decoded
		}
		w2 := witness.New()
		if len(p.Witness) > 0 {
			if err := w2.UnmarshalJSON(p.Witness); err != nil {
				writeRPCError(w, req.ID, "decode witness: "+err.Error())
				return
			}
		}
		status := svc.SubmitWitness(prover.StateTransitionData{
			DABlockHash:       p.DABlockHash,
			DABlockHeight:     p.DABlockHeight,
			PreStateRoot:      p.PreStateRoot,
			PostStateRoot:     p.PostStateRoot,
			RewardedAddress:   p.RewardedAddress,
			ValidityCondition: validity,
			Witness:           w2,
		})
		writeRPCResult(w, req.ID, map[string]bool{"exists": status == prover.WitnessExist})

	case "prover_startProving":
		var hashHex string
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &hashHex)
		}
		hash, err := decodeHash(hashHex)
		if err != nil {
			writeRPCError(w, req.ID, err.Error())
			return
		}
		result, err := svc.StartProving(hash, mode)
		if err != nil {
			writeRPCError(w, req.ID, err.Error())
			return
		}
		writeRPCResult(w, req.ID, map[string]bool{"busy": result == prover.ProvingBusy})

	case "prover_getProofStatus":
		var hashHex string
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &hashHex)
		}
		hash, err := decodeHash(hashHex)
		if err != nil {
			writeRPCError(w, req.ID, err.Error())
			return
		}
		status, proof, err := svc.ProofStatus(hash)
		if err != nil {
			writeRPCError(w, req.ID, err.Error())
			return
		}
		writeRPCResult(w, req.ID, map[string]interface{}{
			"done":  status == prover.ProofSuccess,
			"proof": proof,
		})

	default:
		writeRPCError(w, req.ID, "unknown method: "+req.Method)
	}
}

func decodeHash(hexStr string) (types.Hash, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return types.Hash{}, fmt.Errorf("invalid hex hash: %w", err)
	}
	var h types.Hash
	copy(h[:], b)
	return h, nil
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(rpcResponse{ID: id, Error: msg})
}
