package sequencer

import (
	"encoding/json"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
)

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

// Router returns an http.Handler exposing sequencer_acceptTx and
// sequencer_publishBatch over JSON-RPC, mirroring the Rust source's
// register_txs_rpc_methods.
func Router(s *Sequencer) http.Handler {
	r := chi.NewRouter()
	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		handleRPC(s, w, req)
	})
	return r
}

func handleRPC(s *Sequencer, w http.ResponseWriter, httpReq *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(httpReq.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, "invalid request: "+err.Error())
		return
	}

	switch req.Method {
	case "sequencer_acceptTx":
		var hexBody string
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &hexBody)
		}
		body, err := hex.DecodeString(hexBody)
		if err != nil {
			writeRPCError(w, req.ID, "invalid hex body: "+err.Error())
			return
		}
		writeRPCResult(w, req.ID, s.AcceptTx(body))

	case "sequencer_publishBatch":
		n, err := s.PublishBatch(httpReq.Context())
		if err != nil {
			writeRPCError(w, req.ID, err.Error())
			return
		}
		writeRPCResult(w, req.ID, map[string]int{"txs": n})

	default:
		writeRPCError(w, req.ID, "unknown method: "+req.Method)
	}
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
