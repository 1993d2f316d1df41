package ledger

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/sovereign-rollup/core/pkg/types"
)

// rpcRequest is a JSON-RPC 2.0 request, matching spec.md §6's RPC surface
// (ledger_getHead, ledger_getSlots, ...) one method per call.
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

func parseMode(params []json.RawMessage, idx int) Mode {
	if idx >= len(params) {
		return Compact
	}
	var s string
	if err := json.Unmarshal(params[idx], &s); err != nil {
		return Compact
	}
	switch s {
	case "standard", "Standard":
		return Standard
	case "full", "Full":
		return Full
	default:
		return Compact
	}
}

// Router returns an http.Handler exposing the ledger JSON-RPC surface from
// spec.md §6 ("RPC surface (ledger)") plus the ledger_subscribeSlots
// websocket push channel, mounted with go-chi for the routing the teacher's
// pack-wide RPC services use.
func Router(l *Ledger) http.Handler {
	r := chi.NewRouter()
	r.Post("/", func(w http.ResponseWriter, req *http.Request) {
		handleRPC(l, w, req)
	})
	r.Get("/subscribe/slots", func(w http.ResponseWriter, req *http.Request) {
		handleSubscribeSlots(l, w, req)
	})
	return r
}

func handleRPC(l *Ledger, w http.ResponseWriter, httpReq *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(httpReq.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, "invalid request: "+err.Error())
		return
	}

	switch req.Method {
	case "ledger_getHead":
		mode := parseMode(req.Params, 0)
		v, ok := l.GetHead(mode)
		if !ok {
			writeRPCResult(w, req.ID, nil)
			return
		}
		writeRPCResult(w, req.ID, v)

	case "ledger_getSlots":
		var numbers []types.SlotNumber
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &numbers)
		}
		mode := parseMode(req.Params, 1)
		out := make([]*SlotView, 0, len(numbers))
		for _, n := range numbers {
			v, ok := l.GetSlotByNumber(n, mode)
			if ok {
				out = append(out, v)
			}
		}
		writeRPCResult(w, req.ID, out)

	case "ledger_getBatches":
		var numbers []types.BatchNumber
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &numbers)
		}
		mode := parseMode(req.Params, 1)
		out := make([]*BatchView, 0, len(numbers))
		for _, n := range numbers {
			v, ok := l.GetBatchByNumber(n, mode)
			if ok {
				out = append(out, v)
			}
		}
		writeRPCResult(w, req.ID, out)

	case "ledger_getTransactions":
		var numbers []types.TxNumber
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &numbers)
		}
		mode := parseMode(req.Params, 1)
		out := make([]*TxView, 0, len(numbers))
		for _, n := range numbers {
			v, ok := l.GetTransactionByNumber(n, mode)
			if ok {
				out = append(out, v)
			}
		}
		writeRPCResult(w, req.ID, out)

	case "ledger_getEvents":
		var numbers []types.TxNumber
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &numbers)
		}
		var out []StoredEvent
		for _, n := range numbers {
			evs, ok := l.GetEvents(n)
			if ok {
				out = append(out, evs...)
			}
		}
		writeRPCResult(w, req.ID, out)

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

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSubscribeSlots implements ledger_subscribeSlots: a push channel
// that streams every newly committed slot, dropping the connection if the
// client falls behind (Ledger.broadcast's slow-subscriber policy).
func handleSubscribeSlots(l *Ledger, w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		logrus.WithError(err).Warn("ledger: websocket upgrade failed")
		return
	}
	defer conn.Close()

	id, ch := l.Subscribe()
	defer l.Unsubscribe(id)

	conn.SetReadDeadline(time.Now().Add(1 * time.Hour))
	go func() {
		// Drain and discard client messages; this channel is push-only,
		// but we still need to notice the client disconnecting.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for slot := range ch {
		if err := conn.WriteJSON(slot); err != nil {
			return
		}
	}
}
