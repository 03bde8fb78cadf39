package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trailchain/core/state"
	"trailchain/native/trail"
	"trailchain/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeNotMintable    = -32010
	codePaymentError   = -32011
	codeConflict       = -32012
)

// Server exposes the trail ledger over JSON-RPC. Mutating calls are
// serialized through a single mutex so each one sees the engine's
// all-or-nothing semantics without interleaving, and the state journal is
// collapsed after every committed call.
type Server struct {
	engine  *trail.Engine
	manager *state.Manager
	logger  *slog.Logger
	metrics *metrics.TrailMetrics

	mu sync.Mutex
}

// NewServer wires a JSON-RPC server around the engine and its state manager.
func NewServer(engine *trail.Engine, manager *state.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		manager: manager,
		logger:  logger,
		metrics: metrics.Trail(),
	}
}

// Router builds the HTTP mux: the JSON-RPC endpoint at /, a liveness probe
// and the Prometheus scrape endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// writeEngineError maps the engine's error classes onto JSON-RPC codes.
func writeEngineError(w http.ResponseWriter, id interface{}, method string, err error, m *metrics.TrailMetrics) {
	m.ObserveCallFailure(method)
	switch {
	case errors.Is(err, trail.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, err.Error(), nil)
	case errors.Is(err, trail.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, trail.ErrNotMintable):
		writeError(w, http.StatusConflict, id, codeNotMintable, err.Error(), nil)
	case errors.Is(err, trail.ErrInsufficientPayment):
		writeError(w, http.StatusPaymentRequired, id, codePaymentError, err.Error(), nil)
	case errors.Is(err, trail.ErrConflict):
		writeError(w, http.StatusConflict, id, codeConflict, err.Error(), nil)
	case errors.Is(err, trail.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}

// handle decodes a JSON-RPC envelope and routes it to the method handler.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	handler(w, &req)
}

type methodHandler func(http.ResponseWriter, *RPCRequest)

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"trail_createSeries":    s.handleCreateSeries,
		"trail_mint":            s.handleMint,
		"trail_buy":             s.handleBuy,
		"trail_transfer":        s.handleTransfer,
		"trail_setMintable":     s.handleSetMintable,
		"trail_setAllMintable":  s.handleSetAllMintable,
		"trail_setFeePercent":   s.handleSetFeePercent,
		"trail_setMinimumFee":   s.handleSetMinimumFee,
		"trail_setTreasury":     s.handleSetTreasury,
		"trail_putSetting":      s.handlePutSetting,
		"trail_getSetting":      s.handleGetSetting,
		"trail_getSeries":       s.handleGetSeries,
		"trail_getCopy":         s.handleGetCopy,
		"trail_seriesIDs":       s.handleSeriesIDs,
		"trail_seriesByCreator": s.handleSeriesByCreator,
		"trail_seriesByOwner":   s.handleSeriesByOwner,
		"trail_copiesByOwner":   s.handleCopiesByOwner,
		"trail_isOwner":         s.handleIsOwner,
		"trail_isCreator":       s.handleIsCreator,
		"trail_params":          s.handleParams,
		"trail_balance":         s.handleBalance,
	}
}

// decodeParams enforces the single-object parameter convention.
func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "exactly one parameter object expected", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return false
	}
	return true
}
