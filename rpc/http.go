package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"swaylend/native/market"
	"swaylend/observability"
	"swaylend/rpc/modules"
)

const (
	jsonRPCVersion = "2.0"

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeRateLimited    = -32020

	requestIDHeader = "X-Request-ID"
	metricsModule   = "market"

	defaultMaxBodyBytes      = 1 << 20
	defaultReadHeaderTimeout = 5 * time.Second
	shutdownTimeout          = 5 * time.Second
)

type ServerConfig struct {
	// ChainID is the network id every market_call must be signed for.
	ChainID uint64
	// RateLimitPerMinute caps JSON-RPC calls per client. Zero disables the
	// limiter.
	RateLimitPerMinute int
	Burst              int
	MaxBodyBytes       int64
	ReadHeaderTimeout  time.Duration
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type Server struct {
	market  *modules.MarketModule
	cfg     ServerConfig
	logger  *slog.Logger
	methods map[string]handlerFunc
	router  chi.Router

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func NewServer(markets *market.Directory, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	s := &Server{
		market:   modules.NewMarketModule(markets, cfg.ChainID),
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
	s.methods = map[string]handlerFunc{
		"market_chainId":           s.handleMarketChainID,
		"market_list":              s.handleMarketList,
		"market_getConfig":         s.handleMarketGetConfig,
		"market_getState":          s.handleMarketGetState,
		"market_getCollaterals":    s.handleMarketGetCollaterals,
		"market_getUserCollateral": s.handleMarketGetUserCollateral,
		"market_getTotals":         s.handleMarketGetTotals,
		"market_collateralValue":   s.handleMarketCollateralValue,
		"market_accountLiquidity":  s.handleMarketAccountLiquidity,
		"market_convertToBase":     s.handleMarketConvertToBase,
		"market_getPrice":          s.handleMarketGetPrice,
		"market_getNonce":          s.handleMarketGetNonce,
		"market_call":              s.handleMarketCall,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.rateLimit).Post("/", s.handle)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("rpc server listening", slog.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rec, http.StatusBadRequest, nil, codeParseError, "failed to parse request", err.Error())
		observability.ModuleMetrics().Observe(metricsModule, "", rec.status, time.Since(start))
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(rec, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
	} else if handler, ok := s.methods[req.Method]; !ok {
		writeError(rec, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	} else {
		handler(rec, r, &req)
	}
	elapsed := time.Since(start)
	observability.ModuleMetrics().Observe(metricsModule, req.Method, rec.status, elapsed)
	s.logger.Debug("rpc request",
		slog.String("request_id", w.Header().Get(requestIDHeader)),
		slog.String("method", req.Method),
		slog.Int("status", rec.status),
		slog.Duration("duration", elapsed))
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		source := clientSource(r)
		if !s.allowSource(source) {
			observability.ModuleMetrics().RecordThrottle(metricsModule, "rate_limit")
			s.logger.Warn("rpc rate limit exceeded", slog.String("source", source))
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowSource(source string) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		burst := s.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(s.cfg.RateLimitPerMinute)/60.0), burst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestID tags every response with the caller's X-Request-ID or a fresh
// one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
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
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}
