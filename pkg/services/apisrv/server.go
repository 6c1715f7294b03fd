/*
Package apisrv implements the read-only HTTP API over recorded scan results.
Besides plain JSON endpoints it provides a websocket feed pushing every new
result to connected clients.
*/
package apisrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/auditoracle/audit-oracle/pkg/core/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Store is the scan result source, storage.ScanStore implements it.
	Store interface {
		Len() int
		Recent(limit int) []state.ScanResult
		ByAddress(addr common.Address) (state.ScanResult, error)
		Stats() state.Stats
		SubscribeForScans(ch chan<- state.ScanResult)
		UnsubscribeFromScans(ch chan<- state.ScanResult)
	}

	// Watermarker reports the last block processed by the sweeper.
	Watermarker interface {
		Watermark() uint64
	}

	// Server is the read API server.
	Server struct {
		http []*http.Server

		config    config.API
		log       *zap.Logger
		store     Store
		watermark Watermarker
		errChan   chan<- error
		started   *atomic.Bool
		shutdown  chan struct{}
		upgrader  websocket.Upgrader

		subsLock    sync.RWMutex
		subscribers map[string]*subscriber
		scanCh      chan state.ScanResult
		// eventsDone is closed when handleSubEvents finishes.
		eventsDone chan struct{}
	}

	response struct {
		Success bool   `json:"success"`
		Data    any    `json:"data,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	healthResponse struct {
		Status           string `json:"status"`
		ScansStored      int    `json:"scansStored"`
		LastScannedBlock uint64 `json:"lastScannedBlock"`
	}
)

const (
	// DefaultRecentLimit is the number of results returned by the recent
	// scans endpoint when no limit is given.
	DefaultRecentLimit = 20

	// Maximum number of simultaneous websocket clients.
	maxWebSocketClients = 64

	// Number of scan results buffered for the feed.
	scanBufSize = 256
)

// New creates a new Server. Runtime serving errors are sent to errChan, it
// can be nil if nobody is interested in them. A nil watermark source makes
// health report zero last scanned block.
func New(cfg config.API, store Store, wm Watermarker, log *zap.Logger, errChan chan<- error) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxRecentLimit <= 0 {
		cfg.MaxRecentLimit = config.DefaultMaxRecentLimit
	}
	s := &Server{
		config:      cfg,
		log:         log.With(zap.String("service", "api")),
		store:       store,
		watermark:   wm,
		errChan:     errChan,
		started:     atomic.NewBool(false),
		shutdown:    make(chan struct{}),
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		subscribers: make(map[string]*subscriber),
		scanCh:      make(chan state.ScanResult, scanBufSize),
		eventsDone:  make(chan struct{}),
	}
	handler := s.Handler()
	for _, addr := range cfg.GetAddresses() {
		s.http = append(s.http, &http.Server{
			Addr:    addr,
			Handler: handler,
		})
	}
	return s
}

// Name returns service name.
func (s *Server) Name() string {
	return "api"
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s is not allowed", r.Method))
	})
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/scans/recent", s.handleRecent)
		r.Get("/scans/ws", s.handleWebsocket)
		r.Get("/scans/{address}", s.handleScan)
	})
	return r
}

// Start listens on all configured addresses and starts the websocket feed.
// Listening errors are returned.
func (s *Server) Start() error {
	if !s.config.Enabled {
		s.log.Info("API server is not enabled")
		return nil
	}
	if !s.started.CompareAndSwap(false, true) {
		s.log.Info("API server already started")
		return nil
	}
	s.store.SubscribeForScans(s.scanCh)
	go s.handleSubEvents()

	for _, srv := range s.http {
		s.log.Info("starting API server", zap.String("endpoint", srv.Addr))
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
		}
		srv.Addr = ln.Addr().String() // set Addr to the actual address
		go func(srv *http.Server) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("failed to start API server", zap.String("endpoint", srv.Addr), zap.Error(err))
				if s.errChan != nil {
					s.errChan <- err
				}
			}
		}(srv)
	}
	return nil
}

// Shutdown stops the API server if it's running. It can only be called once,
// subsequent calls to Shutdown on the same instance are no-op. The instance
// that was stopped can not be started again by calling Start (use a new
// instance if needed).
func (s *Server) Shutdown() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	// Signal to websocket writer routines and handleSubEvents.
	close(s.shutdown)

	for _, srv := range s.http {
		s.log.Info("shutting down API server", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			s.log.Warn("error during API server shutdown", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
	<-s.eventsDone
}

// Addresses returns actual listening addresses, they're only known after
// successful Start.
func (s *Server) Addresses() []string {
	res := make([]string, 0, len(s.http))
	for _, srv := range s.http {
		res = append(res, srv.Addr)
	}
	return res
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var last uint64
	if s.watermark != nil {
		last = s.watermark.Watermark()
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		ScansStored:      s.store.Len(),
		LastScannedBlock: last,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: s.store.Stats()})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = min(max(n, 0), s.config.MaxRecentLimit)
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: s.store.Recent(limit)})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "address")
	if !common.IsHexAddress(param) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid address %q", param))
		return
	}
	res, err := s.store.ByAddress(common.HexToAddress(param))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no scan for "+param)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: res})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
