package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dexflow/dexbot/internal/domain"
	"github.com/dexflow/dexbot/internal/usecase"
	"go.uber.org/zap"
)

// Server exposes the trading engine's operations over JSON HTTP. It is the
// only surface the engine offers to operators.
type Server struct {
	router     *http.ServeMux
	server     *http.Server
	engine     *usecase.TradingEngine
	aggregator *usecase.DEXAggregator
	marketData domain.MarketData
	logger     *zap.Logger
}

func NewServer(
	port int,
	engine *usecase.TradingEngine,
	aggregator *usecase.DEXAggregator,
	marketData domain.MarketData,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		engine:     engine,
		aggregator: aggregator,
		marketData: marketData,
		logger:     logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Bot lifecycle
	s.router.HandleFunc("POST /bot/start", s.handleStart)
	s.router.HandleFunc("POST /bot/stop", s.handleStop)
	s.router.HandleFunc("GET /bot/status", s.handleStatus)
	s.router.HandleFunc("PUT /bot/config", s.handleUpdateConfig)

	// Bookkeeping
	s.router.HandleFunc("GET /trades", s.handleTrades)
	s.router.HandleFunc("GET /positions", s.handlePositions)

	// Venues
	s.router.HandleFunc("GET /venues", s.handleVenues)

	// Candles
	s.router.HandleFunc("GET /api/candles", s.handleCandles)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
