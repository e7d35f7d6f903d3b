package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dexflow/dexbot/internal/domain"
	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(); err != nil {
		s.logger.Error("Failed to start bot", zap.Error(err))
		http.Error(w, "Failed to start bot", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, s.engine.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(); err != nil {
		s.logger.Error("Failed to stop bot", zap.Error(err))
		http.Error(w, "Failed to stop bot", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, s.engine.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Status())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update domain.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.UpdateConfiguration(update); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, s.engine.Status())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.TradeHistory())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.OpenPositions())
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.aggregator.Venues())
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		http.Error(w, "pair is required", http.StatusBadRequest)
		return
	}

	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1h"
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	candles, err := s.marketData.GetCandles(r.Context(), pair, interval, limit)
	if err != nil {
		s.logger.Error("Failed to fetch candles", zap.String("pair", pair), zap.Error(err))
		http.Error(w, "Failed to fetch candles", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, candles)
}
