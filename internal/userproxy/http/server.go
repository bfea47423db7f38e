package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/userproxy"
)

// Server é a superfície HTTP da chain do apostador: colocar aposta, histórico
// local e passthrough de odds.
type Server struct {
	log   *zap.Logger
	proxy *userproxy.Proxy
}

func NewServer(log *zap.Logger, p *userproxy.Proxy) *Server {
	return &Server{log: log, proxy: p}
}

type PlaceBetRequest struct {
	Bettor    string `json:"bettor"`
	Account   string `json:"account"`
	MatchID   string `json:"match_id"`
	Predicted string `json:"predicted"`
	Amount    int64  `json:"amount"`
}

type PlaceBetResponse struct {
	BetID  string `json:"bet_id"`
	Status string `json:"status"`
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bets", s.placeBet)   // POST
	mux.HandleFunc("/history", s.history) // GET
	mux.HandleFunc("/odds/", s.odds)      // GET /odds/{matchId}
	return mux
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Bettor == "" || req.Account == "" || req.MatchID == "" || req.Predicted == "" || req.Amount <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	betID, err := s.proxy.PlaceBet(r.Context(), userproxy.PlaceBetInput{
		Bettor:    req.Bettor,
		Account:   req.Account,
		MatchID:   req.MatchID,
		Predicted: req.Predicted,
		Amount:    req.Amount,
	})
	if err != nil {
		s.log.Warn("aposta não enviada", zap.String("match_id", req.MatchID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	// fire-and-forget: aceito aqui não significa aceito no pool
	writeJSON(w, PlaceBetResponse{BetID: betID, Status: "SENT"})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := s.proxy.History()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (s *Server) odds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	matchID := strings.TrimPrefix(r.URL.Path, "/odds/")
	if matchID == "" {
		http.Error(w, "matchId required", http.StatusBadRequest)
		return
	}
	snap, err := s.proxy.CurrentOdds(r.Context(), matchID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "no odds snapshot", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
