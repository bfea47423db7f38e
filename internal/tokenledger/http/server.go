package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/tokenledger/repo"
)

// Repo abstrai as operações de conta para permitir fake nos testes.
type Repo interface {
	Mint(ctx context.Context, account string, amount int64) (int64, error)
	Balance(ctx context.Context, account string) (int64, error)
	Transfer(ctx context.Context, from, to string, amount int64) error
}

type Server struct {
	log  *zap.Logger
	repo Repo
}

func NewServer(log *zap.Logger, r Repo) *Server {
	return &Server{log: log, repo: r}
}

type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type MintRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transfers", s.transfer)  // POST
	mux.HandleFunc("/accounts/mint", s.mint)  // POST
	mux.HandleFunc("/accounts/", s.balance)   // GET /accounts/{id}
	return mux
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.From == "" || req.To == "" || req.Amount <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	err := s.repo.Transfer(r.Context(), req.From, req.To, req.Amount)
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repo.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		s.log.Error("transfer falhou", zap.String("from", req.From), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Account == "" || req.Amount <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.Mint(r.Context(), req.Account, req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, BalanceResponse{Account: req.Account, Balance: balance})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	account := strings.TrimPrefix(r.URL.Path, "/accounts/")
	if account == "" {
		http.Error(w, "account required", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.Balance(r.Context(), account)
	if errors.Is(err, repo.ErrAccountNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, BalanceResponse{Account: account, Balance: balance})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
