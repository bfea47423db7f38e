package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/pool/engine"
	"github.com/radieske/tourney-pool/internal/pool/odds"
	"github.com/radieske/tourney-pool/internal/pool/state"
)

// Server expõe a superfície HTTP da chain dona do pool: mutações de operador
// (temporada, bracket, abertura, resultado, liquidação, airdrop) e consultas.
type Server struct {
	log   *zap.Logger
	eng   *engine.Engine
	store state.Store
	nowMs func() int64
}

func NewServer(log *zap.Logger, eng *engine.Engine, st state.Store, nowMs func() int64) *Server {
	return &Server{log: log, eng: eng, store: st, nowMs: nowMs}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/seasons/start", s.startSeason)   // POST
	mux.HandleFunc("/seasons/end", s.endSeason)       // POST
	mux.HandleFunc("/seasons/current", s.currentSeason) // GET
	mux.HandleFunc("/seasons/", s.getSeason)          // GET /seasons/{number}
	mux.HandleFunc("/participants", s.setParticipants) // POST
	mux.HandleFunc("/bracket", s.bracket)             // GET | POST
	mux.HandleFunc("/results", s.results)             // GET
	mux.HandleFunc("/leaderboard", s.leaderboard)     // GET
	mux.HandleFunc("/matches", s.listMatches)         // GET
	mux.HandleFunc("/matches/", s.matchSubroutes)     // GET /matches/{id}[/bets] | POST /matches/{id}/{open,settle,result}
	mux.HandleFunc("/airdrop", s.airdropInfo)         // GET
	mux.HandleFunc("/airdrop/amount", s.setAirdropAmount)  // POST
	mux.HandleFunc("/airdrop/claims", s.requestClaim)      // POST
	mux.HandleFunc("/airdrop/claims/process", s.processClaims) // POST
	return mux
}

func (s *Server) startSeason(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req StartSeasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.eng.StartSeason(r.Context(), req.Name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.currentSeasonJSON(w, r)
}

func (s *Server) endSeason(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.eng.EndSeason(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.currentSeasonJSON(w, r)
}

func (s *Server) currentSeason(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.currentSeasonJSON(w, r)
}

func (s *Server) currentSeasonJSON(w http.ResponseWriter, r *http.Request) {
	var view SeasonView
	err := s.store.View(r.Context(), func(tx state.Tx) error {
		n, err := tx.CurrentSeasonNumber()
		if err != nil {
			return err
		}
		season, err := tx.GetSeason(n)
		if err != nil || season == nil {
			return err
		}
		view.Season = *season
		view.Leaderboard, err = tx.ListScores()
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, view)
}

// GET /seasons/{number}: temporada encerrada vem com o leaderboard arquivado.
func (s *Server) getSeason(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/seasons/"), 10, 64)
	if err != nil {
		http.Error(w, "season number required", http.StatusBadRequest)
		return
	}

	var view SeasonView
	found := false
	err = s.store.View(r.Context(), func(tx state.Tx) error {
		season, err := tx.GetSeason(n)
		if err != nil || season == nil {
			return err
		}
		found = true
		view.Season = *season
		if season.Status == state.SeasonEnded {
			view.Leaderboard, err = tx.ArchivedScores(n)
			return err
		}
		view.Leaderboard, err = tx.ListScores()
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "season not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) setParticipants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SetParticipantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.eng.SetParticipants(r.Context(), req.Participants); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bracket(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var entries []state.BracketEntry
		err := s.store.View(r.Context(), func(tx state.Tx) error {
			var err error
			entries, err = tx.ListBracket()
			return err
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, entries)
	case http.MethodPost:
		var req SetBracketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := s.eng.SetBracket(r.Context(), req.Entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var out []state.MatchResult
	err := s.store.View(r.Context(), func(tx state.Tx) error {
		var err error
		out, err = tx.ListResults()
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var out []state.ScoreEntry
	err := s.store.View(r.Context(), func(tx state.Tx) error {
		var err error
		out, err = tx.ListScores()
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var views []MatchView
	err := s.store.View(r.Context(), func(tx state.Tx) error {
		matches, err := tx.ListMatches()
		if err != nil {
			return err
		}
		for _, m := range matches {
			views = append(views, s.matchView(m))
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, views)
}

// path: /matches/{id} | /matches/{id}/bets | /matches/{id}/open|settle|result
func (s *Server) matchSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/matches/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "matchId required", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getMatch(w, r, id)
	case action == "bets" && r.Method == http.MethodGet:
		s.listBets(w, r, id)
	case action == "open" && r.Method == http.MethodPost:
		s.openBetting(w, r, id)
	case action == "settle" && r.Method == http.MethodPost:
		s.settle(w, r, id)
	case action == "result" && r.Method == http.MethodPost:
		s.recordResult(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request, id string) {
	var view *MatchView
	err := s.store.View(r.Context(), func(tx state.Tx) error {
		m, err := tx.GetMatch(id)
		if err != nil || m == nil {
			return err
		}
		v := s.matchView(m)
		view = &v
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if view == nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request, id string) {
	var bets []state.Bet
	err := s.store.View(r.Context(), func(tx state.Tx) error {
		var err error
		bets, err = tx.Bets(id)
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, bets)
}

func (s *Server) openBetting(w http.ResponseWriter, r *http.Request, id string) {
	var req OpenBettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DurationMs <= 0 {
		http.Error(w, "duration_ms required", http.StatusBadRequest)
		return
	}
	if err := s.eng.OpenBetting(r.Context(), id, req.DurationMs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.getMatch(w, r, id)
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request, id string) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.eng.SettleMatch(r.Context(), id, req.Winner); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.getMatch(w, r, id)
}

func (s *Server) recordResult(w http.ResponseWriter, r *http.Request, id string) {
	var req RecordResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Winner == "" || req.Loser == "" {
		http.Error(w, "winner and loser required", http.StatusBadRequest)
		return
	}
	if err := s.eng.RecordMatch(r.Context(), id, req.Winner, req.Loser); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) airdropInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var info AirdropInfo
	err := s.store.View(r.Context(), func(tx state.Tx) error {
		var err error
		if info.Amount, err = tx.AirdropAmount(); err != nil {
			return err
		}
		info.PendingClaims, err = tx.ListPendingClaims()
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, info)
}

func (s *Server) setAirdropAmount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req AirdropAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		http.Error(w, "positive amount required", http.StatusBadRequest)
		return
	}
	if err := s.eng.SetAirdropAmount(r.Context(), req.Caller, req.Amount); err != nil {
		if errors.Is(err, engine.ErrNotOwner) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserChain == "" || req.UserAccount == "" {
		http.Error(w, "user_chain and user_account required", http.StatusBadRequest)
		return
	}
	if err := s.eng.RequestInitialClaim(r.Context(), req.UserChain, req.UserAccount); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) processClaims(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ProcessClaimsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	n, err := s.eng.ProcessPendingClaims(r.Context(), req.Caller, req.Limit)
	if err != nil {
		if errors.Is(err, engine.ErrNotOwner) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, ProcessClaimsResponse{Processed: n})
}

// matchView projeta a partida com odds recalculadas ao vivo. As odds gravadas
// são as da última aposta aceita; a consulta nunca confia nelas.
func (s *Server) matchView(m *state.Match) MatchView {
	v := MatchView{Match: *m, PoolTotal: m.TotalBetsA + m.TotalBetsB}
	v.LiveOddsA, v.LiveOddsB = odds.ForMatch(m.TotalBetsA, m.TotalBetsB)
	v.PoolPctA, v.PoolPctB = odds.Distribution(m.TotalBetsA, m.TotalBetsB)
	if v.Status == state.StatusOpen && s.nowMs() >= v.BettingDeadlineMs {
		v.Status = state.StatusClosed
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
