package http

import "github.com/radieske/tourney-pool/internal/pool/state"

type StartSeasonRequest struct {
	Name string `json:"name"`
}

type SetParticipantsRequest struct {
	Participants []string `json:"participants"`
}

type SetBracketRequest struct {
	Entries []state.BracketEntry `json:"entries"`
}

type OpenBettingRequest struct {
	DurationMs int64 `json:"duration_ms"`
}

type SettleRequest struct {
	Winner string `json:"winner"`
}

type RecordResultRequest struct {
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
}

type AirdropAmountRequest struct {
	Caller string `json:"caller"`
	Amount int64  `json:"amount"`
}

type ClaimRequest struct {
	UserChain   string `json:"user_chain"`
	UserAccount string `json:"user_account"`
}

type ProcessClaimsRequest struct {
	Caller string `json:"caller"`
	Limit  int    `json:"limit"`
}

type ProcessClaimsResponse struct {
	Processed int `json:"processed"`
}

// MatchView é a projeção de consulta de uma partida: odds sempre recalculadas
// sobre os totais correntes e fatias percentuais do pool. O status reportado
// já considera o deadline, mesmo antes do probe persistir a transição.
type MatchView struct {
	state.Match
	LiveOddsA int64 `json:"live_odds_a"`
	LiveOddsB int64 `json:"live_odds_b"`
	PoolPctA  int64 `json:"pool_pct_a"`
	PoolPctB  int64 `json:"pool_pct_b"`
	PoolTotal int64 `json:"pool_total"`
}

type SeasonView struct {
	state.Season
	Leaderboard []state.ScoreEntry `json:"leaderboard,omitempty"`
}

type AirdropInfo struct {
	Amount        int64              `json:"amount"`
	PendingClaims []state.ClaimEntry `json:"pending_claims"`
}
