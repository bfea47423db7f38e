package state

// Estados de aposta de uma partida. Transições legais:
// Waiting -> Open (abrir apostas), Open -> Closed (deadline, lazy),
// Closed -> Settled (liquidação, exatamente uma vez).
const (
	StatusWaiting = "Waiting"
	StatusOpen    = "Open"
	StatusClosed  = "Closed"
	StatusSettled = "Settled"
)

const (
	SeasonActive = "Active"
	SeasonEnded  = "Ended"
)

// Match é o registro autoritativo de uma partida na chain dona do pool.
// Odds em ponto fixo ×1000. Invariante: TotalBetsA+TotalBetsB == soma dos
// valores apostados no ledger enquanto a partida não liquida.
type Match struct {
	MatchID string `json:"match_id"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`

	BettingStartMs    *int64 `json:"betting_start_ms,omitempty"`
	BettingDeadlineMs int64  `json:"betting_deadline_ms"`

	Status string `json:"status"`

	TotalBetsA     int64 `json:"total_bets_a"`
	TotalBetsB     int64 `json:"total_bets_b"`
	TotalBetsCount int64 `json:"total_bets_count"`

	OddsA int64 `json:"odds_a"`
	OddsB int64 `json:"odds_b"`
}

// Bet é uma aposta individual aceita no ledger. Imutável depois de aceita;
// a lista inteira é limpa na liquidação.
type Bet struct {
	BetID         string `json:"bet_id"`
	MatchID       string `json:"match_id"`
	Bettor        string `json:"bettor"`
	BettorAccount string `json:"bettor_account"`
	Predicted     string `json:"predicted"`
	Amount        int64  `json:"amount"`
	OriginChain   string `json:"origin_chain"`
}

// Season carrega metadata e os contadores de analytics da temporada.
// Os contadores vivem na própria linha da temporada: a linha encerrada é o
// arquivo histórico, e a nova temporada começa zerada.
type Season struct {
	Number  int64  `json:"number"`
	Name    string `json:"name"`
	StartMs int64  `json:"start_ms"`
	EndMs   *int64 `json:"end_ms,omitempty"`
	Status  string `json:"status"`

	Champion string `json:"champion,omitempty"`
	RunnerUp string `json:"runner_up,omitempty"`

	Participants []string `json:"participants,omitempty"`

	BetsPlaced   int64 `json:"bets_placed"`
	BetsSettled  int64 `json:"bets_settled"`
	TotalPayouts int64 `json:"total_payouts"`
}

type BracketEntry struct {
	MatchID     string `json:"match_id"`
	Player1     string `json:"player1"`
	Player2     string `json:"player2"`
	Winner      string `json:"winner,omitempty"`
	Round       string `json:"round"`
	MatchStatus string `json:"match_status"`
}

type MatchResult struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
	Loser   string `json:"loser"`
}

type ScoreEntry struct {
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// PendingClaim é um pedido de airdrop ainda não processado.
type PendingClaim struct {
	UserChain     string `json:"user_chain"`
	UserAccount   string `json:"user_account"`
	RequestedAtMs int64  `json:"requested_at_ms"`
}
