package state

import "context"

// Store é o armazenamento transacional da chain dona do pool. Toda operação
// do engine roda dentro de um único Update: ou tudo commita, ou nada. A ordem
// de iteração das listagens não é significativa (o engine ordena quando
// precisa).
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
}

// Tx expõe as coleções persistentes dentro de uma transação.
// Getters de entidade retornam (nil, nil) quando a chave não existe.
type Tx interface {
	// registro de partidas
	GetMatch(matchID string) (*Match, error)
	PutMatch(m *Match) error
	ListMatches() ([]*Match, error)
	ClearMatches() error

	// ledger de apostas, agrupado por partida
	Bets(matchID string) ([]Bet, error)
	AppendBet(b Bet) error
	ClearBets(matchID string) error
	ClearAllBets() error

	// bracket e resultados
	GetBracketEntry(matchID string) (*BracketEntry, error)
	PutBracketEntry(e BracketEntry) error
	ListBracket() ([]BracketEntry, error)
	ClearBracket() error
	PutResult(r MatchResult) error
	ListResults() ([]MatchResult, error)
	ClearResults() error

	// leaderboard vivo da temporada
	Score(username string) (int64, error)
	PutScore(username string, score int64) error
	ListScores() ([]ScoreEntry, error)
	ClearScores() error

	// arquivo de leaderboard por temporada encerrada
	ArchiveScores(season int64, entries []ScoreEntry) error
	ArchivedScores(season int64) ([]ScoreEntry, error)

	// temporadas
	CurrentSeasonNumber() (int64, error)
	SetCurrentSeasonNumber(n int64) error
	GetSeason(number int64) (*Season, error)
	PutSeason(s *Season) error
	ListSeasonNumbers() ([]int64, error)

	// airdrop
	AirdropAmount() (int64, error)
	SetAirdropAmount(amount int64) error
	IsAirdropRecipient(userKey string) (bool, error)
	AddAirdropRecipient(userKey string) error
	ClearAirdropRecipients() error
	PutPendingClaim(userKey string, c PendingClaim) error
	ListPendingClaims() ([]ClaimEntry, error)
	RemovePendingClaim(userKey string) error
	ClearPendingClaims() error
}

// ClaimEntry associa a chave "chain:conta" ao pedido pendente.
type ClaimEntry struct {
	UserKey string       `json:"user_key"`
	Claim   PendingClaim `json:"claim"`
}
