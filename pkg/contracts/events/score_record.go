package events

// ScoreRecord é publicado para o colaborador externo de leaderboard global
// a cada resultado de partida registrado.
type ScoreRecord struct {
	MatchID  string `json:"match_id"`
	Winner   string `json:"winner"`
	Loser    string `json:"loser"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
