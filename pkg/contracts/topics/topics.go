package topics

const (
	// Mensagens cross-chain
	BetPlacements = "bet_placements"
	PayoutNotices = "payout_notices"

	// Resultados de partida para o colaborador de leaderboard global
	ScoreRecords = "score_records"

	// Bounce (DLQ): mensagem rejeitada pelo destino volta para a origem
	BetPlacementsBounced = "bet_placements_bounced"
	PayoutNoticesBounced = "payout_notices_bounced"
)
