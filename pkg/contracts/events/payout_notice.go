package events

// PayoutNotice é enviado pela chain dona do pool após a liquidação de uma partida.
// Perdedores recebem amount=0 e is_win=false. Season marca a temporada ativa no
// momento da liquidação, para arquivamento correto no destino.
type PayoutNotice struct {
	BetID         string `json:"bet_id"`
	MatchID       string `json:"match_id"`
	Amount        int64  `json:"amount"`
	IsWin         bool   `json:"is_win"`
	Season        int64  `json:"season"`
	BettorAccount string `json:"bettor_account"`
	TargetChain   string `json:"target_chain"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}
