package events

// BetPlacement atravessa a fronteira de chains: proxy do usuário -> chain dona do pool.
// OriginChain identifica a chain do apostador para rotear o payout de volta.
type BetPlacement struct {
	BetID         string `json:"bet_id"`
	MatchID       string `json:"match_id"`
	Predicted     string `json:"predicted"`
	Amount        int64  `json:"amount"`
	Bettor        string `json:"bettor"`
	BettorAccount string `json:"bettor_account"`
	OriginChain   string `json:"origin_chain"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}
