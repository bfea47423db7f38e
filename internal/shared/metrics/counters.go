package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Contadores do núcleo de apostas/liquidação. Registrados no registry default,
// expostos pelo servidor de /metrics de cada serviço.
var (
	BetsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourney_bets_accepted_total",
		Help: "Apostas aceitas no ledger do pool.",
	})

	BetsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourney_bets_dropped_total",
		Help: "Apostas descartadas (partida fora do estado Open ou palpite inválido).",
	})

	MatchesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourney_matches_settled_total",
		Help: "Partidas liquidadas.",
	})

	PayoutsDisbursed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourney_payouts_disbursed_total",
		Help: "Valor total pago aos vencedores (unidade menor do token).",
	})

	MessagesBounced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourney_messages_bounced_total",
		Help: "Mensagens cross-chain devolvidas (bounce) observadas pela origem.",
	})
)
