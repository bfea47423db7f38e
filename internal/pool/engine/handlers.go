package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/shared/bus"
	"github.com/radieske/tourney-pool/internal/shared/metrics"
	"github.com/radieske/tourney-pool/pkg/contracts/events"
)

// HandleBetPlacement é o handler do tópico de apostas cross-chain.
// Partida desconhecida ou palpite inválido rejeitam o envelope, que volta à
// origem com bounce. Aposta fora da janela é descartada aqui mesmo: o valor
// já saiu da conta do apostador e fica com o pool (perda aceita).
func (e *Engine) HandleBetPlacement(ctx context.Context, env bus.Envelope) error {
	if env.Bouncing {
		metrics.MessagesBounced.Inc()
		e.log.Warn("envelope devolvido ao pool", zap.String("id", env.ID), zap.String("kind", string(env.Kind)))
		return nil
	}

	var p events.BetPlacement
	if err := env.Decode(&p); err != nil {
		e.log.Error("payload de aposta ilegível", zap.String("id", env.ID), zap.Error(err))
		return bus.ErrRejected
	}

	err := e.AcceptBet(ctx, p)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBettingClosed):
		return nil
	case errors.Is(err, ErrUnknownMatch), errors.Is(err, ErrInvalidPrediction):
		return bus.ErrRejected
	default:
		return err
	}
}

// HandlePayoutBounce observa payouts que o destino recusou. Sem retry: o
// valor já foi transferido na liquidação, então só registra e conta.
func (e *Engine) HandlePayoutBounce(_ context.Context, env bus.Envelope) error {
	metrics.MessagesBounced.Inc()
	var n events.PayoutNotice
	if err := env.Decode(&n); err != nil {
		e.log.Error("payout devolvido com payload ilegível", zap.String("id", env.ID), zap.Error(err))
		return nil
	}
	e.log.Warn("payout notice devolvido pelo destino",
		zap.String("bet_id", n.BetID),
		zap.String("target_chain", n.TargetChain),
		zap.Int64("amount", n.Amount))
	return nil
}
