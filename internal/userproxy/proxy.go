package userproxy

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/pool/oddscache"
	"github.com/radieske/tourney-pool/internal/shared/bus"
	"github.com/radieske/tourney-pool/internal/shared/metrics"
	"github.com/radieske/tourney-pool/internal/userproxy/history"
	"github.com/radieske/tourney-pool/pkg/contracts/events"
	"github.com/radieske/tourney-pool/pkg/contracts/topics"
)

// Treasury é a capability de pagamento da stake no colaborador de token.
type Treasury interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
}

// OddsReader lê o espelho de odds mantido pelo pool (passthrough de consulta).
type OddsReader interface {
	ReadOdds(ctx context.Context, matchID string) (*oddscache.Snapshot, error)
}

// Proxy é o lado do apostador: paga a stake, registra o histórico local e
// publica a aposta para a chain dona do pool. Fire-and-forget: depois do
// publish não há confirmação além de um eventual bounce.
type Proxy struct {
	log      *zap.Logger
	hist     *history.Store
	treasury Treasury
	bus      bus.Publisher
	odds     OddsReader

	chainID      string
	poolChainID  string
	ownerAccount string

	now func() time.Time
	seq atomic.Int64
}

func NewProxy(log *zap.Logger, hist *history.Store, tr Treasury, pub bus.Publisher, odds OddsReader, chainID, poolChainID, ownerAccount string) *Proxy {
	return &Proxy{
		log:          log,
		hist:         hist,
		treasury:     tr,
		bus:          pub,
		odds:         odds,
		chainID:      chainID,
		poolChainID:  poolChainID,
		ownerAccount: ownerAccount,
		now:          time.Now,
	}
}

// WithClock troca a fonte de tempo (testes).
func (p *Proxy) WithClock(now func() time.Time) *Proxy {
	p.now = now
	return p
}

type PlaceBetInput struct {
	Bettor    string
	Account   string
	MatchID   string
	Predicted string
	Amount    int64
}

// PlaceBet executa a ponta local de uma aposta: stake paga primeiro (falha
// aborta tudo), depois histórico, depois publish. O id carimba a chain, o
// instante em micros e uma sequência local; duas apostas no mesmo micro
// não colidem.
func (p *Proxy) PlaceBet(ctx context.Context, in PlaceBetInput) (string, error) {
	now := p.now()
	betID := fmt.Sprintf("bet_%s_%d_%d", p.chainID, now.UnixMicro(), p.seq.Add(1))

	if err := p.treasury.Transfer(ctx, in.Account, p.ownerAccount, in.Amount); err != nil {
		return "", fmt.Errorf("pay stake: %w", err)
	}

	if err := p.hist.RecordBet(betID, in.MatchID, in.Predicted, in.Amount, now.UnixMilli()); err != nil {
		return "", fmt.Errorf("record bet: %w", err)
	}

	env, err := bus.NewEnvelope(bus.KindBetPlacement, p.chainID, p.poolChainID, events.BetPlacement{
		BetID:         betID,
		MatchID:       in.MatchID,
		Predicted:     in.Predicted,
		Amount:        in.Amount,
		Bettor:        in.Bettor,
		BettorAccount: in.Account,
		OriginChain:   p.chainID,
		TsUnixMs:      now.UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	if err := p.bus.Publish(ctx, topics.BetPlacements, env); err != nil {
		return "", fmt.Errorf("publish bet: %w", err)
	}
	return betID, nil
}

// History devolve o histórico local, mais recente primeiro.
func (p *Proxy) History() ([]history.Transaction, error) {
	return p.hist.List()
}

// CurrentOdds lê o snapshot espelhado da partida; (nil, nil) sem snapshot.
func (p *Proxy) CurrentOdds(ctx context.Context, matchID string) (*oddscache.Snapshot, error) {
	if p.odds == nil {
		return nil, nil
	}
	return p.odds.ReadOdds(ctx, matchID)
}

// HandlePayoutNotice consome o tópico de payouts. Avisos endereçados a outra
// chain são ignorados; o destinatário certo aplica no histórico. Não há
// deduplicação: entrega repetida reaplica.
func (p *Proxy) HandlePayoutNotice(ctx context.Context, env bus.Envelope) error {
	if env.Bouncing {
		metrics.MessagesBounced.Inc()
		p.log.Warn("envelope devolvido ao proxy", zap.String("id", env.ID))
		return nil
	}

	var n events.PayoutNotice
	if err := env.Decode(&n); err != nil {
		p.log.Error("payout notice ilegível", zap.String("id", env.ID), zap.Error(err))
		return bus.ErrRejected
	}
	if n.TargetChain != p.chainID {
		return nil
	}

	if known, err := p.hist.Get(n.BetID); err != nil {
		return err
	} else if known == nil {
		p.log.Warn("payout para aposta desconhecida", zap.String("bet_id", n.BetID))
	}

	if err := p.hist.ApplyPayout(n.BetID, n.MatchID, n.Amount, n.IsWin, n.Season, p.now().UnixMilli()); err != nil {
		return err
	}
	p.log.Info("payout aplicado",
		zap.String("bet_id", n.BetID),
		zap.Bool("is_win", n.IsWin),
		zap.Int64("amount", n.Amount))
	return nil
}

// HandleBetBounce observa apostas que o pool recusou. A stake já saiu da
// conta do apostador e não volta: perda aceita, registrada e contada.
func (p *Proxy) HandleBetBounce(_ context.Context, env bus.Envelope) error {
	if env.Source != p.chainID {
		return nil
	}
	metrics.MessagesBounced.Inc()

	var b events.BetPlacement
	if err := env.Decode(&b); err != nil {
		p.log.Error("bounce com payload ilegível", zap.String("id", env.ID), zap.Error(err))
		return nil
	}
	p.log.Warn("aposta devolvida pelo pool, stake perdida",
		zap.String("bet_id", b.BetID),
		zap.String("match_id", b.MatchID),
		zap.Int64("amount", b.Amount))
	return nil
}
