package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/pool/odds"
	"github.com/radieske/tourney-pool/internal/pool/state"
	"github.com/radieske/tourney-pool/internal/shared/bus"
	"github.com/radieske/tourney-pool/internal/shared/metrics"
	"github.com/radieske/tourney-pool/pkg/contracts/events"
	"github.com/radieske/tourney-pool/pkg/contracts/topics"
)

var (
	ErrUnknownMatch      = errors.New("match not found")
	ErrInvalidPrediction = errors.New("predicted player is not in the match")
	ErrBettingClosed     = errors.New("betting window is not open")
	ErrNotOwner          = errors.New("caller is not the tournament owner")
)

// Treasury é a capability de transferência de valor no colaborador externo
// de token. O engine nunca guarda saldo: stake entra na conta do dono do
// torneio via proxy, e a liquidação paga vencedores a partir dela.
type Treasury interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
}

// OddsMirror espelha o snapshot de odds após cada aposta aceita (best-effort).
type OddsMirror interface {
	WriteOdds(ctx context.Context, matchID string, oddsA, oddsB int64) error
}

// Engine concentra toda mutação de estado da chain dona do pool. Cada operação
// roda dentro de um único store.Update; mensagens de saída só são publicadas
// depois do commit.
type Engine struct {
	log      *zap.Logger
	store    state.Store
	bus      bus.Publisher
	treasury Treasury
	mirror   OddsMirror

	chainID      string
	ownerAccount string

	now func() time.Time
}

func New(log *zap.Logger, st state.Store, pub bus.Publisher, tr Treasury, mirror OddsMirror, chainID, ownerAccount string) *Engine {
	return &Engine{
		log:          log,
		store:        st,
		bus:          pub,
		treasury:     tr,
		mirror:       mirror,
		chainID:      chainID,
		ownerAccount: ownerAccount,
		now:          time.Now,
	}
}

// WithClock troca a fonte de tempo (testes de deadline).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) nowMs() int64 { return e.now().UnixMilli() }

// probe aplica a transição preguiçosa Open -> Closed quando o deadline passou.
// Chamado antes de qualquer mutação do ledger e antes da liquidação.
func probe(m *state.Match, nowMs int64) bool {
	if m.Status == state.StatusOpen && nowMs >= m.BettingDeadlineMs {
		m.Status = state.StatusClosed
		return true
	}
	return false
}

// OpenBetting abre a janela de apostas de uma partida por durationMs.
// Jogadores vêm da metadata existente, senão do bracket, senão ficam
// "Unknown" (comportamento herdado: abrir partida desconhecida não é erro).
// Totais e odds são zerados ao abrir.
func (e *Engine) OpenBetting(ctx context.Context, matchID string, durationMs int64) error {
	nowMs := e.nowMs()
	return e.store.Update(ctx, func(tx state.Tx) error {
		m, err := tx.GetMatch(matchID)
		if err != nil {
			return err
		}
		if m != nil && m.Status == state.StatusSettled {
			// partida liquidada não reabre
			e.log.Warn("tentativa de reabrir partida liquidada", zap.String("match_id", matchID))
			return nil
		}
		if m == nil {
			m = &state.Match{MatchID: matchID, Player1: "Unknown", Player2: "Unknown"}
			be, err := tx.GetBracketEntry(matchID)
			if err != nil {
				return err
			}
			if be != nil {
				m.Player1 = be.Player1
				m.Player2 = be.Player2
			}
		}
		start := nowMs
		m.BettingStartMs = &start
		m.BettingDeadlineMs = nowMs + durationMs
		m.Status = state.StatusOpen
		m.TotalBetsA = 0
		m.TotalBetsB = 0
		m.TotalBetsCount = 0
		m.OddsA = odds.Scale
		m.OddsB = odds.Scale
		if err := tx.PutMatch(m); err != nil {
			return err
		}
		return tx.ClearBets(matchID)
	})
}

// AcceptBet valida e registra uma aposta no ledger. Palpite inválido é
// rejeitado antes de qualquer escrita: os totais da partida nunca incluem
// uma aposta que não possa ser paga. Aposta fora da janela é descartada.
func (e *Engine) AcceptBet(ctx context.Context, p events.BetPlacement) error {
	nowMs := e.nowMs()
	var oddsA, oddsB int64
	var reject error
	err := e.store.Update(ctx, func(tx state.Tx) error {
		reject = nil
		m, err := tx.GetMatch(p.MatchID)
		if err != nil {
			return err
		}
		if m == nil {
			reject = ErrUnknownMatch
			return nil
		}
		// a transição de deadline persiste mesmo quando a aposta é descartada
		if probe(m, nowMs) {
			if err := tx.PutMatch(m); err != nil {
				return err
			}
		}
		if m.Status != state.StatusOpen {
			reject = ErrBettingClosed
			return nil
		}
		if p.Predicted != m.Player1 && p.Predicted != m.Player2 {
			reject = ErrInvalidPrediction
			return nil
		}

		if err := tx.AppendBet(state.Bet{
			BetID:         p.BetID,
			MatchID:       p.MatchID,
			Bettor:        p.Bettor,
			BettorAccount: p.BettorAccount,
			Predicted:     p.Predicted,
			Amount:        p.Amount,
			OriginChain:   p.OriginChain,
		}); err != nil {
			return err
		}

		if p.Predicted == m.Player1 {
			m.TotalBetsA += p.Amount
		} else {
			m.TotalBetsB += p.Amount
		}
		m.TotalBetsCount++
		m.OddsA, m.OddsB = odds.ForMatch(m.TotalBetsA, m.TotalBetsB)
		oddsA, oddsB = m.OddsA, m.OddsB
		if err := tx.PutMatch(m); err != nil {
			return err
		}

		return e.bumpSeasonCounters(tx, func(s *state.Season) { s.BetsPlaced++ })
	})
	if err != nil {
		return err
	}
	if reject != nil {
		metrics.BetsDropped.Inc()
		e.log.Warn("aposta descartada",
			zap.String("match_id", p.MatchID), zap.String("bet_id", p.BetID),
			zap.String("predicted", p.Predicted), zap.Error(reject))
		return reject
	}

	metrics.BetsAccepted.Inc()
	if e.mirror != nil {
		if merr := e.mirror.WriteOdds(ctx, p.MatchID, oddsA, oddsB); merr != nil {
			e.log.Warn("falha ao espelhar odds no cache", zap.Error(merr))
		}
	}
	return nil
}

// SettleMatch liquida uma partida: paga cada aposta vencedora com
// floor(valor * pool / stake_vencedor) e limpa o ledger. No-op silencioso
// para argumentos vazios, partida inexistente ou já liquidada. Qualquer
// falha de transferência aborta a liquidação inteira.
func (e *Engine) SettleMatch(ctx context.Context, matchID, winner string) error {
	if matchID == "" || winner == "" {
		return nil
	}
	nowMs := e.nowMs()
	var notices []events.PayoutNotice
	var disbursed int64
	settled := false
	err := e.store.Update(ctx, func(tx state.Tx) error {
		notices = nil
		disbursed = 0
		settled = false

		m, err := tx.GetMatch(matchID)
		if err != nil {
			return err
		}
		if m == nil || m.Status == state.StatusSettled {
			return nil
		}
		settled = true
		probe(m, nowMs)

		bets, err := tx.Bets(matchID)
		if err != nil {
			return err
		}
		season, err := tx.CurrentSeasonNumber()
		if err != nil {
			return err
		}

		pool := m.TotalBetsA + m.TotalBetsB
		var winStake int64
		for _, b := range bets {
			if b.Predicted == winner {
				winStake += b.Amount
			}
		}

		for _, b := range bets {
			n := events.PayoutNotice{
				BetID:         b.BetID,
				MatchID:       matchID,
				Season:        season,
				BettorAccount: b.BettorAccount,
				TargetChain:   b.OriginChain,
				TsUnixMs:      nowMs,
			}
			if b.Predicted == winner && winStake > 0 {
				payout := mulDiv(b.Amount, pool, winStake)
				if err := e.treasury.Transfer(ctx, e.ownerAccount, b.BettorAccount, payout); err != nil {
					return fmt.Errorf("payout transfer for %s: %w", b.BetID, err)
				}
				n.Amount = payout
				n.IsWin = true
				disbursed += payout
			}
			notices = append(notices, n)
		}

		m.Status = state.StatusSettled
		if err := tx.PutMatch(m); err != nil {
			return err
		}
		if err := tx.ClearBets(matchID); err != nil {
			return err
		}
		count := int64(len(bets))
		return e.bumpSeasonCounters(tx, func(s *state.Season) {
			s.BetsSettled += count
			s.TotalPayouts += disbursed
		})
	})
	if err != nil || !settled {
		return err
	}

	metrics.MatchesSettled.Inc()
	metrics.PayoutsDisbursed.Add(float64(disbursed))
	for _, n := range notices {
		env, err := bus.NewEnvelope(bus.KindPayoutNotice, e.chainID, n.TargetChain, n)
		if err != nil {
			return err
		}
		if err := e.bus.Publish(ctx, topics.PayoutNotices, env); err != nil {
			e.log.Error("falha ao publicar payout notice",
				zap.String("bet_id", n.BetID), zap.Error(err))
		}
	}
	return nil
}

// mulDiv calcula floor(a*b/c) com intermediário largo, sem overflow de int64.
func mulDiv(a, b, c int64) int64 {
	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	num.Quo(num, big.NewInt(c))
	return num.Int64()
}

// RecordMatch registra o resultado final de uma partida: resultado, bracket,
// ponto no leaderboard da temporada e acompanhamento de campeão/vice.
// Também publica o evento para o colaborador de leaderboard global.
func (e *Engine) RecordMatch(ctx context.Context, matchID, winner, loser string) error {
	nowMs := e.nowMs()
	err := e.store.Update(ctx, func(tx state.Tx) error {
		if err := tx.PutResult(state.MatchResult{MatchID: matchID, Winner: winner, Loser: loser}); err != nil {
			return err
		}

		be, err := tx.GetBracketEntry(matchID)
		if err != nil {
			return err
		}
		if be == nil {
			be = &state.BracketEntry{MatchID: matchID, Player1: winner, Player2: loser}
		}
		be.Winner = winner
		be.MatchStatus = "completed"
		if err := tx.PutBracketEntry(*be); err != nil {
			return err
		}

		score, err := tx.Score(winner)
		if err != nil {
			return err
		}
		score++
		if err := tx.PutScore(winner, score); err != nil {
			return err
		}

		return e.trackChampion(tx, winner, score)
	})
	if err != nil {
		return err
	}

	env, err := bus.NewEnvelope(bus.KindScoreRecord, e.chainID, "", events.ScoreRecord{
		MatchID:  matchID,
		Winner:   winner,
		Loser:    loser,
		TsUnixMs: nowMs,
	})
	if err != nil {
		return err
	}
	if err := e.bus.Publish(ctx, topics.ScoreRecords, env); err != nil {
		e.log.Error("falha ao publicar score record", zap.String("match_id", matchID), zap.Error(err))
	}
	return nil
}

// trackChampion mantém campeão e vice da temporada corrente conforme o
// leaderboard evolui. Empates não destronam: só pontuação estritamente maior.
func (e *Engine) trackChampion(tx state.Tx, winner string, score int64) error {
	n, err := tx.CurrentSeasonNumber()
	if err != nil {
		return err
	}
	s, err := tx.GetSeason(n)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}

	champScore := int64(0)
	if s.Champion != "" && s.Champion != winner {
		if champScore, err = tx.Score(s.Champion); err != nil {
			return err
		}
	}
	runnerScore := int64(0)
	if s.RunnerUp != "" && s.RunnerUp != winner {
		if runnerScore, err = tx.Score(s.RunnerUp); err != nil {
			return err
		}
	}

	switch {
	case s.Champion == "" || winner == s.Champion:
		s.Champion = winner
	case score > champScore:
		s.RunnerUp = s.Champion
		s.Champion = winner
	case winner == s.RunnerUp:
		// já é o vice, pontuação só foi atualizada
	case s.RunnerUp == "" || score > runnerScore:
		s.RunnerUp = winner
	default:
		return nil
	}
	return tx.PutSeason(s)
}

// SetParticipants registra a lista de participantes da temporada corrente e
// semeia cada um no leaderboard com zero pontos, pra aparecerem nas consultas
// e no arquivo mesmo sem vitória.
func (e *Engine) SetParticipants(ctx context.Context, participants []string) error {
	return e.store.Update(ctx, func(tx state.Tx) error {
		n, err := tx.CurrentSeasonNumber()
		if err != nil {
			return err
		}
		s, err := tx.GetSeason(n)
		if err != nil {
			return err
		}
		if s == nil {
			return nil
		}
		s.Participants = participants
		if err := tx.PutSeason(s); err != nil {
			return err
		}
		for _, p := range participants {
			if err := tx.PutScore(p, 0); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetBracket faz upsert das entradas do bracket. A primeira vez que um
// match_id aparece, a metadata da partida é criada em Waiting.
func (e *Engine) SetBracket(ctx context.Context, entries []state.BracketEntry) error {
	return e.store.Update(ctx, func(tx state.Tx) error {
		for _, entry := range entries {
			if err := tx.PutBracketEntry(entry); err != nil {
				return err
			}
			m, err := tx.GetMatch(entry.MatchID)
			if err != nil {
				return err
			}
			if m != nil {
				continue
			}
			if err := tx.PutMatch(&state.Match{
				MatchID: entry.MatchID,
				Player1: entry.Player1,
				Player2: entry.Player2,
				Status:  state.StatusWaiting,
				OddsA:   odds.Scale,
				OddsB:   odds.Scale,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// StartSeason inicia uma temporada nova. Se a corrente ainda está ativa, ela
// é encerrada primeiro (cascata). Só aqui as coleções mutáveis da temporada
// anterior são limpas; o encerramento sozinho preserva tudo para consulta.
func (e *Engine) StartSeason(ctx context.Context, name string) error {
	nowMs := e.nowMs()
	return e.store.Update(ctx, func(tx state.Tx) error {
		if err := e.endSeasonTx(tx, nowMs); err != nil {
			return err
		}

		if err := tx.ClearMatches(); err != nil {
			return err
		}
		if err := tx.ClearAllBets(); err != nil {
			return err
		}
		if err := tx.ClearBracket(); err != nil {
			return err
		}
		if err := tx.ClearResults(); err != nil {
			return err
		}
		if err := tx.ClearScores(); err != nil {
			return err
		}
		// o airdrop também é por temporada: quem recebeu pode pedir de novo
		if err := tx.ClearAirdropRecipients(); err != nil {
			return err
		}
		if err := tx.ClearPendingClaims(); err != nil {
			return err
		}

		n, err := tx.CurrentSeasonNumber()
		if err != nil {
			return err
		}
		next := n + 1
		if name == "" {
			name = fmt.Sprintf("Season %d", next)
		}
		if err := tx.SetCurrentSeasonNumber(next); err != nil {
			return err
		}
		return tx.PutSeason(&state.Season{
			Number:  next,
			Name:    name,
			StartMs: nowMs,
			Status:  state.SeasonActive,
		})
	})
}

// EndSeason encerra a temporada corrente: arquiva o leaderboard, marca o fim
// e congela os contadores na própria linha da temporada. O leaderboard vivo
// permanece consultável até a próxima StartSeason.
func (e *Engine) EndSeason(ctx context.Context) error {
	nowMs := e.nowMs()
	return e.store.Update(ctx, func(tx state.Tx) error {
		return e.endSeasonTx(tx, nowMs)
	})
}

func (e *Engine) endSeasonTx(tx state.Tx, nowMs int64) error {
	n, err := tx.CurrentSeasonNumber()
	if err != nil {
		return err
	}
	s, err := tx.GetSeason(n)
	if err != nil {
		return err
	}
	if s == nil || s.Status != state.SeasonActive {
		return nil
	}

	scores, err := tx.ListScores()
	if err != nil {
		return err
	}
	if err := tx.ArchiveScores(n, scores); err != nil {
		return err
	}

	s.Status = state.SeasonEnded
	s.EndMs = &nowMs
	return tx.PutSeason(s)
}

// SetAirdropAmount troca o valor do airdrop inicial. Única operação com
// checagem de autorização explícita: só o dono do torneio pode chamar.
func (e *Engine) SetAirdropAmount(ctx context.Context, caller string, amount int64) error {
	if caller != e.ownerAccount {
		return ErrNotOwner
	}
	return e.store.Update(ctx, func(tx state.Tx) error {
		return tx.SetAirdropAmount(amount)
	})
}

// RequestInitialClaim enfileira um pedido de airdrop. Usuário que já recebeu
// (ou já tem pedido pendente) não entra de novo: at-most-once por "chain:conta".
func (e *Engine) RequestInitialClaim(ctx context.Context, userChain, userAccount string) error {
	nowMs := e.nowMs()
	key := userChain + ":" + userAccount
	return e.store.Update(ctx, func(tx state.Tx) error {
		got, err := tx.IsAirdropRecipient(key)
		if err != nil {
			return err
		}
		if got {
			e.log.Info("airdrop já recebido, pedido ignorado", zap.String("user", key))
			return nil
		}
		return tx.PutPendingClaim(key, state.PendingClaim{
			UserChain:     userChain,
			UserAccount:   userAccount,
			RequestedAtMs: nowMs,
		})
	})
}

// ProcessPendingClaims paga até limit pedidos pendentes a partir da conta do
// dono. Operação gated: só o dono processa. Falha de transferência aborta o
// lote inteiro, nenhum pedido é perdido.
func (e *Engine) ProcessPendingClaims(ctx context.Context, caller string, limit int) (int, error) {
	if caller != e.ownerAccount {
		return 0, ErrNotOwner
	}
	if limit <= 0 {
		limit = 20
	}
	paid := 0
	err := e.store.Update(ctx, func(tx state.Tx) error {
		paid = 0
		amount, err := tx.AirdropAmount()
		if err != nil {
			return err
		}
		claims, err := tx.ListPendingClaims()
		if err != nil {
			return err
		}
		for _, c := range claims {
			if paid >= limit {
				break
			}
			if err := e.treasury.Transfer(ctx, e.ownerAccount, c.Claim.UserAccount, amount); err != nil {
				return fmt.Errorf("airdrop transfer for %s: %w", c.UserKey, err)
			}
			if err := tx.AddAirdropRecipient(c.UserKey); err != nil {
				return err
			}
			if err := tx.RemovePendingClaim(c.UserKey); err != nil {
				return err
			}
			paid++
		}
		return nil
	})
	return paid, err
}

func (e *Engine) bumpSeasonCounters(tx state.Tx, mut func(*state.Season)) error {
	n, err := tx.CurrentSeasonNumber()
	if err != nil {
		return err
	}
	s, err := tx.GetSeason(n)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	mut(s)
	return tx.PutSeason(s)
}
