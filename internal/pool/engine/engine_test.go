package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/tourney-pool/internal/pool/state"
	"github.com/radieske/tourney-pool/internal/shared/bus"
	"github.com/radieske/tourney-pool/pkg/contracts/events"
	"github.com/radieske/tourney-pool/pkg/contracts/topics"
)

const owner = "tourney-owner"

type transfer struct {
	From, To string
	Amount   int64
}

type fakeTreasury struct {
	calls  []transfer
	failTo string
}

func (f *fakeTreasury) Transfer(_ context.Context, from, to string, amount int64) error {
	if f.failTo != "" && to == f.failTo {
		return errors.New("insufficient balance")
	}
	f.calls = append(f.calls, transfer{From: from, To: to, Amount: amount})
	return nil
}

type fixture struct {
	eng      *Engine
	store    *state.Memory
	mbus     *bus.MemBus
	treasury *fakeTreasury
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := state.NewMemory()
	mb := bus.NewMemBus()
	tr := &fakeTreasury{}
	now := time.UnixMilli(1_700_000_000_000)
	eng := New(zap.NewNop(), st, mb, tr, nil, "pool-chain", owner).
		WithClock(func() time.Time { return now })
	require.NoError(t, eng.StartSeason(context.Background(), "Season 1"))
	return &fixture{eng: eng, store: st, mbus: mb, treasury: tr, clock: &now}
}

func (f *fixture) advance(d time.Duration) { *f.clock = f.clock.Add(d) }

func (f *fixture) match(t *testing.T, id string) *state.Match {
	t.Helper()
	var m *state.Match
	require.NoError(t, f.store.View(context.Background(), func(tx state.Tx) error {
		var err error
		m, err = tx.GetMatch(id)
		return err
	}))
	return m
}

func (f *fixture) season(t *testing.T) *state.Season {
	t.Helper()
	var s *state.Season
	require.NoError(t, f.store.View(context.Background(), func(tx state.Tx) error {
		n, err := tx.CurrentSeasonNumber()
		if err != nil {
			return err
		}
		s, err = tx.GetSeason(n)
		return err
	}))
	return s
}

func placement(betID, matchID, predicted, bettor string, amount int64) events.BetPlacement {
	return events.BetPlacement{
		BetID:         betID,
		MatchID:       matchID,
		Predicted:     predicted,
		Amount:        amount,
		Bettor:        bettor,
		BettorAccount: "acct-" + bettor,
		OriginChain:   "chain-" + bettor,
	}
}

func openMatch(t *testing.T, f *fixture, id, p1, p2 string, dur time.Duration) {
	t.Helper()
	require.NoError(t, f.eng.SetBracket(context.Background(), []state.BracketEntry{
		{MatchID: id, Player1: p1, Player2: p2, Round: "final"},
	}))
	require.NoError(t, f.eng.OpenBetting(context.Background(), id, dur.Milliseconds()))
}

func TestSettleProportionalPayout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Hour)

	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 100)))
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b2", "m1", "bia", "bob", 300)))

	m := f.match(t, "m1")
	assert.Equal(t, int64(100), m.TotalBetsA)
	assert.Equal(t, int64(300), m.TotalBetsB)
	assert.Equal(t, int64(4000), m.OddsA)
	assert.Equal(t, int64(1333), m.OddsB)

	require.NoError(t, f.eng.SettleMatch(ctx, "m1", "ana"))

	// alice leva o pool inteiro: floor(100 * 400 / 100) = 400
	require.Len(t, f.treasury.calls, 1)
	assert.Equal(t, transfer{From: owner, To: "acct-alice", Amount: 400}, f.treasury.calls[0])

	notices := f.mbus.Drain(topics.PayoutNotices)
	require.Len(t, notices, 2)
	byBet := map[string]events.PayoutNotice{}
	for _, env := range notices {
		var n events.PayoutNotice
		require.NoError(t, env.Decode(&n))
		byBet[n.BetID] = n
		assert.Equal(t, bus.KindPayoutNotice, env.Kind)
	}
	assert.True(t, byBet["b1"].IsWin)
	assert.Equal(t, int64(400), byBet["b1"].Amount)
	assert.Equal(t, "chain-alice", byBet["b1"].TargetChain)
	assert.False(t, byBet["b2"].IsWin)
	assert.Equal(t, int64(0), byBet["b2"].Amount)

	m = f.match(t, "m1")
	assert.Equal(t, state.StatusSettled, m.Status)
	assert.Equal(t, int64(2), m.TotalBetsCount)

	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		bets, err := tx.Bets("m1")
		assert.Empty(t, bets)
		return err
	}))

	s := f.season(t)
	assert.Equal(t, int64(2), s.BetsPlaced)
	assert.Equal(t, int64(2), s.BetsSettled)
	assert.Equal(t, int64(400), s.TotalPayouts)
}

func TestSettleSplitsPoolProportionally(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Hour)

	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 100)))
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b2", "m1", "ana", "carol", 200)))
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b3", "m1", "bia", "bob", 300)))

	require.NoError(t, f.eng.SettleMatch(ctx, "m1", "ana"))

	// pool 600, stake vencedor 300: alice floor(100*600/300)=200, carol 400
	require.Len(t, f.treasury.calls, 2)
	paid := map[string]int64{}
	for _, c := range f.treasury.calls {
		paid[c.To] = c.Amount
	}
	assert.Equal(t, int64(200), paid["acct-alice"])
	assert.Equal(t, int64(400), paid["acct-carol"])
}

func TestSettleWithoutWinningStake(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m2", "ana", "bia", time.Hour)

	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m2", "bia", "alice", 50)))
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b2", "m2", "bia", "bob", 70)))

	// ninguém apostou na vencedora: pool fica com a casa, partida liquida
	require.NoError(t, f.eng.SettleMatch(ctx, "m2", "ana"))
	assert.Empty(t, f.treasury.calls)

	m := f.match(t, "m2")
	assert.Equal(t, state.StatusSettled, m.Status)
	assert.Equal(t, int64(2), m.TotalBetsCount)

	notices := f.mbus.Drain(topics.PayoutNotices)
	require.Len(t, notices, 2)
	for _, env := range notices {
		var n events.PayoutNotice
		require.NoError(t, env.Decode(&n))
		assert.False(t, n.IsWin)
		assert.Equal(t, int64(0), n.Amount)
	}
}

func TestSettleIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Hour)
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 100)))

	require.NoError(t, f.eng.SettleMatch(ctx, "m1", "ana"))
	f.mbus.Drain(topics.PayoutNotices)

	require.NoError(t, f.eng.SettleMatch(ctx, "m1", "ana"))
	assert.Len(t, f.treasury.calls, 1)
	assert.Zero(t, f.mbus.Len(topics.PayoutNotices))
}

func TestSettleNoOpOnMissingOrEmptyArgs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.SettleMatch(ctx, "", "ana"))
	require.NoError(t, f.eng.SettleMatch(ctx, "m9", ""))
	require.NoError(t, f.eng.SettleMatch(ctx, "nope", "ana"))
	assert.Empty(t, f.treasury.calls)
}

func TestTransferFailureAbortsSettlement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Hour)
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 100)))

	f.treasury.failTo = "acct-alice"
	require.Error(t, f.eng.SettleMatch(ctx, "m1", "ana"))

	// nada commitou: partida segue aberta, ledger intacto, nenhum notice
	m := f.match(t, "m1")
	assert.Equal(t, state.StatusOpen, m.Status)
	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		bets, err := tx.Bets("m1")
		assert.Len(t, bets, 1)
		return err
	}))
	assert.Zero(t, f.mbus.Len(topics.PayoutNotices))

	f.treasury.failTo = ""
	require.NoError(t, f.eng.SettleMatch(ctx, "m1", "ana"))
	assert.Equal(t, state.StatusSettled, f.match(t, "m1").Status)
}

func TestBetAfterDeadlineIsDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Minute)

	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 100)))

	f.advance(2 * time.Minute)
	err := f.eng.AcceptBet(ctx, placement("b2", "m1", "bia", "bob", 300))
	require.ErrorIs(t, err, ErrBettingClosed)

	// o probe persiste a transição mesmo com a aposta descartada
	m := f.match(t, "m1")
	assert.Equal(t, state.StatusClosed, m.Status)
	assert.Equal(t, int64(100), m.TotalBetsA)
	assert.Equal(t, int64(0), m.TotalBetsB)
	assert.Equal(t, int64(1), m.TotalBetsCount)
}

func TestInvalidPredictionLeavesNoTrace(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Hour)

	err := f.eng.AcceptBet(ctx, placement("b1", "m1", "zeca", "alice", 100))
	require.ErrorIs(t, err, ErrInvalidPrediction)

	m := f.match(t, "m1")
	assert.Equal(t, int64(0), m.TotalBetsA+m.TotalBetsB)
	assert.Equal(t, int64(0), m.TotalBetsCount)
	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		bets, err := tx.Bets("m1")
		assert.Empty(t, bets)
		return err
	}))
	assert.Equal(t, int64(0), f.season(t).BetsPlaced)
}

func TestSettledMatchDoesNotReopen(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Hour)
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 100)))
	require.NoError(t, f.eng.SettleMatch(ctx, "m1", "ana"))

	require.NoError(t, f.eng.OpenBetting(ctx, "m1", time.Hour.Milliseconds()))

	m := f.match(t, "m1")
	assert.Equal(t, state.StatusSettled, m.Status)
	assert.Equal(t, int64(1), m.TotalBetsCount) // contagem segue congelada
}

func TestOpenBettingUnknownMatchFallsBackToUnknownPlayers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, f.eng.OpenBetting(context.Background(), "ghost", time.Hour.Milliseconds()))

	m := f.match(t, "ghost")
	require.NotNil(t, m)
	assert.Equal(t, "Unknown", m.Player1)
	assert.Equal(t, "Unknown", m.Player2)
	assert.Equal(t, state.StatusOpen, m.Status)
}

func TestLedgerTotalsMatchMatchTotals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Hour)

	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 120)))
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b2", "m1", "bia", "bob", 80)))
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b3", "m1", "ana", "carol", 55)))

	m := f.match(t, "m1")
	var sum int64
	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		bets, err := tx.Bets("m1")
		for _, b := range bets {
			sum += b.Amount
		}
		return err
	}))
	assert.Equal(t, m.TotalBetsA+m.TotalBetsB, sum)
	assert.Equal(t, int64(3), m.TotalBetsCount)
}

func TestRecordMatchUpdatesLeaderboardAndChampion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.RecordMatch(ctx, "m1", "ana", "bia"))
	require.NoError(t, f.eng.RecordMatch(ctx, "m2", "ana", "caio"))
	require.NoError(t, f.eng.RecordMatch(ctx, "m3", "bia", "caio"))

	s := f.season(t)
	assert.Equal(t, "ana", s.Champion)
	assert.Equal(t, "bia", s.RunnerUp)

	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		score, err := tx.Score("ana")
		assert.Equal(t, int64(2), score)
		return err
	}))

	records := f.mbus.Drain(topics.ScoreRecords)
	require.Len(t, records, 3)
	var r events.ScoreRecord
	require.NoError(t, records[0].Decode(&r))
	assert.Equal(t, "ana", r.Winner)
	assert.Equal(t, "bia", r.Loser)
}

func TestSeasonEndArchivesAndStartResets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	openMatch(t, f, "m1", "ana", "bia", time.Hour)
	require.NoError(t, f.eng.AcceptBet(ctx, placement("b1", "m1", "ana", "alice", 100)))
	require.NoError(t, f.eng.RecordMatch(ctx, "m1", "ana", "bia"))

	require.NoError(t, f.eng.EndSeason(ctx))

	s := f.season(t)
	assert.Equal(t, state.SeasonEnded, s.Status)
	require.NotNil(t, s.EndMs)
	assert.Equal(t, int64(1), s.BetsPlaced)

	// encerrar arquiva mas não limpa: leaderboard segue consultável
	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		live, err := tx.ListScores()
		require.NoError(t, err)
		assert.Len(t, live, 1)
		archived, err := tx.ArchivedScores(1)
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, state.ScoreEntry{Username: "ana", Score: 1}, archived[0])
		return nil
	}))

	require.NoError(t, f.eng.StartSeason(ctx, "Season 2"))
	s = f.season(t)
	assert.Equal(t, int64(2), s.Number)
	assert.Equal(t, state.SeasonActive, s.Status)
	assert.Equal(t, int64(0), s.BetsPlaced)

	// só o start limpa as coleções mutáveis
	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		live, err := tx.ListScores()
		require.NoError(t, err)
		assert.Empty(t, live)
		matches, err := tx.ListMatches()
		require.NoError(t, err)
		assert.Empty(t, matches)
		archived, err := tx.ArchivedScores(1)
		require.NoError(t, err)
		assert.Len(t, archived, 1)
		return nil
	}))
}

func TestStartSeasonCascadesEndOfActiveSeason(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.eng.RecordMatch(ctx, "m1", "ana", "bia"))

	// temporada 1 ainda ativa: start encerra e arquiva antes de abrir a 2
	require.NoError(t, f.eng.StartSeason(ctx, "Season 2"))

	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		prev, err := tx.GetSeason(1)
		require.NoError(t, err)
		assert.Equal(t, state.SeasonEnded, prev.Status)
		archived, err := tx.ArchivedScores(1)
		require.NoError(t, err)
		assert.Len(t, archived, 1)
		return nil
	}))
	assert.Equal(t, int64(2), f.season(t).Number)
}

func TestAirdropClaimLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.RequestInitialClaim(ctx, "chain-alice", "acct-alice"))
	require.NoError(t, f.eng.RequestInitialClaim(ctx, "chain-alice", "acct-alice"))
	require.NoError(t, f.eng.RequestInitialClaim(ctx, "chain-bob", "acct-bob"))

	_, err := f.eng.ProcessPendingClaims(ctx, "intruso", 10)
	require.ErrorIs(t, err, ErrNotOwner)
	assert.Empty(t, f.treasury.calls)

	paid, err := f.eng.ProcessPendingClaims(ctx, owner, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, paid)
	require.Len(t, f.treasury.calls, 2)
	for _, c := range f.treasury.calls {
		assert.Equal(t, int64(10000), c.Amount)
		assert.Equal(t, owner, c.From)
	}

	// já recebeu: novo pedido não reentra na fila
	require.NoError(t, f.eng.RequestInitialClaim(ctx, "chain-alice", "acct-alice"))
	paid, err = f.eng.ProcessPendingClaims(ctx, owner, 10)
	require.NoError(t, err)
	assert.Zero(t, paid)
}

func TestSeasonStartClearsAirdropState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.RequestInitialClaim(ctx, "chain-alice", "acct-alice"))
	paid, err := f.eng.ProcessPendingClaims(ctx, owner, 10)
	require.NoError(t, err)
	require.Equal(t, 1, paid)

	// temporada nova zera recipients e fila: o mesmo usuário reclama de novo
	require.NoError(t, f.eng.StartSeason(ctx, "Season 2"))

	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		got, err := tx.IsAirdropRecipient("chain-alice:acct-alice")
		require.NoError(t, err)
		assert.False(t, got)
		claims, err := tx.ListPendingClaims()
		require.NoError(t, err)
		assert.Empty(t, claims)
		return nil
	}))

	require.NoError(t, f.eng.RequestInitialClaim(ctx, "chain-alice", "acct-alice"))
	paid, err = f.eng.ProcessPendingClaims(ctx, owner, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, paid)
}

func TestSetParticipantsSeedsZeroScores(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.eng.SetParticipants(ctx, []string{"ana", "bia", "caio"}))

	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		scores, err := tx.ListScores()
		require.NoError(t, err)
		require.Len(t, scores, 3)
		for _, s := range scores {
			assert.Equal(t, int64(0), s.Score)
		}
		return nil
	}))

	// quem nunca venceu ainda aparece no arquivo da temporada
	require.NoError(t, f.eng.RecordMatch(ctx, "m1", "ana", "bia"))
	require.NoError(t, f.eng.EndSeason(ctx))

	require.NoError(t, f.store.View(ctx, func(tx state.Tx) error {
		archived, err := tx.ArchivedScores(1)
		require.NoError(t, err)
		require.Len(t, archived, 3)
		byName := map[string]int64{}
		for _, s := range archived {
			byName[s.Username] = s.Score
		}
		assert.Equal(t, int64(1), byName["ana"])
		assert.Equal(t, int64(0), byName["caio"])
		return nil
	}))
}

func TestSetAirdropAmountIsOwnerGated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.eng.SetAirdropAmount(ctx, "intruso", 5), ErrNotOwner)
	require.NoError(t, f.eng.SetAirdropAmount(ctx, owner, 5))

	require.NoError(t, f.eng.RequestInitialClaim(ctx, "c", "acct-c"))
	_, err := f.eng.ProcessPendingClaims(ctx, owner, 1)
	require.NoError(t, err)
	require.Len(t, f.treasury.calls, 1)
	assert.Equal(t, int64(5), f.treasury.calls[0].Amount)
}

func TestHandleBetPlacementBouncesUnplayableBet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p := placement("b1", "no-such-match", "ana", "alice", 100)
	env, err := bus.NewEnvelope(bus.KindBetPlacement, "chain-alice", "pool-chain", p)
	require.NoError(t, err)
	require.NoError(t, f.mbus.Publish(ctx, topics.BetPlacements, env))

	require.NoError(t, f.mbus.Deliver(ctx, topics.BetPlacements, topics.BetPlacementsBounced, f.eng.HandleBetPlacement))

	bounced := f.mbus.Drain(topics.BetPlacementsBounced)
	require.Len(t, bounced, 1)
	assert.True(t, bounced[0].Bouncing)
	assert.Equal(t, env.ID, bounced[0].ID)
}

func TestHandleBetPlacementDropsStaleBetWithoutBounce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	openMatch(t, f, "m1", "ana", "bia", time.Minute)
	f.advance(2 * time.Minute)

	env, err := bus.NewEnvelope(bus.KindBetPlacement, "chain-bob", "pool-chain",
		placement("b1", "m1", "ana", "bob", 100))
	require.NoError(t, err)
	require.NoError(t, f.mbus.Publish(ctx, topics.BetPlacements, env))

	require.NoError(t, f.mbus.Deliver(ctx, topics.BetPlacements, topics.BetPlacementsBounced, f.eng.HandleBetPlacement))
	assert.Zero(t, f.mbus.Len(topics.BetPlacementsBounced))
}
