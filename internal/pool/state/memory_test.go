package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeedsSeasonZeroAndAirdropDefault(t *testing.T) {
	t.Parallel()
	m := NewMemory()

	require.NoError(t, m.View(context.Background(), func(tx Tx) error {
		n, err := tx.CurrentSeasonNumber()
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		s, err := tx.GetSeason(0)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, SeasonEnded, s.Status)

		amount, err := tx.AirdropAmount()
		require.NoError(t, err)
		assert.Equal(t, int64(10000), amount)
		return nil
	}))
}

func TestMemoryUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		return tx.PutMatch(&Match{MatchID: "m1", Player1: "a", Player2: "b", Status: StatusOpen})
	}))

	boom := errors.New("boom")
	err := m.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.PutMatch(&Match{MatchID: "m1", Status: StatusSettled}))
		require.NoError(t, tx.AppendBet(Bet{BetID: "b1", MatchID: "m1", Amount: 10}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// nada da transação falhada vazou
	require.NoError(t, m.View(ctx, func(tx Tx) error {
		match, err := tx.GetMatch("m1")
		require.NoError(t, err)
		assert.Equal(t, StatusOpen, match.Status)
		bets, err := tx.Bets("m1")
		require.NoError(t, err)
		assert.Empty(t, bets)
		return nil
	}))
}

func TestMemoryViewDoesNotLeakMutableState(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		return tx.PutMatch(&Match{MatchID: "m1", Status: StatusOpen})
	}))

	require.NoError(t, m.View(ctx, func(tx Tx) error {
		match, err := tx.GetMatch("m1")
		require.NoError(t, err)
		match.Status = StatusSettled
		return tx.PutMatch(match) // escreve só no clone da view
	}))

	require.NoError(t, m.View(ctx, func(tx Tx) error {
		match, err := tx.GetMatch("m1")
		require.NoError(t, err)
		assert.Equal(t, StatusOpen, match.Status)
		return nil
	}))
}
