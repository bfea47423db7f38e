package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordBetAndList(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	require.NoError(t, s.RecordBet("bet_c1_1", "m1", "ana", 100, 10))
	require.NoError(t, s.RecordBet("bet_c1_2", "m1", "bia", 50, 20))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bet_c1_2", list[0].TxID) // mais recente primeiro
	assert.Equal(t, "paid", list[0].Status)
	assert.Equal(t, "bet_placed", list[0].TxType)
}

func TestApplyPayoutWin(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	require.NoError(t, s.RecordBet("bet_c1_1", "m1", "ana", 100, 10))

	require.NoError(t, s.ApplyPayout("bet_c1_1", "m1", 400, true, 3, 20))

	bet, err := s.Get("bet_c1_1")
	require.NoError(t, err)
	require.NotNil(t, bet)
	assert.Equal(t, "won", bet.Status)
	assert.Equal(t, int64(3), bet.Season)

	payout, err := s.Get("payout_bet_c1_1")
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, "payout_received", payout.TxType)
	assert.Equal(t, int64(400), payout.Amount)
	assert.Equal(t, "ana", payout.Player) // copiado da aposta original
}

func TestApplyPayoutLoss(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	require.NoError(t, s.RecordBet("bet_c1_1", "m1", "ana", 100, 10))

	require.NoError(t, s.ApplyPayout("bet_c1_1", "m1", 0, false, 3, 20))

	bet, err := s.Get("bet_c1_1")
	require.NoError(t, err)
	assert.Equal(t, "lost", bet.Status)

	// derrota não gera linha de payout
	payout, err := s.Get("payout_bet_c1_1")
	require.NoError(t, err)
	assert.Nil(t, payout)
}

func TestApplyPayoutUnknownBetStillRecordsWin(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	require.NoError(t, s.ApplyPayout("bet_ghost", "m1", 250, true, 1, 20))

	payout, err := s.Get("payout_bet_ghost")
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(250), payout.Amount)
	assert.Equal(t, "", payout.Player)
}

func TestDuplicatePayoutDoubleRecords(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	require.NoError(t, s.RecordBet("bet_c1_1", "m1", "ana", 100, 10))

	// entrega at-least-once sem deduplicação: reaplicar regrava a linha de
	// payout (mesma chave, valor idêntico) e mantém o status final
	require.NoError(t, s.ApplyPayout("bet_c1_1", "m1", 400, true, 3, 20))
	require.NoError(t, s.ApplyPayout("bet_c1_1", "m1", 400, true, 3, 30))

	bet, err := s.Get("bet_c1_1")
	require.NoError(t, err)
	assert.Equal(t, "won", bet.Status)

	payout, err := s.Get("payout_bet_c1_1")
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, int64(30), payout.TimestampMs)
}
