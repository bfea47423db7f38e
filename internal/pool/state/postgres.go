package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Postgres implementa Store sobre banco Postgres. Cada Update roda em uma
// transação SQL; o abort de qualquer passo desfaz a operação inteira.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas do pool e semeia a temporada 0 (encerrada) e
// os registradores default, espelhando a instanciação do contrato.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			match_id            TEXT PRIMARY KEY,
			player1             TEXT NOT NULL,
			player2             TEXT NOT NULL,
			betting_start_ms    BIGINT,
			betting_deadline_ms BIGINT NOT NULL DEFAULT 0,
			status              TEXT NOT NULL,
			total_bets_a        BIGINT NOT NULL DEFAULT 0,
			total_bets_b        BIGINT NOT NULL DEFAULT 0,
			total_bets_count    BIGINT NOT NULL DEFAULT 0,
			odds_a              BIGINT NOT NULL DEFAULT 1000,
			odds_b              BIGINT NOT NULL DEFAULT 1000
		)`,
		`CREATE TABLE IF NOT EXISTS bets (
			seq            BIGSERIAL PRIMARY KEY,
			bet_id         TEXT NOT NULL,
			match_id       TEXT NOT NULL,
			bettor         TEXT NOT NULL,
			bettor_account TEXT NOT NULL,
			predicted      TEXT NOT NULL,
			amount         BIGINT NOT NULL,
			origin_chain   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS bets_match_idx ON bets (match_id)`,
		`CREATE TABLE IF NOT EXISTS bracket (
			match_id     TEXT PRIMARY KEY,
			player1      TEXT NOT NULL,
			player2      TEXT NOT NULL,
			winner       TEXT NOT NULL DEFAULT '',
			round        TEXT NOT NULL DEFAULT '',
			match_status TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			match_id TEXT PRIMARY KEY,
			winner   TEXT NOT NULL,
			loser    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			username TEXT PRIMARY KEY,
			score    BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboard_archive (
			season   BIGINT NOT NULL,
			username TEXT NOT NULL,
			score    BIGINT NOT NULL,
			PRIMARY KEY (season, username)
		)`,
		`CREATE TABLE IF NOT EXISTS seasons (
			number        BIGINT PRIMARY KEY,
			name          TEXT NOT NULL,
			start_ms      BIGINT NOT NULL DEFAULT 0,
			end_ms        BIGINT,
			status        TEXT NOT NULL,
			champion      TEXT NOT NULL DEFAULT '',
			runner_up     TEXT NOT NULL DEFAULT '',
			participants  TEXT[] NOT NULL DEFAULT '{}',
			bets_placed   BIGINT NOT NULL DEFAULT 0,
			bets_settled  BIGINT NOT NULL DEFAULT 0,
			total_payouts BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS registers (
			key   TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS airdrop_recipients (
			user_key TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS pending_claims (
			user_key        TEXT PRIMARY KEY,
			user_chain      TEXT NOT NULL,
			user_account    TEXT NOT NULL,
			requested_at_ms BIGINT NOT NULL
		)`,
		`INSERT INTO seasons (number, name, start_ms, end_ms, status)
			VALUES (0, 'Season 0', 0, 0, 'Ended') ON CONFLICT DO NOTHING`,
		`INSERT INTO registers (key, value) VALUES ('current_season', 0) ON CONFLICT DO NOTHING`,
		`INSERT INTO registers (key, value) VALUES ('airdrop_amount', 10000) ON CONFLICT DO NOTHING`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) GetMatch(matchID string) (*Match, error) {
	var m Match
	var start sql.NullInt64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT match_id, player1, player2, betting_start_ms, betting_deadline_ms,
		       status, total_bets_a, total_bets_b, total_bets_count, odds_a, odds_b
		FROM matches WHERE match_id=$1`, matchID).
		Scan(&m.MatchID, &m.Player1, &m.Player2, &start, &m.BettingDeadlineMs,
			&m.Status, &m.TotalBetsA, &m.TotalBetsB, &m.TotalBetsCount, &m.OddsA, &m.OddsB)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if start.Valid {
		m.BettingStartMs = &start.Int64
	}
	return &m, nil
}

func (t *pgTx) PutMatch(m *Match) error {
	var start sql.NullInt64
	if m.BettingStartMs != nil {
		start = sql.NullInt64{Int64: *m.BettingStartMs, Valid: true}
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO matches (match_id, player1, player2, betting_start_ms, betting_deadline_ms,
			status, total_bets_a, total_bets_b, total_bets_count, odds_a, odds_b)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (match_id) DO UPDATE SET
			player1=EXCLUDED.player1, player2=EXCLUDED.player2,
			betting_start_ms=EXCLUDED.betting_start_ms,
			betting_deadline_ms=EXCLUDED.betting_deadline_ms,
			status=EXCLUDED.status,
			total_bets_a=EXCLUDED.total_bets_a, total_bets_b=EXCLUDED.total_bets_b,
			total_bets_count=EXCLUDED.total_bets_count,
			odds_a=EXCLUDED.odds_a, odds_b=EXCLUDED.odds_b`,
		m.MatchID, m.Player1, m.Player2, start, m.BettingDeadlineMs,
		m.Status, m.TotalBetsA, m.TotalBetsB, m.TotalBetsCount, m.OddsA, m.OddsB)
	return err
}

func (t *pgTx) ListMatches() ([]*Match, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT match_id, player1, player2, betting_start_ms, betting_deadline_ms,
		       status, total_bets_a, total_bets_b, total_bets_count, odds_a, odds_b
		FROM matches ORDER BY match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Match
	for rows.Next() {
		var m Match
		var start sql.NullInt64
		if err := rows.Scan(&m.MatchID, &m.Player1, &m.Player2, &start, &m.BettingDeadlineMs,
			&m.Status, &m.TotalBetsA, &m.TotalBetsB, &m.TotalBetsCount, &m.OddsA, &m.OddsB); err != nil {
			return nil, err
		}
		if start.Valid {
			m.BettingStartMs = &start.Int64
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearMatches() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM matches`)
	return err
}

func (t *pgTx) Bets(matchID string) ([]Bet, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT bet_id, match_id, bettor, bettor_account, predicted, amount, origin_chain
		FROM bets WHERE match_id=$1 ORDER BY seq`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.BetID, &b.MatchID, &b.Bettor, &b.BettorAccount,
			&b.Predicted, &b.Amount, &b.OriginChain); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendBet(b Bet) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO bets (bet_id, match_id, bettor, bettor_account, predicted, amount, origin_chain)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.BetID, b.MatchID, b.Bettor, b.BettorAccount, b.Predicted, b.Amount, b.OriginChain)
	return err
}

func (t *pgTx) ClearBets(matchID string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM bets WHERE match_id=$1`, matchID)
	return err
}

func (t *pgTx) ClearAllBets() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM bets`)
	return err
}

func (t *pgTx) GetBracketEntry(matchID string) (*BracketEntry, error) {
	var e BracketEntry
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT match_id, player1, player2, winner, round, match_status
		FROM bracket WHERE match_id=$1`, matchID).
		Scan(&e.MatchID, &e.Player1, &e.Player2, &e.Winner, &e.Round, &e.MatchStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTx) PutBracketEntry(e BracketEntry) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO bracket (match_id, player1, player2, winner, round, match_status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (match_id) DO UPDATE SET
			player1=EXCLUDED.player1, player2=EXCLUDED.player2, winner=EXCLUDED.winner,
			round=EXCLUDED.round, match_status=EXCLUDED.match_status`,
		e.MatchID, e.Player1, e.Player2, e.Winner, e.Round, e.MatchStatus)
	return err
}

func (t *pgTx) ListBracket() ([]BracketEntry, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT match_id, player1, player2, winner, round, match_status
		FROM bracket ORDER BY match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BracketEntry
	for rows.Next() {
		var e BracketEntry
		if err := rows.Scan(&e.MatchID, &e.Player1, &e.Player2, &e.Winner, &e.Round, &e.MatchStatus); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearBracket() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM bracket`)
	return err
}

func (t *pgTx) PutResult(r MatchResult) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO results (match_id, winner, loser) VALUES ($1,$2,$3)
		ON CONFLICT (match_id) DO UPDATE SET winner=EXCLUDED.winner, loser=EXCLUDED.loser`,
		r.MatchID, r.Winner, r.Loser)
	return err
}

func (t *pgTx) ListResults() ([]MatchResult, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT match_id, winner, loser FROM results ORDER BY match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchResult
	for rows.Next() {
		var r MatchResult
		if err := rows.Scan(&r.MatchID, &r.Winner, &r.Loser); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearResults() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM results`)
	return err
}

func (t *pgTx) Score(username string) (int64, error) {
	var s int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT score FROM leaderboard WHERE username=$1`, username).Scan(&s)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return s, err
}

func (t *pgTx) PutScore(username string, score int64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO leaderboard (username, score) VALUES ($1,$2)
		ON CONFLICT (username) DO UPDATE SET score=EXCLUDED.score`, username, score)
	return err
}

func (t *pgTx) ListScores() ([]ScoreEntry, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT username, score FROM leaderboard ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoreEntry
	for rows.Next() {
		var e ScoreEntry
		if err := rows.Scan(&e.Username, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) ClearScores() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM leaderboard`)
	return err
}

func (t *pgTx) ArchiveScores(season int64, entries []ScoreEntry) error {
	for _, e := range entries {
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO leaderboard_archive (season, username, score) VALUES ($1,$2,$3)
			ON CONFLICT (season, username) DO UPDATE SET score=EXCLUDED.score`,
			season, e.Username, e.Score); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) ArchivedScores(season int64) ([]ScoreEntry, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT username, score FROM leaderboard_archive WHERE season=$1 ORDER BY username`, season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoreEntry
	for rows.Next() {
		var e ScoreEntry
		if err := rows.Scan(&e.Username, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) CurrentSeasonNumber() (int64, error) {
	return t.register("current_season")
}

func (t *pgTx) SetCurrentSeasonNumber(n int64) error {
	return t.setRegister("current_season", n)
}

func (t *pgTx) GetSeason(number int64) (*Season, error) {
	var s Season
	var end sql.NullInt64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT number, name, start_ms, end_ms, status, champion, runner_up,
		       participants, bets_placed, bets_settled, total_payouts
		FROM seasons WHERE number=$1`, number).
		Scan(&s.Number, &s.Name, &s.StartMs, &end, &s.Status, &s.Champion, &s.RunnerUp,
			pq.Array(&s.Participants), &s.BetsPlaced, &s.BetsSettled, &s.TotalPayouts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if end.Valid {
		s.EndMs = &end.Int64
	}
	return &s, nil
}

func (t *pgTx) PutSeason(s *Season) error {
	var end sql.NullInt64
	if s.EndMs != nil {
		end = sql.NullInt64{Int64: *s.EndMs, Valid: true}
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO seasons (number, name, start_ms, end_ms, status, champion, runner_up,
			participants, bets_placed, bets_settled, total_payouts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (number) DO UPDATE SET
			name=EXCLUDED.name, start_ms=EXCLUDED.start_ms, end_ms=EXCLUDED.end_ms,
			status=EXCLUDED.status, champion=EXCLUDED.champion, runner_up=EXCLUDED.runner_up,
			participants=EXCLUDED.participants, bets_placed=EXCLUDED.bets_placed,
			bets_settled=EXCLUDED.bets_settled, total_payouts=EXCLUDED.total_payouts`,
		s.Number, s.Name, s.StartMs, end, s.Status, s.Champion, s.RunnerUp,
		pq.Array(s.Participants), s.BetsPlaced, s.BetsSettled, s.TotalPayouts)
	return err
}

func (t *pgTx) ListSeasonNumbers() ([]int64, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT number FROM seasons ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (t *pgTx) AirdropAmount() (int64, error) {
	return t.register("airdrop_amount")
}

func (t *pgTx) SetAirdropAmount(amount int64) error {
	return t.setRegister("airdrop_amount", amount)
}

func (t *pgTx) IsAirdropRecipient(userKey string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(t.ctx, `SELECT 1 FROM airdrop_recipients WHERE user_key=$1`, userKey).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *pgTx) AddAirdropRecipient(userKey string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO airdrop_recipients (user_key) VALUES ($1) ON CONFLICT DO NOTHING`, userKey)
	return err
}

func (t *pgTx) ClearAirdropRecipients() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM airdrop_recipients`)
	return err
}

func (t *pgTx) PutPendingClaim(userKey string, c PendingClaim) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO pending_claims (user_key, user_chain, user_account, requested_at_ms)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_key) DO UPDATE SET requested_at_ms=EXCLUDED.requested_at_ms`,
		userKey, c.UserChain, c.UserAccount, c.RequestedAtMs)
	return err
}

func (t *pgTx) ListPendingClaims() ([]ClaimEntry, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT user_key, user_chain, user_account, requested_at_ms
		FROM pending_claims ORDER BY user_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClaimEntry
	for rows.Next() {
		var e ClaimEntry
		if err := rows.Scan(&e.UserKey, &e.Claim.UserChain, &e.Claim.UserAccount, &e.Claim.RequestedAtMs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) RemovePendingClaim(userKey string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM pending_claims WHERE user_key=$1`, userKey)
	return err
}

func (t *pgTx) ClearPendingClaims() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM pending_claims`)
	return err
}

func (t *pgTx) register(key string) (int64, error) {
	var v int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM registers WHERE key=$1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

func (t *pgTx) setRegister(key string, v int64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO registers (key, value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value`, key, v)
	return err
}
