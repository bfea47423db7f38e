package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
)

var bucketTransactions = []byte("transactions")

var ErrBucketMissing = errors.New("transactions bucket doesn't exist")

// Transaction é uma linha do histórico local do apostador. O histórico é
// append-mostly: só o campo Status da aposta original muda quando o payout
// chega ("paid" -> "won"/"lost").
type Transaction struct {
	TxID        string `json:"tx_id"`
	TxType      string `json:"tx_type"` // bet_placed | payout_received
	Amount      int64  `json:"amount"`
	TimestampMs int64  `json:"timestamp_ms"`
	MatchID     string `json:"match_id"`
	Status      string `json:"status"` // paid | won | lost
	Player      string `json:"player"`
	Season      int64  `json:"season,omitempty"`
}

// Store guarda o histórico de transações da chain do usuário em bbolt.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTransactions)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecordBet grava a linha "bet_placed"/"paid" de uma aposta recém publicada.
func (s *Store) RecordBet(betID, matchID, player string, amount, nowMs int64) error {
	return s.put(Transaction{
		TxID:        betID,
		TxType:      "bet_placed",
		Amount:      amount,
		TimestampMs: nowMs,
		MatchID:     matchID,
		Status:      "paid",
		Player:      player,
	})
}

// ApplyPayout aplica um aviso de liquidação no histórico. Vitória marca a
// aposta original como "won" e grava uma linha nova payout_{bet_id} com o
// valor recebido; derrota só marca "lost". Aviso para aposta desconhecida é
// tolerado: a linha de payout ainda é gravada na vitória.
// Entrega duplicada regrava; não há deduplicação aqui.
func (s *Store) ApplyPayout(betID, matchID string, amount int64, isWin bool, season, nowMs int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		if b == nil {
			return ErrBucketMissing
		}

		player := ""
		if raw := b.Get([]byte(betID)); raw != nil {
			var bet Transaction
			if err := json.Unmarshal(raw, &bet); err != nil {
				return fmt.Errorf("decode bet row %s: %w", betID, err)
			}
			if isWin {
				bet.Status = "won"
			} else {
				bet.Status = "lost"
			}
			bet.Season = season
			player = bet.Player
			if err := putTx(b, bet); err != nil {
				return err
			}
		}

		if !isWin {
			return nil
		}
		return putTx(b, Transaction{
			TxID:        "payout_" + betID,
			TxType:      "payout_received",
			Amount:      amount,
			TimestampMs: nowMs,
			MatchID:     matchID,
			Status:      "completed",
			Player:      player,
			Season:      season,
		})
	})
}

// Get devolve (nil, nil) quando a transação não existe.
func (s *Store) Get(txID string) (*Transaction, error) {
	var out *Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		if b == nil {
			return ErrBucketMissing
		}
		raw := b.Get([]byte(txID))
		if raw == nil {
			return nil
		}
		var t Transaction
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		out = &t
		return nil
	})
	return out, err
}

// List devolve o histórico inteiro, mais recente primeiro.
func (s *Store) List() ([]Transaction, error) {
	var out []Transaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		if b == nil {
			return ErrBucketMissing
		}
		return b.ForEach(func(_, raw []byte) error {
			var t Transaction
			if err := json.Unmarshal(raw, &t); err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampMs != out[j].TimestampMs {
			return out[i].TimestampMs > out[j].TimestampMs
		}
		return out[i].TxID < out[j].TxID
	})
	return out, nil
}

func (s *Store) put(t Transaction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		if b == nil {
			return ErrBucketMissing
		}
		return putTx(b, t)
	})
}

func putTx(b *bbolt.Bucket, t Transaction) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.Put([]byte(t.TxID), raw)
}
