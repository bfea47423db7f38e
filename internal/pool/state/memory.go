package state

import (
	"context"
	"sort"
	"sync"
)

// Memory implementa Store em memória com semântica copy-on-write: Update
// trabalha sobre um clone e só troca o estado se a função commitar sem erro.
// Usado nos testes e nas demonstrações de falha de transporte.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	matches map[string]Match
	bets    map[string][]Bet

	bracket map[string]BracketEntry
	results map[string]MatchResult

	scores         map[string]int64
	archivedScores map[int64]map[string]int64

	currentSeason int64
	seasons       map[int64]Season

	airdropAmount int64
	recipients    map[string]bool
	claims        map[string]PendingClaim
}

// NewMemory cria o estado inicial: temporada 0 encerrada, contadores zerados,
// airdrop com o valor default do torneio.
func NewMemory() *Memory {
	end := int64(0)
	return &Memory{
		data: &memData{
			matches:        map[string]Match{},
			bets:           map[string][]Bet{},
			bracket:        map[string]BracketEntry{},
			results:        map[string]MatchResult{},
			scores:         map[string]int64{},
			archivedScores: map[int64]map[string]int64{},
			currentSeason:  0,
			seasons: map[int64]Season{
				0: {Number: 0, Name: "Season 0", Status: SeasonEnded, EndMs: &end},
			},
			airdropAmount: 10000,
			recipients:    map[string]bool{},
			claims:        map[string]PendingClaim{},
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		matches:        make(map[string]Match, len(d.matches)),
		bets:           make(map[string][]Bet, len(d.bets)),
		bracket:        make(map[string]BracketEntry, len(d.bracket)),
		results:        make(map[string]MatchResult, len(d.results)),
		scores:         make(map[string]int64, len(d.scores)),
		archivedScores: make(map[int64]map[string]int64, len(d.archivedScores)),
		currentSeason:  d.currentSeason,
		seasons:        make(map[int64]Season, len(d.seasons)),
		airdropAmount:  d.airdropAmount,
		recipients:     make(map[string]bool, len(d.recipients)),
		claims:         make(map[string]PendingClaim, len(d.claims)),
	}
	for k, v := range d.matches {
		c.matches[k] = v
	}
	for k, v := range d.bets {
		c.bets[k] = append([]Bet(nil), v...)
	}
	for k, v := range d.bracket {
		c.bracket[k] = v
	}
	for k, v := range d.results {
		c.results[k] = v
	}
	for k, v := range d.scores {
		c.scores[k] = v
	}
	for season, m := range d.archivedScores {
		inner := make(map[string]int64, len(m))
		for k, v := range m {
			inner[k] = v
		}
		c.archivedScores[season] = inner
	}
	for k, v := range d.seasons {
		v.Participants = append([]string(nil), v.Participants...)
		c.seasons[k] = v
	}
	for k, v := range d.recipients {
		c.recipients[k] = v
	}
	for k, v := range d.claims {
		c.claims[k] = v
	}
	return c
}

func (m *Memory) View(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// clone também na leitura, pra função não vazar referências mutáveis
	return fn(&memTx{d: m.data.clone()})
}

func (m *Memory) Update(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

type memTx struct {
	d *memData
}

func (t *memTx) GetMatch(matchID string) (*Match, error) {
	m, ok := t.d.matches[matchID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (t *memTx) PutMatch(m *Match) error {
	t.d.matches[m.MatchID] = *m
	return nil
}

func (t *memTx) ListMatches() ([]*Match, error) {
	ids := make([]string, 0, len(t.d.matches))
	for id := range t.d.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Match, 0, len(ids))
	for _, id := range ids {
		m := t.d.matches[id]
		out = append(out, &m)
	}
	return out, nil
}

func (t *memTx) ClearMatches() error {
	t.d.matches = map[string]Match{}
	return nil
}

func (t *memTx) Bets(matchID string) ([]Bet, error) {
	return append([]Bet(nil), t.d.bets[matchID]...), nil
}

func (t *memTx) AppendBet(b Bet) error {
	t.d.bets[b.MatchID] = append(t.d.bets[b.MatchID], b)
	return nil
}

func (t *memTx) ClearBets(matchID string) error {
	delete(t.d.bets, matchID)
	return nil
}

func (t *memTx) ClearAllBets() error {
	t.d.bets = map[string][]Bet{}
	return nil
}

func (t *memTx) GetBracketEntry(matchID string) (*BracketEntry, error) {
	e, ok := t.d.bracket[matchID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (t *memTx) PutBracketEntry(e BracketEntry) error {
	t.d.bracket[e.MatchID] = e
	return nil
}

func (t *memTx) ListBracket() ([]BracketEntry, error) {
	ids := make([]string, 0, len(t.d.bracket))
	for id := range t.d.bracket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]BracketEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.d.bracket[id])
	}
	return out, nil
}

func (t *memTx) ClearBracket() error {
	t.d.bracket = map[string]BracketEntry{}
	return nil
}

func (t *memTx) PutResult(r MatchResult) error {
	t.d.results[r.MatchID] = r
	return nil
}

func (t *memTx) ListResults() ([]MatchResult, error) {
	ids := make([]string, 0, len(t.d.results))
	for id := range t.d.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]MatchResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.d.results[id])
	}
	return out, nil
}

func (t *memTx) ClearResults() error {
	t.d.results = map[string]MatchResult{}
	return nil
}

func (t *memTx) Score(username string) (int64, error) {
	return t.d.scores[username], nil
}

func (t *memTx) PutScore(username string, score int64) error {
	t.d.scores[username] = score
	return nil
}

func (t *memTx) ListScores() ([]ScoreEntry, error) {
	names := make([]string, 0, len(t.d.scores))
	for n := range t.d.scores {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]ScoreEntry, 0, len(names))
	for _, n := range names {
		out = append(out, ScoreEntry{Username: n, Score: t.d.scores[n]})
	}
	return out, nil
}

func (t *memTx) ClearScores() error {
	t.d.scores = map[string]int64{}
	return nil
}

func (t *memTx) ArchiveScores(season int64, entries []ScoreEntry) error {
	m, ok := t.d.archivedScores[season]
	if !ok {
		m = map[string]int64{}
		t.d.archivedScores[season] = m
	}
	for _, e := range entries {
		m[e.Username] = e.Score
	}
	return nil
}

func (t *memTx) ArchivedScores(season int64) ([]ScoreEntry, error) {
	m := t.d.archivedScores[season]
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]ScoreEntry, 0, len(names))
	for _, n := range names {
		out = append(out, ScoreEntry{Username: n, Score: m[n]})
	}
	return out, nil
}

func (t *memTx) CurrentSeasonNumber() (int64, error) {
	return t.d.currentSeason, nil
}

func (t *memTx) SetCurrentSeasonNumber(n int64) error {
	t.d.currentSeason = n
	return nil
}

func (t *memTx) GetSeason(number int64) (*Season, error) {
	s, ok := t.d.seasons[number]
	if !ok {
		return nil, nil
	}
	s.Participants = append([]string(nil), s.Participants...)
	return &s, nil
}

func (t *memTx) PutSeason(s *Season) error {
	cp := *s
	cp.Participants = append([]string(nil), s.Participants...)
	t.d.seasons[s.Number] = cp
	return nil
}

func (t *memTx) ListSeasonNumbers() ([]int64, error) {
	out := make([]int64, 0, len(t.d.seasons))
	for n := range t.d.seasons {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *memTx) AirdropAmount() (int64, error) {
	return t.d.airdropAmount, nil
}

func (t *memTx) SetAirdropAmount(amount int64) error {
	t.d.airdropAmount = amount
	return nil
}

func (t *memTx) IsAirdropRecipient(userKey string) (bool, error) {
	return t.d.recipients[userKey], nil
}

func (t *memTx) AddAirdropRecipient(userKey string) error {
	t.d.recipients[userKey] = true
	return nil
}

func (t *memTx) ClearAirdropRecipients() error {
	t.d.recipients = map[string]bool{}
	return nil
}

func (t *memTx) PutPendingClaim(userKey string, c PendingClaim) error {
	t.d.claims[userKey] = c
	return nil
}

func (t *memTx) ListPendingClaims() ([]ClaimEntry, error) {
	keys := make([]string, 0, len(t.d.claims))
	for k := range t.d.claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ClaimEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, ClaimEntry{UserKey: k, Claim: t.d.claims[k]})
	}
	return out, nil
}

func (t *memTx) RemovePendingClaim(userKey string) error {
	delete(t.d.claims, userKey)
	return nil
}

func (t *memTx) ClearPendingClaims() error {
	t.d.claims = map[string]PendingClaim{}
	return nil
}
