package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRejected sinaliza que o destino recusou a entrega do envelope.
// O loop de consumo devolve o envelope à origem com Bouncing=true.
var ErrRejected = errors.New("envelope rejected by destination")

type Kind string

const (
	KindBetPlacement Kind = "bet_placement"
	KindPayoutNotice Kind = "payout_notice"
	KindScoreRecord  Kind = "score_record"
)

// Envelope embrulha todo payload cross-chain. Entrega é fire-and-forget,
// at-least-once; não há correlação request/response além do payload.
type Envelope struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Source   string          `json:"source"` // chain de origem
	Dest     string          `json:"dest"`   // chain de destino
	Bouncing bool            `json:"bouncing"`
	Payload  json.RawMessage `json:"payload"`
	TsUnixMs int64           `json:"ts_unix_ms"`
}

func NewEnvelope(kind Kind, source, dest string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{
		ID:       uuid.NewString(),
		Kind:     kind,
		Source:   source,
		Dest:     dest,
		Payload:  raw,
		TsUnixMs: time.Now().UnixMilli(),
	}, nil
}

// Decode desserializa o payload no tipo do evento.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// Bounced retorna a cópia devolvida à origem. Mesmo ID e payload:
// a origem enxerga exatamente o que tentou entregar.
func (e Envelope) Bounced() Envelope {
	b := e
	b.Bouncing = true
	return b
}

// Publisher é o lado de envio do transporte cross-chain.
type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}

// Handler aplica um envelope recebido na chain local.
type Handler func(ctx context.Context, env Envelope) error
