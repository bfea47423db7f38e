package bus

import (
	"context"
	"sync"
)

// MemBus é o transporte em memória usado em testes. DropEvery e DuplicateEvery
// simulam as falhas do transporte real (at-least-once sem deduplicação): a
// N-ésima publicação é perdida ou entregue duas vezes.
type MemBus struct {
	mu     sync.Mutex
	queues map[string][]Envelope
	n      int

	DropEvery      int
	DuplicateEvery int
}

func NewMemBus() *MemBus {
	return &MemBus{queues: make(map[string][]Envelope)}
}

func (b *MemBus) Publish(_ context.Context, topic string, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.n++
	if b.DropEvery > 0 && b.n%b.DropEvery == 0 {
		return nil
	}

	b.queues[topic] = append(b.queues[topic], env)
	if b.DuplicateEvery > 0 && b.n%b.DuplicateEvery == 0 {
		b.queues[topic] = append(b.queues[topic], env)
	}
	return nil
}

// Drain devolve e limpa a fila de um tópico.
func (b *MemBus) Drain(topic string) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queues[topic]
	b.queues[topic] = nil
	return out
}

func (b *MemBus) Len(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[topic])
}

// Deliver aplica os envelopes pendentes de um tópico no handler, em ordem.
// Rejeições voltam pra fila de bounce, espelhando o transporte real.
func (b *MemBus) Deliver(ctx context.Context, topic, bounceTopic string, h Handler) error {
	for _, env := range b.Drain(topic) {
		if err := h(ctx, env); err != nil {
			if err == ErrRejected && bounceTopic != "" {
				if perr := b.Publish(ctx, bounceTopic, env.Bounced()); perr != nil {
					return perr
				}
				continue
			}
			return err
		}
	}
	return nil
}
