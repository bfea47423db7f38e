package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/tourney-pool/internal/shared/kafka"
)

// KafkaBus publica envelopes em tópicos Kafka, um writer por tópico.
type KafkaBus struct {
	brokers string

	mu      sync.Mutex
	writers map[string]*kafkago.Writer
}

func NewKafkaBus(brokers string) *KafkaBus {
	return &KafkaBus{
		brokers: brokers,
		writers: make(map[string]*kafkago.Writer),
	}
}

func (b *KafkaBus) Publish(ctx context.Context, topic string, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return skafka.WriteJSON(ctx, b.writer(topic), env.ID, raw)
}

func (b *KafkaBus) writer(topic string) *kafkago.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.writers[topic]
	if !ok {
		w = skafka.NewWriter(b.brokers, topic)
		b.writers[topic] = w
	}
	return w
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.writers {
		_ = w.Close()
	}
	return nil
}

// ConsumeLoop lê envelopes de um reader e aplica o handler em sequência —
// uma mensagem por vez, preservando a semântica de execução serializada da
// chain. Handler que retorna ErrRejected faz o envelope voltar pra origem
// (Bouncing=true) via bounceTopic; outros erros geram log e backoff simples.
func (b *KafkaBus) ConsumeLoop(ctx context.Context, log *zap.Logger, r *kafkago.Reader, bounceTopic string, h Handler) {
	for {
		_, value, err := skafka.ReadNext(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var env Envelope
		if jerr := json.Unmarshal(value, &env); jerr != nil {
			log.Error("unmarshal envelope", zap.Error(jerr))
			continue
		}

		if err := h(ctx, env); err != nil {
			if err == ErrRejected && bounceTopic != "" {
				if perr := b.Publish(ctx, bounceTopic, env.Bounced()); perr != nil {
					log.Error("publish bounce", zap.String("envelope", env.ID), zap.Error(perr))
				}
				continue
			}
			log.Error("handle envelope", zap.String("envelope", env.ID), zap.Error(err))
			time.Sleep(500 * time.Millisecond)
		}
	}
}
