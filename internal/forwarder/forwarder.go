package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/adrve/cloud-analytics/internal/kafka"
)

type producer interface {
	Send(topic, key string, payload []byte) error
}

// Envelope обёртка транспорта: пересылается только внутреннее сообщение
type Envelope struct {
	Message json.RawMessage `json:"message"`
}

// Forwarder перекладывает внутреннее сообщение конверта из одного топика в
// другой без изменений — меняется только обёртка
type Forwarder struct {
	producer producer
	topic    string
}

func New(p producer, targetTopic string) *Forwarder {
	return &Forwarder{
		producer: p,
		topic:    targetTopic,
	}
}

// Forward разворачивает конверт и публикует содержимое дословно.
// Сообщение без конверта отбрасывается с логом; ошибка публикации
// возвращается наверх — повтор за транспортом
func (f *Forwarder) Forward(raw []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("Forwarder: dropped malformed envelope: %v", err)
		return nil
	}

	if len(envelope.Message) == 0 {
		log.Printf("Forwarder: dropped envelope without inner message")
		return nil
	}

	if err := f.producer.Send(f.topic, "", envelope.Message); err != nil {
		return fmt.Errorf("failed to forward message: %w", err)
	}

	return nil
}

// Run слушает топик сырых конвертов и пересылает каждое сообщение
func (f *Forwarder) Run(ctx context.Context, messages <-chan kafka.Message) {
	log.Println("Forwarder: listening for raw envelopes")
	for {
		select {
		case <-ctx.Done():
			log.Println("Forwarder: shutting down")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			if err := f.Forward(msg.Value); err != nil {
				log.Printf("Forwarder: error forwarding message: %v", err)
				continue
			}

			msg.Ack()
		}
	}
}
