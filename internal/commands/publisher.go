package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/google/uuid"
)

type producer interface {
	Send(topic, key string, payload []byte) error
}

type historyStore interface {
	InsertCommand(ctx context.Context, rec models.CommandRecord) error
}

// Publisher публикует команды в топик устройства и пишет историю.
// Доставка at-most-once: повторная публикация того же payload даёт новую
// независимую запись, дедупликации нет
type Publisher struct {
	producer producer
	store    historyStore
	prefix   string
}

func NewPublisher(p producer, store historyStore, topicPrefix string) *Publisher {
	return &Publisher{
		producer: p,
		store:    store,
		prefix:   topicPrefix,
	}
}

// Topic формирует имя топика команд устройства
func (p *Publisher) Topic(deviceID string) string {
	return fmt.Sprintf("%s.commands.%s", p.prefix, deviceID)
}

// Publish отправляет команду и записывает её в историю. Ошибка записи истории
// не отменяет уже состоявшуюся публикацию — только логируется
func (p *Publisher) Publish(ctx context.Context, deviceID string, cmd models.Command, origin models.CommandOrigin) (string, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := p.Topic(deviceID)
	if err := p.producer.Send(topic, deviceID, payload); err != nil {
		return "", fmt.Errorf("failed to publish command to %s: %w", topic, err)
	}

	if err := p.store.InsertCommand(ctx, models.CommandRecord{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		Command:   cmd.Command,
		Reason:    cmd.Reason,
		Origin:    origin,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("Publisher: failed to write command history for %s: %v", deviceID, err)
	}

	return topic, nil
}
