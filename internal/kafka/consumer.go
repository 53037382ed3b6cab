package kafka

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Consumer оборачивает Sarama ConsumerGroup
type Consumer struct {
	group    sarama.ConsumerGroup
	topic    string
	messages chan Message
	closed   chan struct{}
}

// Message содержит сообщение и сессию для подтверждения
type Message struct {
	Value   []byte
	session sarama.ConsumerGroupSession
	raw     *sarama.ConsumerMessage
}

// Ack подтверждает обработку сообщения
func (m Message) Ack() {
	if m.session != nil {
		m.session.MarkMessage(m.raw, "")
	}
}

// NewConsumer создаёт и возвращает новый Consumer
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:    group,
		topic:    topic,
		messages: make(chan Message),
		closed:   make(chan struct{}),
	}, nil
}

// StartListening запускает асинхронное потребление сообщений
func (c *Consumer) StartListening(ctx context.Context) {
	handler := &consumerGroupHandler{
		messages: c.messages,
		closed:   c.closed,
	}

	go func() {
		defer close(c.messages)

		retryDelay := time.Second * 5
		for {
			select {
			case <-ctx.Done():
				log.Printf("Consumer[%s]: context cancelled, stopping", c.topic)
				return
			default:
				log.Printf("Consumer[%s]: starting consumption cycle", c.topic)
				err := c.group.Consume(ctx, []string{c.topic}, handler)
				if err != nil {
					log.Printf("Consume error: %v, retrying in %v", err, retryDelay)
					select {
					case <-ctx.Done():
						return
					case <-time.After(retryDelay):
					}
					continue
				}

				if ctx.Err() != nil {
					return
				}
			}
		}
	}()
}

// Close останавливает потребитель и освобождает ресурсы
func (c *Consumer) Close() error {
	close(c.closed)
	return c.group.Close()
}

// Messages возвращает канал для чтения сообщений
func (c *Consumer) Messages() <-chan Message {
	return c.messages
}

// consumerGroupHandler реализует интерфейс sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messages chan<- Message
	closed   <-chan struct{}
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case h.messages <- Message{
				Value:   msg.Value,
				session: sess,
				raw:     msg,
			}:
				// Сообщение отправлено в канал, подтверждение будет после обработки
			case <-sess.Context().Done():
				return nil
			case <-h.closed:
				return nil
			}
		case <-sess.Context().Done():
			return nil
		case <-h.closed:
			return nil
		}
	}
}
