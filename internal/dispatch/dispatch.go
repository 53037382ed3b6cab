package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adrve/cloud-analytics/internal/kafka"
	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/adrve/cloud-analytics/internal/observability"
)

type producer interface {
	Send(topic, key string, payload []byte) error
}

// Dispatcher принимает уведомления о фрагментах и запускает извлечение:
// ровно одна асинхронная инвокация на валидное уведомление, без ожидания
// результата
type Dispatcher struct {
	producer        producer
	streamName      string
	defaultDeviceID string
	invocationTopic string
	metrics         *observability.Metrics
}

func New(p producer, streamName, defaultDeviceID, invocationTopic string, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		producer:        p,
		streamName:      streamName,
		defaultDeviceID: defaultDeviceID,
		invocationTopic: invocationTopic,
		metrics:         metrics,
	}
}

// Dispatch разбирает уведомление и публикует инвокацию извлечения.
// Уведомление без fragmentNumber отбрасывается с логом, без повторов.
// Ошибка возвращается только при сбое публикации — тогда сообщение не
// подтверждается и транспорт доставит его повторно
func (d *Dispatcher) Dispatch(raw []byte) error {
	var notification models.FragmentNotification
	if err := json.Unmarshal(raw, &notification); err != nil {
		log.Printf("Dispatcher: rejected malformed notification: %v", err)
		d.metrics.NotificationsDropped.Inc()
		return nil
	}

	if notification.FragmentNumber == "" {
		log.Printf("Dispatcher: rejected notification without fragmentNumber")
		d.metrics.NotificationsDropped.Inc()
		return nil
	}

	deviceID := notification.DeviceID
	if deviceID == "" {
		deviceID = d.defaultDeviceID
	}

	invocation := models.ExtractionInvocation{
		StreamName:     d.streamName,
		FragmentNumber: notification.FragmentNumber,
		DeviceID:       deviceID,
	}

	payload, err := json.Marshal(invocation)
	if err != nil {
		return fmt.Errorf("failed to marshal invocation: %w", err)
	}

	if err := d.producer.Send(d.invocationTopic, deviceID, payload); err != nil {
		return fmt.Errorf("failed to produce invocation: %w", err)
	}

	d.metrics.InvocationsDispatched.Inc()
	return nil
}

// Run слушает топик уведомлений и диспатчит каждое сообщение
func (d *Dispatcher) Run(ctx context.Context, messages <-chan kafka.Message) {
	log.Println("Dispatcher: listening for fragment notifications")
	for {
		select {
		case <-ctx.Done():
			log.Println("Dispatcher: shutting down")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			if err := d.Dispatch(msg.Value); err != nil {
				log.Printf("Dispatcher: error dispatching notification: %v", err)
				// Не подтверждаем сообщение при ошибке публикации
				continue
			}

			msg.Ack()
		}
	}
}

type fragmentLister interface {
	LatestFragment(ctx context.Context, streamName string) (string, error)
}

// Poller — деградированный fallback-вариант запуска: вместо push-уведомлений
// периодически опрашивает последний фрагмент стрима. Повторно не диспатчит
// только фрагмент, совпавший с предыдущим опросом
type Poller struct {
	lister     fragmentLister
	dispatcher *Dispatcher
	streamName string
	interval   time.Duration

	lastFragment string
}

func NewPoller(lister fragmentLister, d *Dispatcher, streamName string, interval time.Duration) *Poller {
	return &Poller{
		lister:     lister,
		dispatcher: d,
		streamName: streamName,
		interval:   interval,
	}
}

func (p *Poller) Run(ctx context.Context) {
	log.Printf("Poller: polling %s every %v", p.streamName, p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Poller: shutting down")
			return
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				log.Printf("Poller: %v", err)
			}
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) error {
	fragment, err := p.lister.LatestFragment(ctx, p.streamName)
	if err != nil {
		return fmt.Errorf("failed to list latest fragment: %w", err)
	}

	if fragment == "" || fragment == p.lastFragment {
		return nil
	}
	p.lastFragment = fragment

	payload, err := json.Marshal(models.FragmentNotification{FragmentNumber: fragment})
	if err != nil {
		return err
	}

	return p.dispatcher.Dispatch(payload)
}
