package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/adrve/cloud-analytics/internal/decision"
	"github.com/adrve/cloud-analytics/internal/frame"
	"github.com/adrve/cloud-analytics/internal/kafka"
	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/adrve/cloud-analytics/internal/observability"
	"github.com/adrve/cloud-analytics/internal/retry"
	"github.com/adrve/cloud-analytics/internal/s3"
	"github.com/adrve/cloud-analytics/internal/services/inference"
	"github.com/google/uuid"
)

const (
	streamPollAttempts = 10
	streamPollDelay    = 5 * time.Second
)

type mediaStore interface {
	FragmentExists(ctx context.Context, streamName, fragmentNumber string) (bool, error)
	GetFragment(ctx context.Context, streamName, fragmentNumber string) ([]byte, error)
	UploadFrame(ctx context.Context, key string, data []byte) error
}

type detector interface {
	DetectObjects(ctx context.Context, frameJPEG []byte) (inference.Result, error)
}

type detectionStore interface {
	InsertDetections(ctx context.Context, records []models.DetectionRecord) error
}

type commandPublisher interface {
	Publish(ctx context.Context, deviceID string, cmd models.Command, origin models.CommandOrigin) (string, error)
}

// Processor выполняет одну инвокацию: достать медиа фрагмента, извлечь кадр,
// прогнать инференс, сохранить детекции и при необходимости отправить команду.
// Без состояния между инвокациями
type Processor struct {
	media      mediaStore
	detector   detector
	store      detectionStore
	decider    *decision.Unit
	publisher  commandPublisher
	streamPoll retry.Policy
	ttl        time.Duration
	metrics    *observability.Metrics

	extract func([]byte) ([]byte, error)
	now     func() time.Time
}

func New(media mediaStore, det detector, store detectionStore, decider *decision.Unit,
	publisher commandPublisher, ttl time.Duration, metrics *observability.Metrics) *Processor {
	return &Processor{
		media:     media,
		detector:  det,
		store:     store,
		decider:   decider,
		publisher: publisher,
		streamPoll: retry.Policy{
			MaxAttempts: streamPollAttempts,
			Delay:       streamPollDelay,
		},
		ttl:     ttl,
		metrics: metrics,
		extract: frame.ExtractRepresentative,
		now:     time.Now,
	}
}

// Process обрабатывает одну инвокацию. Ошибки зависимостей не фатальны:
// логируются, превращаются в возвращаемую ошибку и не ретраятся дальше
// ограниченного опроса доступности фрагмента
func (p *Processor) Process(ctx context.Context, inv models.ExtractionInvocation) error {
	log.Printf("Processor[%s]: processing fragment %s", inv.DeviceID, inv.FragmentNumber)

	// Медиа может отставать от уведомления — ждём появления фрагмента,
	// после исчерпания попыток всё равно продолжаем
	err := p.streamPoll.Do(ctx, func(ctx context.Context) (bool, error) {
		return p.media.FragmentExists(ctx, inv.StreamName, inv.FragmentNumber)
	})
	if err != nil {
		if !errors.Is(err, retry.ErrExhausted) {
			return err
		}
		log.Printf("Processor[%s]: fragment %s not confirmed active, proceeding anyway", inv.DeviceID, inv.FragmentNumber)
	}

	fragment, err := p.media.GetFragment(ctx, inv.StreamName, inv.FragmentNumber)
	if err != nil {
		return err
	}

	frameJPEG, err := p.extract(fragment)
	if err != nil {
		return err
	}

	// Ошибка инференса деградирует результат, но не прерывает инвокацию:
	// кадр и пустой список детекций всё равно сохраняются
	result, err := p.detector.DetectObjects(ctx, frameJPEG)
	if err != nil {
		log.Printf("Processor[%s]: inference error: %v", inv.DeviceID, err)
		result = inference.Result{Degraded: true}
	}

	frameID := uuid.New().String()
	ts := p.now().Unix()
	frameKey := s3.FrameKey(ts, frameID)

	if err := p.media.UploadFrame(ctx, frameKey, frameJPEG); err != nil {
		log.Printf("Processor[%s]: failed to store frame: %v", inv.DeviceID, err)
	}

	records := make([]models.DetectionRecord, 0, len(result.Objects))
	for seq, det := range result.Objects {
		records = append(records, models.DetectionRecord{
			FrameID:     frameID,
			Timestamp:   ts,
			Seq:         seq,
			Detection:   det,
			FrameS3Path: frameKey,
			Degraded:    result.Degraded,
			TTL:         ts + int64(p.ttl.Seconds()),
		})
	}
	if len(records) > 0 {
		if err := p.store.InsertDetections(ctx, records); err != nil {
			log.Printf("Processor[%s]: failed to persist detections: %v", inv.DeviceID, err)
		}
	}

	p.metrics.FramesProcessed.Inc()
	if result.Degraded {
		p.metrics.InferenceDegraded.Inc()
	}

	if cmd := p.decider.Evaluate(result.Objects); cmd != nil {
		topic, err := p.publisher.Publish(ctx, inv.DeviceID, *cmd, models.OriginAuto)
		if err != nil {
			log.Printf("Processor[%s]: failed to publish command: %v", inv.DeviceID, err)
		} else {
			log.Printf("Processor[%s]: stop command sent to %s: %s", inv.DeviceID, topic, cmd.Reason)
			p.metrics.CommandsPublished.Inc()
		}
	}

	return nil
}

// Run слушает топик инвокаций. Сообщение подтверждается и при ошибке
// обработки — один неудачный кадр просто не даёт детекций
func (p *Processor) Run(ctx context.Context, messages <-chan kafka.Message) {
	log.Println("Processor: listening for extraction invocations")
	for {
		select {
		case <-ctx.Done():
			log.Println("Processor: shutting down")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var inv models.ExtractionInvocation
			if err := json.Unmarshal(msg.Value, &inv); err != nil {
				log.Printf("Processor: invalid invocation format: %v", err)
				msg.Ack()
				continue
			}

			if err := p.Process(ctx, inv); err != nil {
				log.Printf("Processor[%s]: fragment %s failed: %v", inv.DeviceID, inv.FragmentNumber, err)
			}

			msg.Ack()
		}
	}
}
